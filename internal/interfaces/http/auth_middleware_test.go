package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/jhoicas/retail-ops/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/retail-ops/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testJWTSecret  = "test-secret-key-for-unit-tests"
	testUserID     = "00000000-0000-0000-0000-000000000001"
	testStorefront = "tienda-centro"
	testIssuer     = "retail-ops-test"
	testTTL        = time.Hour
)

// buildTestApp app mínima con AuthMiddleware + RequireRole y un handler que devuelve la identidad.
func buildTestApp(allowedRoles ...string) *fiber.App {
	app := fiber.New()
	app.Get("/protected",
		apphttp.AuthMiddleware(testJWTSecret, testIssuer),
		apphttp.RequireRole(allowedRoles...),
		func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"user_id":       apphttp.GetUserID(c),
				"storefront_id": apphttp.GetStorefrontID(c),
				"role":          apphttp.GetRole(c),
			})
		},
	)
	return app
}

func bearer(t *testing.T, issuer string, id pkgjwt.Identity) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, issuer, testTTL, id)
	require.NoError(t, err)
	return "Bearer " + tok
}

// tokenForRole token de testUserID en testStorefront con el rol indicado.
func tokenForRole(t *testing.T, role string) string {
	t.Helper()
	return bearer(t, testIssuer, pkgjwt.Identity{UserID: testUserID, StorefrontID: testStorefront, Role: role})
}

// doRequest GET /protected con el header Authorization dado (vacío = sin header).
func doRequest(t *testing.T, app *fiber.App, authHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body.Code
}

// ──────────────────────────────────────────────────────────────────────────────
// RequireRole
// ──────────────────────────────────────────────────────────────────────────────

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name    string
		allowed []string
		role    string
		status  int
	}{
		{"admin en ruta de admin", []string{apphttp.RoleAdmin}, apphttp.RoleAdmin, http.StatusOK},
		{"bodeguero en ruta de escritura de stock", []string{apphttp.RoleAdmin, apphttp.RoleBodeguero}, apphttp.RoleBodeguero, http.StatusOK},
		{"vendedor en ruta de pedidos", []string{apphttp.RoleAdmin, apphttp.RoleVendedor}, apphttp.RoleVendedor, http.StatusOK},
		{"vendedor en ruta de admin", []string{apphttp.RoleAdmin}, apphttp.RoleVendedor, http.StatusForbidden},
		{"bodeguero en ruta de pedidos", []string{apphttp.RoleAdmin, apphttp.RoleVendedor}, apphttp.RoleBodeguero, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, buildTestApp(tc.allowed...), tokenForRole(t, tc.role))
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.status == http.StatusForbidden {
				assert.Equal(t, "FORBIDDEN", errorCode(t, resp))
			}
		})
	}
}

func TestRequireRole_TokenSinRol(t *testing.T) {
	resp := doRequest(t, buildTestApp(apphttp.RoleAdmin), tokenForRole(t, ""))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_ROLE", errorCode(t, resp))
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthMiddleware
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_CargaLaIdentidad(t *testing.T) {
	resp := doRequest(t, buildTestApp(apphttp.RoleBodeguero), tokenForRole(t, apphttp.RoleBodeguero))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, testUserID, body["user_id"])
	assert.Equal(t, testStorefront, body["storefront_id"])
	assert.Equal(t, apphttp.RoleBodeguero, body["role"])
}

func TestAuthMiddleware_AdminSinTienda(t *testing.T) {
	auth := bearer(t, testIssuer, pkgjwt.Identity{UserID: testUserID, Role: apphttp.RoleAdmin})
	resp := doRequest(t, buildTestApp(apphttp.RoleAdmin), auth)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_Rechazos(t *testing.T) {
	cases := map[string]struct {
		header string
		code   string
	}{
		"sin header":          {"", "MISSING_TOKEN"},
		"sin Bearer":          {"Basic abc", "INVALID_TOKEN"},
		"malformado":          {"Bearer token.invalido.aqui", "INVALID_TOKEN"},
		"otro emisor":         {bearer(t, "otro-emisor", pkgjwt.Identity{UserID: testUserID, StorefrontID: testStorefront, Role: apphttp.RoleAdmin}), "INVALID_TOKEN"},
		"vendedor sin tienda": {bearer(t, testIssuer, pkgjwt.Identity{UserID: testUserID, Role: apphttp.RoleVendedor}), "INVALID_TOKEN"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp := doRequest(t, buildTestApp(apphttp.RoleAdmin, apphttp.RoleVendedor), tc.header)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tc.code, errorCode(t, resp))
		})
	}
}
