package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// leeway tolerancia de reloj entre el emisor del token y esta API.
const leeway = 10 * time.Second

// Identity actor autenticado: usuario, tienda a la que pertenece y rol.
// El admin puede no tener tienda.
type Identity struct {
	UserID       string
	StorefrontID string
	Role         string // "admin" | "bodeguero" | "vendedor"
}

// Claims claims registrados más la tienda y el rol. El usuario viaja en sub.
type Claims struct {
	jwt.RegisteredClaims
	StorefrontID string `json:"storefront_id,omitempty"`
	Role         string `json:"role"`
}

// Generate firma un token HS256 para la identidad dada. Los tokens los emite el servicio de
// usuarios; aquí se usa para seeds y tests.
func Generate(secret, issuer string, ttl time.Duration, id Identity) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt: secret vacío")
	}
	if id.UserID == "" {
		return "", fmt.Errorf("jwt: user id vacío")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		StorefrontID: id.StorefrontID,
		Role:         id.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse valida firma, expiración y (si issuer no es vacío) el emisor, y devuelve la identidad.
func Parse(secret, issuer, tokenString string) (Identity, error) {
	if secret == "" {
		return Identity{}, fmt.Errorf("jwt: secret vacío")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return Identity{}, err
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("jwt: token sin sub")
	}
	return Identity{UserID: claims.Subject, StorefrontID: claims.StorefrontID, Role: claims.Role}, nil
}
