package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jhoicas/retail-ops/internal/application/ports"
)

var _ ports.NotificationGateway = (*HTTPGateway)(nil)

// HTTPGateway envía notificaciones a un servicio externo vía POST {baseURL}/send.
// El timeout efectivo lo fija el ctx del caller; el del cliente es solo un tope de seguridad.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPGateway construye el cliente. timeout acota cada llamada.
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	OrderUUID    string `json:"order_uuid"`
	TemplateType string `json:"template_type"`
	Recipient    string `json:"recipient"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Send despacha la plantilla. Un status distinto de 2xx se devuelve como SendResult sin Success.
func (g *HTTPGateway) Send(ctx context.Context, orderUUID, templateType, recipient string) (ports.SendResult, error) {
	payload, err := json.Marshal(sendRequest{OrderUUID: orderUUID, TemplateType: templateType, Recipient: recipient})
	if err != nil {
		return ports.SendResult{}, fmt.Errorf("notify: serializar request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return ports.SendResult{}, fmt.Errorf("notify: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("X-API-Key", g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ports.SendResult{}, fmt.Errorf("notify: timeout o cancelación: %w", ctx.Err())
		}
		return ports.SendResult{}, fmt.Errorf("notify: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return ports.SendResult{}, fmt.Errorf("notify: leer respuesta: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ports.SendResult{Error: fmt.Sprintf("gateway respondió %d", resp.StatusCode)}, nil
	}
	var out sendResponse
	if len(raw) == 0 {
		return ports.SendResult{Success: true}, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return ports.SendResult{}, fmt.Errorf("notify: respuesta inválida: %w", err)
	}
	return ports.SendResult{Success: out.Success, Error: out.Error}, nil
}
