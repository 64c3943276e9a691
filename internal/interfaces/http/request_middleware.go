package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jhoicas/retail-ops/internal/infrastructure/metrics"
	"github.com/jhoicas/retail-ops/pkg/logger"
)

// RequestLogger registra cada petición en el log y en las métricas HTTP. La etiqueta de ruta es
// el patrón registrado (/api/orders/:uuid), no la URL concreta.
func RequestLogger(log *logger.Logger, m *metrics.Metrics) fiber.Handler {
	l := log.Component("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// deja que el ErrorHandler de fiber fije el status antes de medir
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		elapsed := time.Since(start)
		status := c.Response().StatusCode()
		route := c.Route().Path
		m.ObserveHTTP(c.Method(), route, strconv.Itoa(status), elapsed)

		ev := l.Info()
		if status >= fiber.StatusInternalServerError {
			ev = l.Error()
		} else if status >= fiber.StatusBadRequest {
			ev = l.Warn()
		}
		ev.Str("request_id", requestID(c)).Str("method", c.Method()).Str("path", c.Path()).Str("route", route).Int("status", status).
			Dur("latency", elapsed).Str("user_id", GetUserID(c)).Msg("request")
		return nil
	}
}

// RequestID asigna X-Request-ID (o respeta el que envía el cliente).
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{Header: fiber.HeaderXRequestID})
}

func requestID(c *fiber.Ctx) string {
	return localString(c, "requestid")
}
