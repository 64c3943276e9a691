package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/retail-ops/internal/application/dto"
	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/pkg/logger"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrValidation, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrPreconditionFailed, fiber.StatusUnprocessableEntity, "PRECONDITION_FAILED"},
	{domain.ErrInvalidTransition, fiber.StatusConflict, "INVALID_TRANSITION"},
	{domain.ErrInsufficientStock, fiber.StatusConflict, "INSUFFICIENT_STOCK"},
	{domain.ErrConcurrentModification, fiber.StatusConflict, "CONCURRENT_MODIFICATION"},
	{domain.ErrNoOp, fiber.StatusConflict, "NO_CHANGE"},
	{domain.ErrDownstreamUnavailable, fiber.StatusServiceUnavailable, "DOWNSTREAM_UNAVAILABLE"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
}

// respondError traduce errores de dominio a {code, message}. Lo no clasificado es 500 y se loguea.
func respondError(c *fiber.Ctx, log *logger.Logger, err error) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status == fiber.StatusServiceUnavailable {
				c.Set(fiber.HeaderRetryAfter, "5")
			}
			return c.Status(m.status).JSON(dto.ErrorResponse{Code: m.code, Message: err.Error()})
		}
	}
	log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func idempotencyKey(c *fiber.Ctx) string {
	return c.Get("Idempotency-Key")
}
