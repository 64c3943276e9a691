package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/retail-ops/internal/application/dto"
	"github.com/jhoicas/retail-ops/internal/application/orders"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/pkg/logger"
)

// OrderHandler maneja pedidos: creación, transiciones y timeline (protegido).
type OrderHandler struct {
	uc  *orders.WorkflowUseCase
	log *logger.Logger
}

// NewOrderHandler construye el handler.
func NewOrderHandler(uc *orders.WorkflowUseCase, log *logger.Logger) *OrderHandler {
	return &OrderHandler{uc: uc, log: log}
}

// Create godoc
// @Summary      Crear pedido en DRAFT
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string  false  "clave de idempotencia"
// @Param        body  body  dto.CreateOrderRequest  true  "cliente, descuento e ítems"
// @Success      201   {object}  dto.OrderResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/orders [post]
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.CreateOrder(c.UserContext(), orders.CreateOrderInput{
		StorefrontID:   GetStorefrontID(c),
		Actor:          GetUserID(c),
		IdempotencyKey: idempotencyKey(c),
		Request:        in,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Get godoc
// @Summary      Obtener pedido
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        uuid  path  string  true  "UUID del pedido"
// @Success      200   {object}  dto.OrderResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/orders/{uuid} [get]
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	out, err := h.uc.GetOrder(c.UserContext(), storefrontScope(c), c.Params("uuid"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// Transition godoc
// @Summary      Cambiar el estado de un pedido
// @Description  Valida la transición, publica los movimientos de stock y agrega status_change al timeline.
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        uuid  path  string  true  "UUID del pedido"
// @Param        Idempotency-Key  header  string  false  "clave de idempotencia"
// @Param        body  body  dto.TransitionRequest  true  "target_status, expected_status, notes, checkout"
// @Success      200   {object}  dto.TransitionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/orders/{uuid}/transitions [post]
func (h *OrderHandler) Transition(c *fiber.Ctx) error {
	var in dto.TransitionRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Transition(c.UserContext(), orders.TransitionCommand{
		OrderUUID:      c.Params("uuid"),
		StorefrontID:   storefrontScope(c),
		Target:         entity.OrderStatus(in.TargetStatus),
		ExpectedStatus: entity.OrderStatus(in.ExpectedStatus),
		Actor:          GetUserID(c),
		Notes:          in.Notes,
		IdempotencyKey: idempotencyKey(c),
		Checkout:       in.Checkout,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// Timeline godoc
// @Summary      Timeline del pedido (más recientes primero)
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        uuid  path  string  true  "UUID del pedido"
// @Success      200   {object}  dto.TimelineResponse
// @Router       /api/orders/{uuid}/timeline [get]
func (h *OrderHandler) Timeline(c *fiber.Ctx) error {
	out, err := h.uc.Timeline(c.UserContext(), storefrontScope(c), c.Params("uuid"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// RecordEvent godoc
// @Summary      Agregar evento secundario al timeline
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        uuid  path  string  true  "UUID del pedido"
// @Param        Idempotency-Key  header  string  false  "clave de idempotencia"
// @Param        body  body  dto.RecordEventRequest  true  "shipping_update | support_ticket | note"
// @Success      201   {object}  dto.OrderEventResponse
// @Router       /api/orders/{uuid}/events [post]
func (h *OrderHandler) RecordEvent(c *fiber.Ctx) error {
	var in dto.RecordEventRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.RecordEvent(c.UserContext(), orders.RecordEventInput{
		OrderUUID:      c.Params("uuid"),
		StorefrontID:   storefrontScope(c),
		Actor:          GetUserID(c),
		IdempotencyKey: idempotencyKey(c),
		Request:        in,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}
