package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/retail-ops/internal/application/dto"
	"github.com/jhoicas/retail-ops/internal/application/purchasing"
	"github.com/jhoicas/retail-ops/pkg/logger"
)

// PurchaseHandler órdenes de compra a proveedor (protegido).
type PurchaseHandler struct {
	uc  *purchasing.UseCase
	log *logger.Logger
}

// NewPurchaseHandler construye el handler.
func NewPurchaseHandler(uc *purchasing.UseCase, log *logger.Logger) *PurchaseHandler {
	return &PurchaseHandler{uc: uc, log: log}
}

// Create godoc
// @Summary      Crear orden de compra
// @Tags         purchase-orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string  false  "clave de idempotencia"
// @Param        body  body  dto.CreatePurchaseOrderRequest  true  "proveedor e ítems"
// @Success      201   {object}  dto.PurchaseOrderResponse
// @Router       /api/purchase-orders [post]
func (h *PurchaseHandler) Create(c *fiber.Ctx) error {
	var in dto.CreatePurchaseOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Create(c.UserContext(), purchasing.CreateInput{
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
// @Summary      Obtener orden de compra
// @Tags         purchase-orders
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID"
// @Success      200  {object}  dto.PurchaseOrderResponse
// @Router       /api/purchase-orders/{id} [get]
func (h *PurchaseHandler) Get(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// Approve godoc
// @Summary      Aprobar orden de compra y enviarla al proveedor
// @Tags         purchase-orders
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID"
// @Success      200  {object}  dto.PurchaseOrderResponse  "warnings si no se pudo notificar"
// @Router       /api/purchase-orders/{id}/approve [post]
func (h *PurchaseHandler) Approve(c *fiber.Ctx) error {
	out, err := h.uc.Approve(c.UserContext(), c.Params("id"), GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// Cancel godoc
// @Summary      Cancelar orden de compra
// @Tags         purchase-orders
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID"
// @Success      200  {object}  dto.PurchaseOrderResponse
// @Router       /api/purchase-orders/{id}/cancel [post]
func (h *PurchaseHandler) Cancel(c *fiber.Ctx) error {
	out, err := h.uc.Cancel(c.UserContext(), c.Params("id"), GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// Receive godoc
// @Summary      Registrar cantidad acumulada recibida de una línea
// @Tags         purchase-orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "ID"
// @Param        Idempotency-Key  header  string  false  "clave de idempotencia"
// @Param        body  body  dto.ReceiveLineRequest  true  "product_id, quantity_received (acumulado)"
// @Success      200  {object}  dto.ReceiveLineResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/purchase-orders/{id}/receive [post]
func (h *PurchaseHandler) Receive(c *fiber.Ctx) error {
	var in dto.ReceiveLineRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.ReceiveLine(c.UserContext(), purchasing.ReceiveLineInput{
		PurchaseOrderID:  c.Params("id"),
		ProductID:        in.ProductID,
		QuantityReceived: in.QuantityReceived,
		Actor:            GetUserID(c),
		IdempotencyKey:   idempotencyKey(c),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}
