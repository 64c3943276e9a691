package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/retail-ops/internal/application/dto"
	"github.com/jhoicas/retail-ops/internal/application/inventory"
	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/pkg/logger"
)

// InventoryHandler maneja las peticiones HTTP del ledger de stock (protegido).
type InventoryHandler struct {
	uc  *inventory.LedgerUseCase
	log *logger.Logger
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(uc *inventory.LedgerUseCase, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{uc: uc, log: log}
}

// RecordMovement godoc
// @Summary      Registrar entrada o salida manual de stock
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string  false  "clave de idempotencia"
// @Param        body  body  dto.RecordMovementRequest  true  "product_id, type (INCOMING|OUTGOING), quantity, reason"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [post]
func (h *InventoryHandler) RecordMovement(c *fiber.Ctx) error {
	var in dto.RecordMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.RecordMovementFromRequest(c.UserContext(), GetUserID(c), idempotencyKey(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Adjust godoc
// @Summary      Ajustar el stock de un producto a un saldo objetivo
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string  false  "clave de idempotencia"
// @Param        body  body  dto.AdjustStockRequest  true  "product_id, target_balance, reason"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse  "NO_CHANGE si el saldo ya es el objetivo"
// @Router       /api/inventory/adjustments [post]
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	var in dto.AdjustStockRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.AdjustFromRequest(c.UserContext(), GetUserID(c), idempotencyKey(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetStock godoc
// @Summary      Saldo actual de un producto
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.StockResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/products/{id}/stock [get]
func (h *InventoryHandler) GetStock(c *fiber.Ctx) error {
	productID := c.Params("id")
	qty, err := h.uc.CurrentStock(c.UserContext(), productID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.StockResponse{ProductID: productID, CurrentStock: qty})
}

// ListMovements godoc
// @Summary      Movimientos de un producto en un rango de fechas
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "ID del producto"
// @Param        from    query  string  false  "RFC3339"
// @Param        to      query  string  false  "RFC3339"
// @Param        limit   query  int     false  "máximo 100"
// @Param        offset  query  int     false  "desplazamiento"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/products/{id}/movements [get]
func (h *InventoryHandler) ListMovements(c *fiber.Ctx) error {
	from, err := parseTimeQuery(c, "from")
	if err != nil {
		return respondError(c, h.log, err)
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		return respondError(c, h.log, err)
	}
	page := dto.PageRequest{Limit: c.QueryInt("limit", dto.DefaultPageLimit), Offset: c.QueryInt("offset", 0)}
	page.DefaultPage()
	movs, err := h.uc.ListMovements(c.UserContext(), c.Params("id"), from, to, page)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"movements": movs,
		"page":      dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Reconcile godoc
// @Summary      Compara el saldo materializado con el recalculado desde el ledger
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.ReconcileResponse
// @Router       /api/inventory/products/{id}/reconcile [get]
func (h *InventoryHandler) Reconcile(c *fiber.Ctx) error {
	out, err := h.uc.Reconcile(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

func parseTimeQuery(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s debe ser RFC3339", domain.ErrValidation, key)
	}
	return &t, nil
}
