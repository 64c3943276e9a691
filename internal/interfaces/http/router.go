package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jhoicas/retail-ops/internal/application/inventory"
	"github.com/jhoicas/retail-ops/internal/application/orders"
	"github.com/jhoicas/retail-ops/internal/application/purchasing"
	"github.com/jhoicas/retail-ops/internal/infrastructure/metrics"
	"github.com/jhoicas/retail-ops/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger     *inventory.LedgerUseCase
	Orders     *orders.WorkflowUseCase
	Purchasing *purchasing.UseCase
	Metrics    *metrics.Metrics
	Log        *logger.Logger
	JWTSecret  string
	JWTIssuer  string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Use(RequestID(), RequestLogger(deps.Log, deps.Metrics))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	api := app.Group("/api")
	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))
	log := deps.Log.Component("api")

	// Pedidos
	orderHandler := NewOrderHandler(deps.Orders, log)
	ordersGroup := protected.Group("/orders", RequireRole(RoleAdmin, RoleVendedor))
	ordersGroup.Post("/", orderHandler.Create)
	ordersGroup.Get("/:uuid", orderHandler.Get)
	ordersGroup.Post("/:uuid/transitions", orderHandler.Transition)
	ordersGroup.Get("/:uuid/timeline", orderHandler.Timeline)
	ordersGroup.Post("/:uuid/events", orderHandler.RecordEvent)

	// Órdenes de compra
	purchaseHandler := NewPurchaseHandler(deps.Purchasing, log)
	purchases := protected.Group("/purchase-orders", RequireRole(RoleAdmin, RoleBodeguero))
	purchases.Post("/", purchaseHandler.Create)
	purchases.Get("/:id", purchaseHandler.Get)
	purchases.Post("/:id/approve", purchaseHandler.Approve)
	purchases.Post("/:id/cancel", purchaseHandler.Cancel)
	purchases.Post("/:id/receive", purchaseHandler.Receive)

	// Inventario: escrituras solo admin/bodeguero; lecturas también vendedor
	inventoryHandler := NewInventoryHandler(deps.Ledger, log)
	invGroup := protected.Group("/inventory")
	writers := RequireRole(RoleAdmin, RoleBodeguero)
	readers := RequireRole(RoleAdmin, RoleBodeguero, RoleVendedor)
	invGroup.Post("/adjustments", writers, inventoryHandler.Adjust)
	invGroup.Post("/movements", writers, inventoryHandler.RecordMovement)
	invGroup.Get("/products/:id/stock", readers, inventoryHandler.GetStock)
	invGroup.Get("/products/:id/movements", readers, inventoryHandler.ListMovements)
	invGroup.Get("/products/:id/reconcile", writers, inventoryHandler.Reconcile)
}
