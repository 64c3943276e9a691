package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/retail-ops/internal/application/catalog"
	"github.com/jhoicas/retail-ops/internal/application/idempotency"
	"github.com/jhoicas/retail-ops/internal/application/inventory"
	"github.com/jhoicas/retail-ops/internal/application/orders"
	"github.com/jhoicas/retail-ops/internal/application/ports"
	"github.com/jhoicas/retail-ops/internal/application/purchasing"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
	"github.com/jhoicas/retail-ops/internal/infrastructure/memory"
	"github.com/jhoicas/retail-ops/internal/infrastructure/messaging"
	"github.com/jhoicas/retail-ops/internal/infrastructure/metrics"
	"github.com/jhoicas/retail-ops/internal/infrastructure/notification"
	"github.com/jhoicas/retail-ops/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/retail-ops/internal/interfaces/http"
	"github.com/jhoicas/retail-ops/pkg/config"
	"github.com/jhoicas/retail-ops/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.App.StoreDriver).
		Msg("iniciando aplicación")

	ctx := context.Background()

	// Almacenamiento: PostgreSQL o memoria (desarrollo)
	var (
		txRunner  ports.TxRunner
		repos     ports.TxRepos
		suppliers repository.SupplierRepository
	)
	switch cfg.App.StoreDriver {
	case config.StoreDriverMemory:
		store := memory.NewStore()
		txRunner, repos, suppliers = store, store.Repos(), store.SupplierRepo()
		log.Warn().Msg("usando store en memoria: los datos se pierden al reiniciar")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if cfg.DB.AutoMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				log.Fatal().Err(err).Msg("migración del esquema")
			}
		}
		txRunner, repos, suppliers = postgres.NewTxRunner(pool), postgres.NewRepos(pool), postgres.NewSupplierRepository(pool)
	}

	if cfg.App.CatalogFile != "" {
		if err := loadCatalog(ctx, cfg.App.CatalogFile, cfg.App.CatalogCharset, repos.Products, suppliers, log); err != nil {
			log.Fatal().Err(err).Msg("carga del catálogo")
		}
	}

	m := metrics.New(cfg.Metrics.Namespace)

	// Gateway de notificaciones: HTTP con circuit breaker, o solo log si no hay URL
	var notifier ports.NotificationGateway = notification.NewLogGateway(log)
	if cfg.Notify.URL != "" {
		notifier = notification.NewBreakerGateway(
			notification.NewHTTPGateway(cfg.Notify.URL, cfg.Notify.APIKey, cfg.Notify.Timeout),
			notification.BreakerConfig{
				FailureThreshold: cfg.Notify.BreakerThreshold,
				Cooldown:         cfg.Notify.BreakerCooldown,
			},
			log,
		)
	}

	// Bus de eventos (opcional)
	var events ports.EventPublisher
	if cfg.Kafka.Enabled() {
		publisher := messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Timeout)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error().Err(err).Msg("cierre del publicador de Kafka")
			}
		}()
		events = publisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publicando cambios de estado en Kafka")
	}

	guard := idempotency.NewGuard(repos.Idempotency, cfg.Idempotency.Lease)
	ledgerUC := inventory.NewLedgerUseCase(txRunner, repos.Products, repos.Movements, repos.Balances, guard, m, log)
	workflowUC := orders.NewWorkflowUseCase(
		txRunner, repos.Orders, repos.Events, repos.Products,
		ledgerUC, notifier, guard,
		orders.Config{NotifyTimeout: cfg.Notify.Timeout, Events: events},
		m, log,
	)
	purchasingUC := purchasing.NewUseCase(
		txRunner, repos.PurchaseOrders, suppliers, repos.Products,
		ledgerUC, notifier, guard, cfg.Notify.Timeout, m, log,
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.Notify.Timeout + 10*time.Second,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs (solo si se generó docs/swagger.json)
	if _, err := os.Stat("./docs/swagger.json"); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: "./docs/swagger.json",
			Path:     "docs",
			Title:    "Retail Ops API",
		}))
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		Ledger:     ledgerUC,
		Orders:     workflowUC,
		Purchasing: purchasingUC,
		Metrics:    m,
		Log:        log,
		JWTSecret:  cfg.JWT.Secret,
		JWTIssuer:  cfg.JWT.Issuer,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

func loadCatalog(ctx context.Context, path, charset string, products repository.ProductRepository, suppliers repository.SupplierRepository, log *logger.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	r, err := catalog.Decoder(f, charset)
	if err != nil {
		return err
	}
	res, err := catalog.NewImporter(products, suppliers).Import(ctx, r)
	if err != nil {
		return err
	}
	log.Info().Str("file", path).Int("products", res.Products).Int("suppliers", res.Suppliers).
		Int("skipped", res.Skipped).Msg("catálogo cargado")
	return nil
}
