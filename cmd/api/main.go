package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/idempotency"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/inventory"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/repository"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/infrastructure/events"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/infrastructure/memory"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/infrastructure/postgres"
	httpRouter "github.com/Gvives15/o11ce-stock-b2b-sub000/internal/interfaces/http"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/pkg/config"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/pkg/logger"
)

// backend agrupa los adaptadores de un almacenamiento concreto.
type backend struct {
	tx           inventory.TxRunner
	lots         repository.LotRepository
	movements    repository.MovementRepository
	reservations repository.ReservationRepository
	overrides    repository.OverrideAuditRepository
	idempotency  repository.IdempotencyRepository
	products     repository.ProductRepository
	warehouses   repository.WarehouseRepository
	close        func()
}

// seedFile catálogo inicial para el modo memoria.
type seedFile struct {
	Products []struct {
		ID       string `json:"id"`
		SKU      string `json:"sku"`
		Name     string `json:"name"`
		IsActive bool   `json:"is_active"`
	} `json:"products"`
	Warehouses []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		IsActive bool   `json:"is_active"`
	} `json:"warehouses"`
}

func main() {
	migrate := flag.Bool("migrate", false, "aplica las migraciones antes de arrancar (solo postgres)")
	purge := flag.Bool("purge-idempotency", false, "borra las claves Idempotency-Key vencidas y termina")
	seed := flag.String("seed", "", "archivo JSON con productos y bodegas (solo memoria)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.Log.Level,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.App.Storage).
		Msg("iniciando aplicación")

	ctx := context.Background()
	var be backend
	switch cfg.App.Storage {
	case config.StorageMemory:
		be, err = memoryBackend(*seed)
	default:
		be, err = postgresBackend(ctx, cfg, *migrate, log)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar almacenamiento")
	}
	defer be.close()

	guard := idempotency.NewGuard(be.idempotency, cfg.Stock.IdempotencyTTL, nil, log.Component("idempotency")).
		WithLease(cfg.Stock.IdempotencyLease)
	if *purge {
		n, err := guard.Purge(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("purgar claves de idempotencia")
		}
		log.Info().Int64("deleted", n).Msg("claves de idempotencia vencidas eliminadas")
		return
	}

	var publisher inventory.EventPublisher = inventory.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := events.NewSyncProducer(cfg.Kafka)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Kafka")
		}
		kafka := events.NewKafkaPublisher(producer, cfg.Kafka.Topic, log.Component("kafka"))
		defer func() {
			if err := kafka.Close(); err != nil {
				log.Error().Err(err).Msg("cerrar productor Kafka")
			}
		}()
		publisher = kafka
	}

	observer := inventory.LogObserver{Log: log.Component("metrics")}
	allocator := inventory.NewAllocator(be.lots, be.reservations, nil)
	stockSvc := inventory.NewStockService(be.tx, allocator, be.products, be.warehouses, inventory.StockServiceConfig{
		DefaultWarehouseID: cfg.Stock.DefaultWarehouseID,
		Observer:           observer,
		Publisher:          publisher,
		Logger:             log.Component("stock"),
	})
	reservationUC := inventory.NewReservationUseCase(be.tx, observer, nil)
	queryUC := inventory.NewQueryUseCase(be.lots, be.reservations, be.movements, be.overrides, nil)

	httpLog := log.Component("http")
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(cfg.HTTP.SwaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: cfg.HTTP.SwaggerFile,
			Path:     "docs",
			Title:    "Stock B2B API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "storage": cfg.App.Storage})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Stock:        httpRouter.NewStockHandler(stockSvc, allocator, queryUC, guard, cfg.Stock.OverrideRoles, httpLog),
		Reservations: httpRouter.NewReservationHandler(reservationUC, guard, httpLog),
		JWTSecret:    cfg.JWT.Secret,
		JWTIssuer:    cfg.JWT.Issuer,
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

func postgresBackend(ctx context.Context, cfg *config.Config, migrate bool, log *logger.Logger) (backend, error) {
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return backend{}, err
	}
	if migrate {
		applied, err := postgres.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
			return backend{}, err
		}
		log.Info().Strs("scripts", applied).Msg("migraciones aplicadas")
	}
	return backend{
		tx:           postgres.NewTxRunner(pool, cfg.Stock.LockTimeout),
		lots:         postgres.NewLotRepository(pool),
		movements:    postgres.NewMovementRepository(pool),
		reservations: postgres.NewReservationRepository(pool),
		overrides:    postgres.NewOverrideAuditRepository(pool),
		idempotency:  postgres.NewIdempotencyRepository(pool),
		products:     postgres.NewProductRepository(pool),
		warehouses:   postgres.NewWarehouseRepository(pool),
		close:        pool.Close,
	}, nil
}

func memoryBackend(seedPath string) (backend, error) {
	store := memory.NewStore()
	if seedPath != "" {
		raw, err := os.ReadFile(seedPath)
		if err != nil {
			return backend{}, err
		}
		var seed seedFile
		if err := json.Unmarshal(raw, &seed); err != nil {
			return backend{}, err
		}
		now := time.Now().UTC()
		for _, p := range seed.Products {
			store.PutProduct(&entity.Product{ID: p.ID, SKU: p.SKU, Name: p.Name, IsActive: p.IsActive, CreatedAt: now, UpdatedAt: now})
		}
		for _, w := range seed.Warehouses {
			store.PutWarehouse(&entity.Warehouse{ID: w.ID, Name: w.Name, IsActive: w.IsActive, CreatedAt: now, UpdatedAt: now})
		}
	}
	return backend{
		tx:           store,
		lots:         store.Lots(),
		movements:    store.Movements(),
		reservations: store.Reservations(),
		overrides:    store.Overrides(),
		idempotency:  store.Idempotency(),
		products:     store.Products(),
		warehouses:   store.Warehouses(),
		close:        func() {},
	}, nil
}
