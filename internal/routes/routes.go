package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/quantumshield/vault/internal/agent"
	"github.com/quantumshield/vault/internal/config"
	"github.com/quantumshield/vault/internal/identity"
	"github.com/quantumshield/vault/internal/keys"
	"github.com/quantumshield/vault/internal/middleware"
	"github.com/quantumshield/vault/internal/migration"
	"github.com/quantumshield/vault/internal/notification"
	"github.com/quantumshield/vault/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. With a nil DB or
// cache (dev mode only) in-memory fallbacks are used.
func Setup(app *fiber.App, d Deps) error {
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	legacy := keys.NewECDSA()
	pq := keys.NewDilithium()

	var userRepo identity.Repository
	if d.DB != nil {
		userRepo = identity.NewPostgresRepository(d.DB)
	} else {
		userRepo = identity.NewMemoryRepository()
	}
	var walletRepo wallet.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
	}
	var migrationRepo migration.Repository
	if d.DB != nil {
		migrationRepo = migration.NewPostgresRepository(d.DB)
	} else {
		migrationRepo = migration.NewMemoryRepository(walletRepo)
	}

	userSvc := identity.NewService(userRepo)
	walletSvc := wallet.NewService(walletRepo, legacy, pq)
	notifier := notification.NewLoggerNotifier(d.Logger)
	engine := migration.NewService(walletRepo, migrationRepo, legacy, pq, notifier)
	tools := agent.NewToolset(engine, walletSvc)

	userHandler := identity.NewHandler(userSvc)
	walletHandler := wallet.NewHandler(walletSvc)
	migrationHandler := migration.NewHandler(engine)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterUserRoutes(api, userHandler, userSvc, walletSvc, migrationHandler, tools)
	RegisterWalletRoutes(api, walletHandler, migrationHandler)
	RegisterDashboardRoutes(api, d, userSvc, walletSvc, engine)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
