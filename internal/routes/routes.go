package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/rupaya-pay/rupaya/internal/auth"
	"github.com/rupaya-pay/rupaya/internal/config"
	"github.com/rupaya-pay/rupaya/internal/deposit"
	"github.com/rupaya-pay/rupaya/internal/identity"
	"github.com/rupaya-pay/rupaya/internal/ledger"
	"github.com/rupaya-pay/rupaya/internal/middleware"
	"github.com/rupaya-pay/rupaya/internal/notification"
	"github.com/rupaya-pay/rupaya/internal/transfer"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all user-facing API routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Services and handlers. Dev mode without DB falls back to in-memory
	// backends so the API can be exercised locally.
	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg, identityRepo)
	authHandler := auth.NewHandler(identitySvc, authSvc)
	transferSvc := transfer.NewService(ledgerBackend, identityRepo, notifier)
	transferHandler := transfer.NewHandler(transferSvc)
	depositSvc := deposit.NewService(ledgerBackend)
	depositHandler := deposit.NewHandler(depositSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	jwtmw := middleware.JWTAuth(d.Cfg, identityRepo)

	// Public routes
	RegisterIdentityRoutes(api, identitySvc, ledgerBackend, d.Logger)
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter, jwtmw)
	api.Get("/providers", depositHandler.Providers)

	// Protected routes
	protected := api.Group("", jwtmw)
	RegisterBalanceRoute(protected, ledgerBackend)
	RegisterProfileRoute(protected, identitySvc)
	protected.Post("/transfers/p2p", transferHandler.P2P)
	protected.Get("/transfers", transferHandler.History)
	protected.Post("/deposits", depositHandler.Initiate)
	protected.Get("/deposits", depositHandler.History)

	return nil
}
