package webhook

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rupaya-pay/rupaya/internal/config"
	"github.com/rupaya-pay/rupaya/internal/middleware"
	"github.com/rupaya-pay/rupaya/internal/settlement"
)

// NewApp builds the provider callback listener. It runs as its own process
// so bank traffic never shares a port with the user API.
func NewApp(cfg config.Config, logger *slog.Logger, settlements *settlement.Service) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName + " webhook",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(logger))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handler := NewHandler(NewService(settlements, cfg.WebhookSecret))
	app.Post("/webhooks/bank", handler.Settle)
	app.Post("/webhooks/bank/failure", handler.Fail)

	return app
}
