package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/rupaya-pay/rupaya/internal/ledger"
)

// RegisterBalanceRoute exposes the current user's available and locked funds.
func RegisterBalanceRoute(r fiber.Router, led ledger.Ledger) {
	r.Get("/balance", func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(string)
		if uid == "" {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		acc, err := led.Account(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusNotFound, "balance not found")
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"available": acc.Available,
			"locked":    acc.Locked,
		})
	})
}
