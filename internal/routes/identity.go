package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/rupaya-pay/rupaya/internal/identity"
	"github.com/rupaya-pay/rupaya/internal/ledger"
)

// RegisterIdentityRoutes wires identity endpoints and auto-provisions a zero
// balance row on registration.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, led ledger.Ledger, logger *slog.Logger) {
	r.Post("/identity/register", func(c *fiber.Ctx) error {
		var req struct {
			Phone    string `json:"phone"`
			Password string `json:"password"`
			Name     string `json:"name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := ids.Register(c.UserContext(), identity.Credentials{Phone: req.Phone, Password: req.Password, Name: req.Name})
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if err := led.EnsureAccount(c.UserContext(), user.ID); err != nil {
			return fiber.NewError(http.StatusInternalServerError, "could not provision balance")
		}
		if logger != nil {
			logger.Info("identity.register completed",
				slog.String("user_id", user.ID),
				slog.String("phone", user.Phone),
				slog.Int("status", http.StatusCreated),
			)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id": user.ID,
			"phone":   user.Phone,
			"name":    user.Name,
		})
	})
}

// RegisterProfileRoute lets the authenticated user update their display name.
func RegisterProfileRoute(r fiber.Router, ids *identity.Service) {
	r.Patch("/identity/profile", func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(string)
		if uid == "" {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		var req struct {
			Name string `json:"name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := ids.UpdateProfile(c.UserContext(), uid, req.Name)
		if err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				return fiber.NewError(http.StatusNotFound, "user not found")
			}
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"success": true,
			"message": "Profile updated",
			"user": fiber.Map{
				"user_id": user.ID,
				"phone":   user.Phone,
				"name":    user.Name,
			},
		})
	})
}
