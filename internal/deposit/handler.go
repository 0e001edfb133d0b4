package deposit

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes on-ramp deposit endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type initiateRequest struct {
	Provider string `json:"provider"`
	Amount   int64  `json:"amount"`
}

// Initiate starts a bank deposit and returns the token plus the bank's
// redirect URL.
func (h *Handler) Initiate(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	var req initiateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	record, redirect, err := h.service.Initiate(c.UserContext(), uid, req.Provider, req.Amount)
	switch {
	case errors.Is(err, ErrUnsupportedProvider), errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case err != nil:
		return fiber.NewError(http.StatusInternalServerError, "could not start deposit")
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"token":        record.Token,
		"provider":     record.Provider,
		"amount":       record.Amount,
		"status":       record.Status,
		"redirect_url": redirect,
	})
}

// History lists the authenticated user's deposits, newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	records, err := h.service.List(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	type entry struct {
		Token     string    `json:"token"`
		Provider  string    `json:"provider"`
		Amount    int64     `json:"amount"`
		Status    string    `json:"status"`
		StartTime time.Time `json:"start_time"`
	}
	out := make([]entry, 0, len(records))
	for _, rec := range records {
		out = append(out, entry{
			Token:     rec.Token,
			Provider:  rec.Provider,
			Amount:    rec.Amount,
			Status:    rec.Status,
			StartTime: rec.StartTime,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"deposits": out})
}

// Providers lists the supported on-ramp banks.
func (h *Handler) Providers(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"providers": SupportedProviders})
}
