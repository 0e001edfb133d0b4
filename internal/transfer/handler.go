package transfer

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes transfer endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	ToNumber string `json:"to_number"`
	Amount   int64  `json:"amount"`
}

// P2P processes a transfer from the authenticated user to a phone number.
func (h *Handler) P2P(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	res := h.service.Transfer(c.UserContext(), Input{
		ActorUserID:       uid,
		DestinationNumber: req.ToNumber,
		Amount:            req.Amount,
	})
	return c.Status(statusFor(res)).JSON(res)
}

// History lists transfers the authenticated user sent or received.
func (h *Handler) History(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	records, err := h.service.History(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	type entry struct {
		ID         string    `json:"id"`
		FromUserID string    `json:"from_user_id"`
		ToUserID   string    `json:"to_user_id"`
		Amount     int64     `json:"amount"`
		Timestamp  time.Time `json:"timestamp"`
	}
	out := make([]entry, 0, len(records))
	for _, rec := range records {
		out = append(out, entry{
			ID:         rec.ID,
			FromUserID: rec.FromUserID,
			ToUserID:   rec.ToUserID,
			Amount:     rec.Amount,
			Timestamp:  rec.Timestamp,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transfers": out})
}

func statusFor(res Result) int {
	if res.Success {
		return http.StatusCreated
	}
	switch res.Error {
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeUserNotFound:
		return http.StatusNotFound
	case ErrCodeInsufficientBalance:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
