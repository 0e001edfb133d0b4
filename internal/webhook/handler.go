package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/rupaya-pay/rupaya/internal/ledger"
	"github.com/rupaya-pay/rupaya/internal/settlement"
)

// SignatureHeader carries the provider's hex HMAC-SHA256 over the raw body.
const SignatureHeader = "X-Webhook-Signature"

// Handler terminates provider callbacks. Deliveries are at-least-once and
// unordered; all idempotency lives in the settlement path, the handler only
// parses strictly and maps outcomes to statuses.
type Handler struct {
	service *Service
}

// Service is the slice of the settlement engine the webhook needs.
type Service struct {
	settlements *settlement.Service
	secret      []byte
}

func NewService(settlements *settlement.Service, secret string) *Service {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &Service{settlements: settlements, secret: key}
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type bankPayload struct {
	Token          string `json:"token"`
	UserIdentifier string `json:"user_identifier"`
	Amount         string `json:"amount"`
}

type failurePayload struct {
	Token string `json:"token"`
}

// Settle handles a successful bank payment callback.
func (h *Handler) Settle(c *fiber.Ctx) error {
	body, err := h.service.verifiedBody(c)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}

	var payload bankPayload
	if err := strictUnmarshal(body, &payload); err != nil {
		return badRequest(c, "malformed payload")
	}
	if payload.Token == "" || payload.Amount == "" {
		return badRequest(c, "token and amount are required")
	}
	amount, err := strconv.ParseInt(payload.Amount, 10, 64)
	if err != nil || amount <= 0 {
		return badRequest(c, "amount must be a positive integer string of paise")
	}

	result, err := h.service.settlements.Settle(c.UserContext(), settlement.Input{
		Token:          payload.Token,
		UserIdentifier: payload.UserIdentifier,
		Amount:         amount,
	})
	switch {
	case errors.Is(err, ledger.ErrDepositNotFound), errors.Is(err, settlement.ErrInvalidAmount):
		return badRequest(c, "unknown or already finalized token")
	case err != nil:
		return fiber.NewError(http.StatusInternalServerError, "error while processing webhook")
	}

	if result.Outcome == ledger.OutcomeAlreadyApplied {
		return c.Status(http.StatusOK).JSON(fiber.Map{"message": "already settled"})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "captured"})
}

// Fail handles a bank callback for an abandoned or bounced payment.
func (h *Handler) Fail(c *fiber.Ctx) error {
	body, err := h.service.verifiedBody(c)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}

	var payload failurePayload
	if err := strictUnmarshal(body, &payload); err != nil {
		return badRequest(c, "malformed payload")
	}
	if payload.Token == "" {
		return badRequest(c, "token is required")
	}

	if _, err := h.service.settlements.Fail(c.UserContext(), payload.Token); err != nil {
		if errors.Is(err, ledger.ErrDepositNotFound) {
			return badRequest(c, "unknown or already finalized token")
		}
		return fiber.NewError(http.StatusInternalServerError, "error while processing webhook")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "marked failed"})
}

// verifiedBody returns the raw body after checking the provider signature.
// Verification is skipped when no shared secret is configured.
func (s *Service) verifiedBody(c *fiber.Ctx) ([]byte, error) {
	body := c.Body()
	if len(s.secret) == 0 {
		return body, nil
	}

	sig, err := hex.DecodeString(c.Get(SignatureHeader))
	if err != nil {
		return nil, errors.New("invalid signature")
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, errors.New("invalid signature")
	}
	return body, nil
}

// Sign computes the hex signature a provider would attach to body. Exposed
// for simulators and tests.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func strictUnmarshal(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": message})
}
