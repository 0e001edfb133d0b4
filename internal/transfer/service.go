package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rupaya-pay/rupaya/internal/identity"
	"github.com/rupaya-pay/rupaya/internal/ledger"
	"github.com/rupaya-pay/rupaya/internal/metrics"
	"github.com/rupaya-pay/rupaya/internal/notification"
)

// Error codes surfaced in transfer results.
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeTransferFailed      = "TRANSFER_FAILED"
)

// Input captures the data needed to move funds to another user.
type Input struct {
	ActorUserID       string
	DestinationNumber string
	Amount            int64
}

// Result is the structured outcome of a transfer attempt. Error is one of the
// ErrCode constants when Success is false.
type Result struct {
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	Message     string `json:"message,omitempty"`
	TransferID  string `json:"transfer_id,omitempty"`
	FromBalance int64  `json:"from_balance,omitempty"`
	ToBalance   int64  `json:"to_balance,omitempty"`
}

// Service executes p2p transfers against the ledger. The actor identity is an
// explicit parameter resolved by the caller; the engine never consults
// ambient session state.
type Service struct {
	ledger   ledger.Ledger
	users    identity.Repository
	notifier notification.Notifier
}

// NewService constructs a transfer service.
func NewService(l ledger.Ledger, users identity.Repository, notifier notification.Notifier) *Service {
	return &Service{ledger: l, users: users, notifier: notifier}
}

// Transfer moves amount from the actor to the user owning the destination
// phone number. All failure modes map to a structured result; the only
// returned error is a context failure from the ledger itself, already folded
// into the TRANSFER_FAILED result.
func (s *Service) Transfer(ctx context.Context, input Input) Result {
	timer := prometheus.NewTimer(metrics.TransferDuration)
	defer timer.ObserveDuration()

	if input.ActorUserID == "" {
		return s.fail(ErrCodeUnauthorized, "User not authenticated.")
	}
	if input.Amount <= 0 {
		return s.fail(ErrCodeTransferFailed, "Amount must be a positive number of paise.")
	}
	if input.DestinationNumber == "" {
		return s.fail(ErrCodeUserNotFound, "Recipient user not found.")
	}

	recipient, err := s.users.FindByPhone(ctx, input.DestinationNumber)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return s.fail(ErrCodeUserNotFound, "Recipient user not found.")
		}
		return s.fail(ErrCodeTransferFailed, "Transfer failed due to an unexpected error.")
	}
	if recipient.ID == input.ActorUserID {
		return s.fail(ErrCodeTransferFailed, "Cannot transfer to your own account.")
	}

	res, err := s.ledger.Transfer(ctx, input.ActorUserID, recipient.ID, input.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return s.fail(ErrCodeInsufficientBalance, "Insufficient funds.")
		case errors.Is(err, ledger.ErrAccountNotFound):
			return s.fail(ErrCodeUserNotFound, "Recipient user not found.")
		default:
			return s.fail(ErrCodeTransferFailed, "Transfer failed due to an unexpected error.")
		}
	}

	metrics.TransfersTotal.WithLabelValues("success").Inc()

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: recipient.ID,
			Body:        fmt.Sprintf("You received %s", formatPaise(input.Amount)),
		})
	}

	return Result{
		Success:     true,
		Message:     "Transfer completed successfully.",
		TransferID:  res.TransferID,
		FromBalance: res.FromBalance,
		ToBalance:   res.ToBalance,
	}
}

// History returns transfers the user participated in, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]ledger.TransferRecord, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	return s.ledger.ListTransfers(ctx, userID)
}

func (s *Service) fail(code, message string) Result {
	metrics.TransfersTotal.WithLabelValues(code).Inc()
	return Result{Success: false, Error: code, Message: message}
}

func formatPaise(amount int64) string {
	return fmt.Sprintf("₹%d.%02d", amount/100, amount%100)
}
