package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rupaya-pay/rupaya/internal/ledger"
	"github.com/rupaya-pay/rupaya/internal/metrics"
	"github.com/rupaya-pay/rupaya/internal/notification"
)

// ErrInvalidAmount is returned when the provider asserts a non-positive amount.
var ErrInvalidAmount = errors.New("amount must be a positive number of paise")

// Input is one provider webhook delivery after parsing.
type Input struct {
	Token          string
	UserIdentifier string
	Amount         int64
}

// Service finalizes bank deposits out of webhook deliveries. All balance and
// status mutations happen inside the ledger's atomic unit of work; the service
// adds validation, ownership checks, metrics, and notifications on top.
type Service struct {
	ledger   ledger.Ledger
	notifier notification.Notifier
	logger   *slog.Logger
}

func NewService(l ledger.Ledger, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: l, notifier: notifier, logger: logger}
}

// Settle credits the deposit's owner and moves the record to Success. The
// provider-asserted amount is authoritative and replaces the amount declared
// at initiation. A token that is unknown, already terminal, or owned by a
// different user than the webhook claims settles nothing and returns
// ledger.ErrDepositNotFound.
func (s *Service) Settle(ctx context.Context, input Input) (ledger.SettlementResult, error) {
	start := time.Now()

	if input.Token == "" {
		return ledger.SettlementResult{}, fmt.Errorf("%w: empty token", ledger.ErrDepositNotFound)
	}
	if input.Amount <= 0 {
		return ledger.SettlementResult{}, ErrInvalidAmount
	}

	pending, err := s.ledger.FindPendingDeposit(ctx, input.Token)
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("not_found").Inc()
		return ledger.SettlementResult{}, err
	}
	if input.UserIdentifier != "" && pending.UserID != input.UserIdentifier {
		// The credit always goes to the record's owner. A webhook naming
		// someone else is treated as referencing a deposit that does not
		// exist rather than silently re-routing money.
		metrics.SettlementsTotal.WithLabelValues("owner_mismatch").Inc()
		return ledger.SettlementResult{}, fmt.Errorf("%w: token not owned by declared user", ledger.ErrDepositNotFound)
	}

	result, err := s.ledger.Settle(ctx, input.Token, input.Amount)
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("error").Inc()
		return ledger.SettlementResult{}, err
	}
	metrics.SettlementDuration.Observe(time.Since(start).Seconds())

	switch result.Outcome {
	case ledger.OutcomeApplied:
		metrics.SettlementsTotal.WithLabelValues("applied").Inc()
		s.notify(ctx, result)
	case ledger.OutcomeAlreadyApplied:
		metrics.SettlementsTotal.WithLabelValues("already_applied").Inc()
		s.logger.Info("settlement raced a concurrent delivery, no-op", "token", result.Token)
	}
	return result, nil
}

// Fail moves a Processing deposit to Failure without crediting anything.
// Banks deliver this when the user abandons or the payment bounces.
func (s *Service) Fail(ctx context.Context, token string) (ledger.SettlementResult, error) {
	if token == "" {
		return ledger.SettlementResult{}, fmt.Errorf("%w: empty token", ledger.ErrDepositNotFound)
	}
	result, err := s.ledger.FailDeposit(ctx, token)
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("error").Inc()
		return ledger.SettlementResult{}, err
	}
	metrics.SettlementsTotal.WithLabelValues("failed").Inc()
	return result, nil
}

func (s *Service) notify(ctx context.Context, result ledger.SettlementResult) {
	if s.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:        notification.KindDepositSettled,
		Destination: result.UserID,
		Body:        fmt.Sprintf("Your deposit of %s has been credited.", formatPaise(result.Amount)),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("settlement notification failed", "token", result.Token, "error", err)
	}
}

func formatPaise(amount int64) string {
	return fmt.Sprintf("₹%d.%02d", amount/100, amount%100)
}
