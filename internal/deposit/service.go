package deposit

import (
	"context"
	"errors"
	"fmt"

	"github.com/rupaya-pay/rupaya/internal/ledger"
	"github.com/rupaya-pay/rupaya/internal/metrics"
)

// ErrUnsupportedProvider is returned when the requested bank is not in the
// on-ramp catalogue.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// ErrInvalidAmount is returned for zero or negative deposit amounts.
var ErrInvalidAmount = errors.New("amount must be a positive number of paise")

// Provider is a bank the user can deposit from. The redirect URL points at
// the bank's netbanking page; the bank calls our webhook when the money moves.
type Provider struct {
	Name        string `json:"name"`
	RedirectURL string `json:"redirect_url"`
}

// SupportedProviders is the on-ramp catalogue, in display order.
var SupportedProviders = []Provider{
	{Name: "HDFC Bank", RedirectURL: "https://netbanking.hdfcbank.com"},
	{Name: "Axis Bank", RedirectURL: "https://www.axisbank.com"},
}

// Service starts bank deposits and lists their history. Settlement of a
// started deposit happens later, on the bank's webhook.
type Service struct {
	ledger ledger.Ledger
}

func NewService(l ledger.Ledger) *Service {
	return &Service{ledger: l}
}

// Initiate records a Processing deposit for the user and returns the token
// and redirect URL the client needs to hand control to the bank.
func (s *Service) Initiate(ctx context.Context, userID, provider string, amount int64) (ledger.DepositRecord, string, error) {
	if amount <= 0 {
		return ledger.DepositRecord{}, "", ErrInvalidAmount
	}

	redirect, ok := providerRedirect(provider)
	if !ok {
		return ledger.DepositRecord{}, "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}

	record, err := s.ledger.CreatePendingDeposit(ctx, userID, provider, amount)
	if err != nil {
		return ledger.DepositRecord{}, "", err
	}

	metrics.DepositsInitiated.Inc()
	return record, redirect, nil
}

// List returns the user's deposits, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]ledger.DepositRecord, error) {
	return s.ledger.ListDeposits(ctx, userID)
}

func providerRedirect(name string) (string, bool) {
	for _, p := range SupportedProviders {
		if p.Name == name {
			return p.RedirectURL, true
		}
	}
	return "", false
}
