package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound indicates no balance row exists for the requested user.
	ErrAccountNotFound = errors.New("account not found")

	// ErrDepositNotFound indicates no deposit in Processing state matches the
	// token. Terminal deposits are deliberately indistinguishable from unknown
	// tokens so a replayed webhook learns nothing.
	ErrDepositNotFound = errors.New("deposit not found or not processing")

	// ErrSameAccount rejects transfers where source and destination coincide.
	ErrSameAccount = errors.New("source and destination accounts are identical")
)

const (
	// DepositStatusProcessing marks a deposit intent awaiting provider settlement.
	DepositStatusProcessing = "Processing"
	// DepositStatusSuccess marks a settled deposit. Terminal.
	DepositStatusSuccess = "Success"
	// DepositStatusFailure marks a failed deposit. Terminal.
	DepositStatusFailure = "Failure"
)

// FinalizeOutcome reports whether a conditional status transition applied or
// lost the race to a concurrent attempt.
type FinalizeOutcome int

const (
	// OutcomeApplied means this call performed the transition.
	OutcomeApplied FinalizeOutcome = iota
	// OutcomeAlreadyApplied means another attempt finalized the deposit first.
	// Callers must treat this as a benign no-op, never as a hard error.
	OutcomeAlreadyApplied
)

// Account holds per-user balance state in integer minor units (paise).
type Account struct {
	UserID    string
	Available int64
	Locked    int64
}

// DepositRecord tracks an externally funded deposit intent through its lifecycle.
type DepositRecord struct {
	Token     string
	UserID    string
	Amount    int64
	Status    string
	Provider  string
	StartTime time.Time
}

// TransferRecord is the immutable audit trail of a completed p2p transfer.
type TransferRecord struct {
	ID         string
	FromUserID string
	ToUserID   string
	Amount     int64
	Timestamp  time.Time
}

// TransferResult captures the outcome of a ledger transfer posting.
type TransferResult struct {
	TransferID  string
	FromBalance int64
	ToBalance   int64
}

// SettlementResult captures the outcome of finalizing a deposit.
type SettlementResult struct {
	Token      string
	UserID     string
	Amount     int64
	NewBalance int64
	Outcome    FinalizeOutcome
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// All multi-step mutations happen inside one atomic unit of work; no partial
// debit, credit, or status change is ever observable to other callers.
type Ledger interface {
	// EnsureAccount creates the zero balance row for a user if absent.
	EnsureAccount(ctx context.Context, userID string) error

	// Account returns available and locked funds for the user.
	Account(ctx context.Context, userID string) (Account, error)

	// Transfer atomically moves amount from one user's available balance to
	// another's, appending a TransferRecord. The source row is exclusively
	// locked for the duration so concurrent debits serialize on it.
	Transfer(ctx context.Context, fromUserID, toUserID string, amount int64) (TransferResult, error)

	// CreatePendingDeposit issues a unique token and inserts a Processing row.
	CreatePendingDeposit(ctx context.Context, userID, provider string, amount int64) (DepositRecord, error)

	// FindPendingDeposit returns the Processing deposit for the token, or
	// ErrDepositNotFound when the token is unknown or already terminal.
	FindPendingDeposit(ctx context.Context, token string) (DepositRecord, error)

	// Settle credits the deposit owner's available balance and transitions the
	// deposit Processing -> Success via compare-and-swap on status. Losing the
	// CAS rolls back the credit and reports OutcomeAlreadyApplied.
	Settle(ctx context.Context, token string, amount int64) (SettlementResult, error)

	// FailDeposit transitions the deposit Processing -> Failure without
	// crediting, under the same compare-and-swap discipline.
	FailDeposit(ctx context.Context, token string) (SettlementResult, error)

	// ListDeposits returns the user's deposit history, newest first.
	ListDeposits(ctx context.Context, userID string) ([]DepositRecord, error)

	// ListTransfers returns transfers the user sent or received, newest first.
	ListTransfers(ctx context.Context, userID string) ([]TransferRecord, error)
}
