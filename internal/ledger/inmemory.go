package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu        sync.RWMutex
	accounts  map[string]*Account
	deposits  map[string]*DepositRecord
	transfers []TransferRecord

	// transferHook runs between debit and credit to simulate a unit of work
	// failing mid-flight. Staged values are only published on success.
	transferHook func() error
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit
// tests and dev mode without Postgres.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		accounts: make(map[string]*Account),
		deposits: make(map[string]*DepositRecord),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.accounts[userID]; !exists {
		l.accounts[userID] = &Account{UserID: userID}
	}
	return nil
}

func (l *inMemoryLedger) Account(_ context.Context, userID string) (Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, exists := l.accounts[userID]
	if !exists {
		return Account{}, ErrAccountNotFound
	}
	return *acc, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, fromUserID, toUserID string, amount int64) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, fmt.Errorf("amount must be positive")
	}
	if fromUserID == toUserID {
		return TransferResult{}, ErrSameAccount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	from, ok := l.accounts[fromUserID]
	if !ok {
		return TransferResult{}, ErrAccountNotFound
	}
	to, ok := l.accounts[toUserID]
	if !ok {
		return TransferResult{}, ErrAccountNotFound
	}
	if from.Available < amount {
		return TransferResult{}, ErrInsufficientFunds
	}

	fromBalance := from.Available - amount
	if l.transferHook != nil {
		if err := l.transferHook(); err != nil {
			return TransferResult{}, err
		}
	}
	toBalance := to.Available + amount

	from.Available = fromBalance
	to.Available = toBalance

	rec := TransferRecord{
		ID:         uuid.NewString(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Amount:     amount,
		Timestamp:  time.Now().UTC(),
	}
	l.transfers = append(l.transfers, rec)

	return TransferResult{TransferID: rec.ID, FromBalance: fromBalance, ToBalance: toBalance}, nil
}

func (l *inMemoryLedger) CreatePendingDeposit(_ context.Context, userID, provider string, amount int64) (DepositRecord, error) {
	if amount < 0 {
		return DepositRecord{}, fmt.Errorf("amount must not be negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[userID]; !ok {
		return DepositRecord{}, ErrAccountNotFound
	}

	rec := DepositRecord{
		Token:     uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Status:    DepositStatusProcessing,
		Provider:  provider,
		StartTime: time.Now().UTC(),
	}
	l.deposits[rec.Token] = &rec
	return rec, nil
}

func (l *inMemoryLedger) FindPendingDeposit(_ context.Context, token string) (DepositRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.deposits[token]
	if !ok || rec.Status != DepositStatusProcessing {
		return DepositRecord{}, ErrDepositNotFound
	}
	return *rec, nil
}

func (l *inMemoryLedger) Settle(_ context.Context, token string, amount int64) (SettlementResult, error) {
	if amount <= 0 {
		return SettlementResult{}, fmt.Errorf("amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.deposits[token]
	if !ok {
		return SettlementResult{}, ErrDepositNotFound
	}
	if rec.Status != DepositStatusProcessing {
		return SettlementResult{}, ErrDepositNotFound
	}
	acc, ok := l.accounts[rec.UserID]
	if !ok {
		return SettlementResult{}, ErrAccountNotFound
	}

	acc.Available += amount
	rec.Amount = amount
	rec.Status = DepositStatusSuccess

	return SettlementResult{
		Token:      token,
		UserID:     rec.UserID,
		Amount:     amount,
		NewBalance: acc.Available,
		Outcome:    OutcomeApplied,
	}, nil
}

func (l *inMemoryLedger) FailDeposit(_ context.Context, token string) (SettlementResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.deposits[token]
	if !ok || rec.Status != DepositStatusProcessing {
		return SettlementResult{}, ErrDepositNotFound
	}
	rec.Status = DepositStatusFailure

	return SettlementResult{Token: token, UserID: rec.UserID, Outcome: OutcomeApplied}, nil
}

func (l *inMemoryLedger) ListDeposits(_ context.Context, userID string) ([]DepositRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var records []DepositRecord
	for _, rec := range l.deposits {
		if rec.UserID == userID {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartTime.After(records[j].StartTime)
	})
	return records, nil
}

func (l *inMemoryLedger) ListTransfers(_ context.Context, userID string) ([]TransferRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var records []TransferRecord
	for i := len(l.transfers) - 1; i >= 0; i-- {
		rec := l.transfers[i]
		if rec.FromUserID == userID || rec.ToUserID == userID {
			records = append(records, rec)
		}
	}
	return records, nil
}
