package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier matches the query surface shared by pgxpool.Pool, pgx.Tx and test doubles.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB adds transaction control on top of Querier.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	_ DB      = (*pgxpool.Pool)(nil)
	_ Querier = (pgx.Tx)(nil)
)

// PostgresLedger persists balances, deposits and transfers in PostgreSQL.
// Every mutating operation runs inside a single transaction so other readers
// never observe a half-applied debit, credit or status change.
type PostgresLedger struct {
	db DB
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees a zero balance row exists for the user.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, userID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(ctx, `INSERT INTO balances (user_id, available, locked) VALUES ($1, 0, 0)
        ON CONFLICT (user_id) DO NOTHING`, uid)
	return err
}

// Account returns available and locked funds for the user.
func (l *PostgresLedger) Account(ctx context.Context, userID string) (Account, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Account{}, err
	}
	acc := Account{UserID: userID}
	err = l.db.QueryRow(ctx, `SELECT available, locked FROM balances WHERE user_id = $1`, uid).
		Scan(&acc.Available, &acc.Locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return acc, nil
}

// Transfer moves amount between two users' available balances in one transaction.
func (l *PostgresLedger) Transfer(ctx context.Context, fromUserID, toUserID string, amount int64) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, fmt.Errorf("amount must be positive")
	}
	if fromUserID == toUserID {
		return TransferResult{}, ErrSameAccount
	}
	fromID, err := uuid.Parse(fromUserID)
	if err != nil {
		return TransferResult{}, err
	}
	toID, err := uuid.Parse(toUserID)
	if err != nil {
		return TransferResult{}, err
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Exclusive lock on the debited row. A plain read-check-write races under
	// concurrent transfers and can overdraw; the lock serializes debits on
	// this account. Only the source is locked since credits never fail on
	// capacity.
	var available int64
	err = tx.QueryRow(ctx, `SELECT available FROM balances WHERE user_id = $1 FOR UPDATE`, fromID).
		Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransferResult{}, ErrAccountNotFound
		}
		return TransferResult{}, err
	}
	if available < amount {
		return TransferResult{}, ErrInsufficientFunds
	}

	var fromBalance int64
	err = tx.QueryRow(ctx, `UPDATE balances SET available = available - $2
        WHERE user_id = $1 AND available >= $2 RETURNING available`, fromID, amount).
		Scan(&fromBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransferResult{}, ErrInsufficientFunds
		}
		return TransferResult{}, err
	}

	var toBalance int64
	err = tx.QueryRow(ctx, `UPDATE balances SET available = available + $2
        WHERE user_id = $1 RETURNING available`, toID, amount).
		Scan(&toBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransferResult{}, ErrAccountNotFound
		}
		return TransferResult{}, err
	}

	transferID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO p2p_transfers (id, from_user_id, to_user_id, amount, created_at)
        VALUES ($1, $2, $3, $4, $5)`, transferID, fromID, toID, amount, time.Now().UTC()); err != nil {
		return TransferResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{TransferID: transferID.String(), FromBalance: fromBalance, ToBalance: toBalance}, nil
}

// CreatePendingDeposit issues a token and inserts a Processing deposit row.
func (l *PostgresLedger) CreatePendingDeposit(ctx context.Context, userID, provider string, amount int64) (DepositRecord, error) {
	if amount < 0 {
		return DepositRecord{}, fmt.Errorf("amount must not be negative")
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return DepositRecord{}, err
	}

	rec := DepositRecord{
		Token:     uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Status:    DepositStatusProcessing,
		Provider:  provider,
		StartTime: time.Now().UTC(),
	}
	_, err = l.db.Exec(ctx, `INSERT INTO onramp_transactions (token, user_id, amount, status, provider, start_time)
        VALUES ($1, $2, $3, $4, $5, $6)`, rec.Token, uid, rec.Amount, rec.Status, rec.Provider, rec.StartTime)
	if err != nil {
		return DepositRecord{}, err
	}
	return rec, nil
}

// FindPendingDeposit returns the Processing deposit for the token.
func (l *PostgresLedger) FindPendingDeposit(ctx context.Context, token string) (DepositRecord, error) {
	return scanPendingDeposit(ctx, l.db, token)
}

// Settle credits the deposit owner and finalizes the deposit as Success.
// The status filter on the conditional UPDATE doubles as the concurrency
// guard: exactly one of any number of racing settlement attempts applies.
func (l *PostgresLedger) Settle(ctx context.Context, token string, amount int64) (SettlementResult, error) {
	if amount <= 0 {
		return SettlementResult{}, fmt.Errorf("amount must be positive")
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return SettlementResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	rec, err := scanPendingDeposit(ctx, tx, token)
	if err != nil {
		return SettlementResult{}, err
	}
	uid, err := uuid.Parse(rec.UserID)
	if err != nil {
		return SettlementResult{}, err
	}

	var newBalance int64
	err = tx.QueryRow(ctx, `UPDATE balances SET available = available + $2
        WHERE user_id = $1 RETURNING available`, uid, amount).
		Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SettlementResult{}, ErrAccountNotFound
		}
		return SettlementResult{}, err
	}

	// Provider-asserted amount replaces any pre-declared one on the record.
	cmd, err := tx.Exec(ctx, `UPDATE onramp_transactions SET status = $2, amount = $3
        WHERE token = $1 AND status = $4`, token, DepositStatusSuccess, amount, DepositStatusProcessing)
	if err != nil {
		return SettlementResult{}, err
	}
	if cmd.RowsAffected() == 0 {
		// Lost the race to a concurrent settlement. The deferred rollback
		// discards the credit above so the token is credited at most once.
		return SettlementResult{Token: token, UserID: rec.UserID, Outcome: OutcomeAlreadyApplied}, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return SettlementResult{}, err
	}

	return SettlementResult{
		Token:      token,
		UserID:     rec.UserID,
		Amount:     amount,
		NewBalance: newBalance,
		Outcome:    OutcomeApplied,
	}, nil
}

// FailDeposit finalizes the deposit as Failure without crediting.
func (l *PostgresLedger) FailDeposit(ctx context.Context, token string) (SettlementResult, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return SettlementResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	rec, err := scanPendingDeposit(ctx, tx, token)
	if err != nil {
		return SettlementResult{}, err
	}

	cmd, err := tx.Exec(ctx, `UPDATE onramp_transactions SET status = $2
        WHERE token = $1 AND status = $3`, token, DepositStatusFailure, DepositStatusProcessing)
	if err != nil {
		return SettlementResult{}, err
	}
	if cmd.RowsAffected() == 0 {
		return SettlementResult{Token: token, UserID: rec.UserID, Outcome: OutcomeAlreadyApplied}, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return SettlementResult{}, err
	}

	return SettlementResult{Token: token, UserID: rec.UserID, Outcome: OutcomeApplied}, nil
}

// ListDeposits returns the user's deposit history, newest first.
func (l *PostgresLedger) ListDeposits(ctx context.Context, userID string) ([]DepositRecord, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, err
	}
	rows, err := l.db.Query(ctx, `SELECT token, user_id, amount, status, provider, start_time
        FROM onramp_transactions WHERE user_id = $1 ORDER BY start_time DESC`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DepositRecord
	for rows.Next() {
		var rec DepositRecord
		var owner uuid.UUID
		if err := rows.Scan(&rec.Token, &owner, &rec.Amount, &rec.Status, &rec.Provider, &rec.StartTime); err != nil {
			return nil, err
		}
		rec.UserID = owner.String()
		rec.StartTime = rec.StartTime.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListTransfers returns transfers the user sent or received, newest first.
func (l *PostgresLedger) ListTransfers(ctx context.Context, userID string) ([]TransferRecord, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, err
	}
	rows, err := l.db.Query(ctx, `SELECT id, from_user_id, to_user_id, amount, created_at
        FROM p2p_transfers WHERE from_user_id = $1 OR to_user_id = $1 ORDER BY created_at DESC`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TransferRecord
	for rows.Next() {
		var rec TransferRecord
		var id, from, to uuid.UUID
		if err := rows.Scan(&id, &from, &to, &rec.Amount, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.ID = id.String()
		rec.FromUserID = from.String()
		rec.ToUserID = to.String()
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanPendingDeposit(ctx context.Context, q Querier, token string) (DepositRecord, error) {
	var rec DepositRecord
	var owner uuid.UUID
	err := q.QueryRow(ctx, `SELECT token, user_id, amount, status, provider, start_time
        FROM onramp_transactions WHERE token = $1 AND status = $2`, token, DepositStatusProcessing).
		Scan(&rec.Token, &owner, &rec.Amount, &rec.Status, &rec.Provider, &rec.StartTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DepositRecord{}, ErrDepositNotFound
		}
		return DepositRecord{}, err
	}
	rec.UserID = owner.String()
	rec.StartTime = rec.StartTime.UTC()
	return rec, nil
}
