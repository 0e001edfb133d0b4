package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rupaya-pay/rupaya/internal/ledger"
	"github.com/rupaya-pay/rupaya/internal/logging"
	"github.com/rupaya-pay/rupaya/internal/notification"
)

type testNotifier struct {
	mu   sync.Mutex
	sent int
	last notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	n.last = msg
	return nil
}

func setup(t *testing.T) (ledger.Ledger, *testNotifier, *Service) {
	t.Helper()
	led := ledger.NewInMemory()
	notifier := &testNotifier{}
	svc := NewService(led, notifier, logging.Discard())
	return led, notifier, svc
}

func pendingDeposit(t *testing.T, led ledger.Ledger, userID string, amount int64) ledger.DepositRecord {
	t.Helper()
	ctx := context.Background()
	if err := led.EnsureAccount(ctx, userID); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	record, err := led.CreatePendingDeposit(ctx, userID, "HDFC Bank", amount)
	if err != nil {
		t.Fatalf("create pending deposit: %v", err)
	}
	return record
}

func TestSettleCreditsOwnerOnce(t *testing.T) {
	led, notifier, svc := setup(t)
	ctx := context.Background()

	record := pendingDeposit(t, led, "u1", 10000)

	result, err := svc.Settle(ctx, Input{Token: record.Token, UserIdentifier: "u1", Amount: 10000})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Outcome != ledger.OutcomeApplied || result.NewBalance != 10000 {
		t.Fatalf("unexpected result: %+v", result)
	}

	deposits, _ := led.ListDeposits(ctx, "u1")
	if len(deposits) != 1 || deposits[0].Status != ledger.DepositStatusSuccess {
		t.Fatalf("expected one Success deposit, got %+v", deposits)
	}

	// Redelivery of the same token must not credit again.
	_, err = svc.Settle(ctx, Input{Token: record.Token, UserIdentifier: "u1", Amount: 10000})
	if !errors.Is(err, ledger.ErrDepositNotFound) {
		t.Fatalf("expected ErrDepositNotFound on redelivery, got %v", err)
	}

	acc, _ := led.Account(ctx, "u1")
	if acc.Available != 10000 {
		t.Fatalf("expected balance 10000 after redelivery, got %d", acc.Available)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.sent != 1 || notifier.last.Kind != notification.KindDepositSettled {
		t.Fatalf("expected exactly one settlement notification, got %d (%+v)", notifier.sent, notifier.last)
	}
}

func TestSettleUsesProviderAssertedAmount(t *testing.T) {
	led, _, svc := setup(t)
	ctx := context.Background()

	record := pendingDeposit(t, led, "u1", 10000)

	// The bank captured a partial amount; the webhook's figure wins.
	result, err := svc.Settle(ctx, Input{Token: record.Token, UserIdentifier: "u1", Amount: 7500})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Amount != 7500 || result.NewBalance != 7500 {
		t.Fatalf("unexpected result: %+v", result)
	}

	deposits, _ := led.ListDeposits(ctx, "u1")
	if deposits[0].Amount != 7500 {
		t.Fatalf("record should carry the settled amount, got %+v", deposits[0])
	}
}

func TestSettleRejectsOwnerMismatch(t *testing.T) {
	led, notifier, svc := setup(t)
	ctx := context.Background()

	record := pendingDeposit(t, led, "u1", 10000)

	_, err := svc.Settle(ctx, Input{Token: record.Token, UserIdentifier: "mallory", Amount: 10000})
	if !errors.Is(err, ledger.ErrDepositNotFound) {
		t.Fatalf("expected ErrDepositNotFound, got %v", err)
	}

	acc, _ := led.Account(ctx, "u1")
	if acc.Available != 0 {
		t.Fatalf("mismatched webhook credited money: %d", acc.Available)
	}
	if notifier.sent != 0 {
		t.Fatal("no notification expected for a rejected delivery")
	}

	// The deposit stays Processing and a correct delivery still settles it.
	result, err := svc.Settle(ctx, Input{Token: record.Token, UserIdentifier: "u1", Amount: 10000})
	if err != nil || result.Outcome != ledger.OutcomeApplied {
		t.Fatalf("expected later correct delivery to apply, got %+v, %v", result, err)
	}
}

func TestSettleUnknownToken(t *testing.T) {
	_, _, svc := setup(t)

	_, err := svc.Settle(context.Background(), Input{Token: "tok_missing", UserIdentifier: "u1", Amount: 100})
	if !errors.Is(err, ledger.ErrDepositNotFound) {
		t.Fatalf("expected ErrDepositNotFound, got %v", err)
	}
}

func TestSettleRejectsNonPositiveAmount(t *testing.T) {
	led, _, svc := setup(t)
	record := pendingDeposit(t, led, "u1", 10000)

	for _, amount := range []int64{0, -100} {
		_, err := svc.Settle(context.Background(), Input{Token: record.Token, UserIdentifier: "u1", Amount: amount})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestFailMarksDepositWithoutCredit(t *testing.T) {
	led, _, svc := setup(t)
	ctx := context.Background()

	record := pendingDeposit(t, led, "u1", 10000)

	result, err := svc.Fail(ctx, record.Token)
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if result.Outcome != ledger.OutcomeApplied {
		t.Fatalf("unexpected outcome: %+v", result)
	}

	acc, _ := led.Account(ctx, "u1")
	if acc.Available != 0 {
		t.Fatalf("failed deposit credited money: %d", acc.Available)
	}
	deposits, _ := led.ListDeposits(ctx, "u1")
	if deposits[0].Status != ledger.DepositStatusFailure {
		t.Fatalf("expected Failure status, got %+v", deposits[0])
	}

	// A success webhook arriving after the failure settles nothing.
	_, err = svc.Settle(ctx, Input{Token: record.Token, UserIdentifier: "u1", Amount: 10000})
	if !errors.Is(err, ledger.ErrDepositNotFound) {
		t.Fatalf("expected ErrDepositNotFound after failure, got %v", err)
	}
}

func TestConcurrentDeliveriesCreditOnce(t *testing.T) {
	led, _, svc := setup(t)
	ctx := context.Background()

	record := pendingDeposit(t, led, "u1", 10000)

	const deliveries = 8
	var wg sync.WaitGroup
	errs := make(chan error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Settle(ctx, Input{Token: record.Token, UserIdentifier: "u1", Amount: 10000})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var applied int
	for err := range errs {
		if err == nil {
			applied++
		} else if !errors.Is(err, ledger.ErrDepositNotFound) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if applied < 1 {
		t.Fatal("expected at least one delivery to apply")
	}

	acc, _ := led.Account(ctx, "u1")
	if acc.Available != 10000 {
		t.Fatalf("expected exactly one credit, balance %d", acc.Available)
	}
}
