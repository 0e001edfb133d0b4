package transfer

import (
	"context"
	"sync"
	"testing"

	"github.com/rupaya-pay/rupaya/internal/identity"
	"github.com/rupaya-pay/rupaya/internal/ledger"
	"github.com/rupaya-pay/rupaya/internal/notification"
)

type testNotifier struct {
	mu   sync.Mutex
	last notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = msg
	return nil
}

func setup(t *testing.T) (ledger.Ledger, identity.Repository, *testNotifier, *Service) {
	t.Helper()
	led := ledger.NewInMemory()
	users := identity.NewMemoryRepository()
	notifier := &testNotifier{}
	svc := NewService(led, users, notifier)
	return led, users, notifier, svc
}

func registerUser(t *testing.T, led ledger.Ledger, users identity.Repository, phone string) identity.User {
	t.Helper()
	ctx := context.Background()
	user, err := identity.NewService(users).Register(ctx, identity.Credentials{Phone: phone, Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("register %s: %v", phone, err)
	}
	if err := led.EnsureAccount(ctx, user.ID); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	return user
}

func TestTransferSuccess(t *testing.T) {
	led, users, notifier, svc := setup(t)
	ctx := context.Background()

	alice := registerUser(t, led, users, "9876543210")
	bob := registerUser(t, led, users, "9123456780")
	ledger.SeedBalance(led, alice.ID, 500)

	res := svc.Transfer(ctx, Input{ActorUserID: alice.ID, DestinationNumber: "9123456780", Amount: 200})
	if !res.Success {
		t.Fatalf("transfer failed: %+v", res)
	}
	if res.FromBalance != 300 || res.ToBalance != 200 {
		t.Fatalf("unexpected balances: %+v", res)
	}

	accA, _ := led.Account(ctx, alice.ID)
	accB, _ := led.Account(ctx, bob.ID)
	if accA.Available != 300 || accB.Available != 200 {
		t.Fatalf("ledger balances wrong: a=%d b=%d", accA.Available, accB.Available)
	}

	records, _ := led.ListTransfers(ctx, alice.ID)
	if len(records) != 1 || records[0].Amount != 200 {
		t.Fatalf("expected one transfer record of 200, got %+v", records)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.last.Kind != notification.KindTransferReceived || notifier.last.Destination != bob.ID {
		t.Fatalf("expected recipient notification, got %+v", notifier.last)
	}
}

func TestTransferUnauthenticated(t *testing.T) {
	_, _, _, svc := setup(t)

	res := svc.Transfer(context.Background(), Input{DestinationNumber: "9123456780", Amount: 100})
	if res.Success || res.Error != ErrCodeUnauthorized {
		t.Fatalf("expected UNAUTHORIZED, got %+v", res)
	}
}

func TestTransferRecipientNotFound(t *testing.T) {
	led, users, _, svc := setup(t)

	alice := registerUser(t, led, users, "9876543210")
	ledger.SeedBalance(led, alice.ID, 500)

	res := svc.Transfer(context.Background(), Input{ActorUserID: alice.ID, DestinationNumber: "0000000000", Amount: 100})
	if res.Success || res.Error != ErrCodeUserNotFound {
		t.Fatalf("expected USER_NOT_FOUND, got %+v", res)
	}

	acc, _ := led.Account(context.Background(), alice.ID)
	if acc.Available != 500 {
		t.Fatalf("balance mutated on failed transfer: %d", acc.Available)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	led, users, _, svc := setup(t)

	alice := registerUser(t, led, users, "9876543210")
	registerUser(t, led, users, "9123456780")
	ledger.SeedBalance(led, alice.ID, 50)

	res := svc.Transfer(context.Background(), Input{ActorUserID: alice.ID, DestinationNumber: "9123456780", Amount: 100})
	if res.Success || res.Error != ErrCodeInsufficientBalance {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %+v", res)
	}

	acc, _ := led.Account(context.Background(), alice.ID)
	if acc.Available != 50 {
		t.Fatalf("balance mutated on rejected transfer: %d", acc.Available)
	}
}

func TestTransferRejectsNonPositiveAmount(t *testing.T) {
	led, users, _, svc := setup(t)

	alice := registerUser(t, led, users, "9876543210")
	registerUser(t, led, users, "9123456780")

	for _, amount := range []int64{0, -100} {
		res := svc.Transfer(context.Background(), Input{ActorUserID: alice.ID, DestinationNumber: "9123456780", Amount: amount})
		if res.Success || res.Error != ErrCodeTransferFailed {
			t.Fatalf("expected TRANSFER_FAILED for amount %d, got %+v", amount, res)
		}
	}
}

func TestTransferRejectsSelf(t *testing.T) {
	led, users, _, svc := setup(t)

	alice := registerUser(t, led, users, "9876543210")
	ledger.SeedBalance(led, alice.ID, 500)

	res := svc.Transfer(context.Background(), Input{ActorUserID: alice.ID, DestinationNumber: "9876543210", Amount: 100})
	if res.Success || res.Error != ErrCodeTransferFailed {
		t.Fatalf("expected self transfer rejection, got %+v", res)
	}
}

func TestTransferLedgerFailureRollsBack(t *testing.T) {
	led, users, _, svc := setup(t)

	alice := registerUser(t, led, users, "9876543210")
	registerUser(t, led, users, "9123456780")
	ledger.SeedBalance(led, alice.ID, 500)

	ledger.SetTransferHook(led, func() error { return context.DeadlineExceeded })

	res := svc.Transfer(context.Background(), Input{ActorUserID: alice.ID, DestinationNumber: "9123456780", Amount: 100})
	if res.Success || res.Error != ErrCodeTransferFailed {
		t.Fatalf("expected TRANSFER_FAILED, got %+v", res)
	}

	acc, _ := led.Account(context.Background(), alice.ID)
	if acc.Available != 500 {
		t.Fatalf("aborted unit of work leaked a debit: %d", acc.Available)
	}
}

func TestConcurrentTransfersDrainExactly(t *testing.T) {
	led, users, _, svc := setup(t)
	ctx := context.Background()

	alice := registerUser(t, led, users, "9876543210")
	registerUser(t, led, users, "9123456780")

	const workers = 8
	const amount = int64(250)
	ledger.SeedBalance(led, alice.ID, (workers-1)*amount)

	var wg sync.WaitGroup
	results := make(chan Result, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Transfer(ctx, Input{ActorUserID: alice.ID, DestinationNumber: "9123456780", Amount: amount})
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, insufficient int
	for res := range results {
		switch {
		case res.Success:
			succeeded++
		case res.Error == ErrCodeInsufficientBalance:
			insufficient++
		default:
			t.Fatalf("unexpected result: %+v", res)
		}
	}
	if succeeded != workers-1 || insufficient != 1 {
		t.Fatalf("expected %d successes and 1 failure, got %d/%d", workers-1, succeeded, insufficient)
	}

	acc, _ := led.Account(ctx, alice.ID)
	if acc.Available != 0 {
		t.Fatalf("expected source drained to 0, got %d", acc.Available)
	}
}
