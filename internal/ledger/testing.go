package ledger

// SeedBalance is a test helper that seeds the available balance for a user
// when using the in-memory ledger.
func SeedBalance(l Ledger, userID string, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if acc, exists := mem.accounts[userID]; exists {
			acc.Available = amount
		} else {
			mem.accounts[userID] = &Account{UserID: userID, Available: amount}
		}
	}
}

// SetTransferHook installs a function invoked between the debit and credit
// steps of an in-memory transfer, simulating a unit of work aborting
// mid-flight. A hook error must leave both balances untouched.
func SetTransferHook(l Ledger, fn func() error) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.transferHook = fn
	}
}
