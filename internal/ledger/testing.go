package ledger

import "time"

// SeedBalance is a test helper that seeds the balance for an account when using
// the in-memory ledger.
func SeedBalance(l Ledger, code string, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[code] = amount
	}
}

// SetClock is a test helper that pins the in-memory ledger's clock so tests can
// control transaction timestamps and limit windows.
func SetClock(l Ledger, now func() time.Time) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.now = now
	}
}
