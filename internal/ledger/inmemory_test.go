package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var testSchedule = FeeSchedule{Rate: 0.01, Min: 1, Max: 500}

func TestInMemoryLedger_TransferAppliesFee(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	if err := l.EnsureAccount(ctx, "wallet:a"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	SeedBalance(l, "wallet:a", 1_000)

	tx, err := l.ApplyTransfer(ctx, TransferPosting{
		AccountCode:  "wallet:a",
		Counterparty: "beneficiary:b",
		ClientTxID:   "client-1",
		Amount:       200,
		Schedule:     testSchedule,
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if tx.Fee != 2 {
		t.Fatalf("expected fee 2, got %d", tx.Fee)
	}
	if tx.Amount != -202 {
		t.Fatalf("expected signed amount -202, got %d", tx.Amount)
	}
	if tx.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", tx.Status)
	}

	balance, err := l.Balance(ctx, "wallet:a")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 798 {
		t.Fatalf("expected balance 798, got %d", balance)
	}
}

func TestInMemoryLedger_PostingsStayBalanced(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a")
	SeedBalance(l, "wallet:a", 10_000)

	if _, err := l.ApplyTransfer(ctx, TransferPosting{
		AccountCode: "wallet:a", Counterparty: "beneficiary:b",
		ClientTxID: "client-1", Amount: 1_500, Schedule: testSchedule,
	}); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	mem := l.(*inMemoryLedger)
	total := mem.balances["wallet:a"] + mem.balances[SettlementAccountCode] + mem.balances[FeeAccountCode]
	if total != 10_000 {
		t.Fatalf("ledger not balanced, total=%d", total)
	}
}

func TestInMemoryLedger_InsufficientFundsLeavesBalanceUnchanged(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a")
	SeedBalance(l, "wallet:a", 100)

	// 100 covers the amount but not amount+fee.
	if _, err := l.ApplyTransfer(ctx, TransferPosting{
		AccountCode: "wallet:a", ClientTxID: "client-1", Amount: 100, Schedule: testSchedule,
	}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	balance, _ := l.Balance(ctx, "wallet:a")
	if balance != 100 {
		t.Fatalf("balance changed on failed transfer: %d", balance)
	}
}

func TestInMemoryLedger_InvalidAmount(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a")

	if _, err := l.ApplyTransfer(ctx, TransferPosting{AccountCode: "wallet:a", ClientTxID: "x", Amount: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := l.ApplyReceive(ctx, ReceivePosting{AccountCode: "wallet:a", ClientTxID: "x", Amount: -5}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestInMemoryLedger_DuplicateTransaction(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a")
	SeedBalance(l, "wallet:a", 5_000)

	first, err := l.ApplyTransfer(ctx, TransferPosting{
		AccountCode: "wallet:a", ClientTxID: "dup", Amount: 500, Schedule: testSchedule,
	})
	if err != nil {
		t.Fatalf("initial transfer failed: %v", err)
	}

	second, err := l.ApplyTransfer(ctx, TransferPosting{
		AccountCode: "wallet:a", ClientTxID: "dup", Amount: 500, Schedule: testSchedule,
	})
	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate should return the original transaction")
	}

	balance, _ := l.Balance(ctx, "wallet:a")
	if balance != 5_000-505 {
		t.Fatalf("duplicate must not double-apply, balance=%d", balance)
	}
}

func TestInMemoryLedger_ConcurrentTransfersNeverOverdraw(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a")
	SeedBalance(l, "wallet:a", 1_000)

	// Two simultaneous 700 transfers against 1000: at most one commits.
	var wg sync.WaitGroup
	var mu sync.Mutex
	var successes int
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.ApplyTransfer(ctx, TransferPosting{
				AccountCode: "wallet:a",
				ClientTxID:  fmt.Sprintf("race-%d", i),
				Amount:      700,
				Schedule:    FeeSchedule{},
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	balance, _ := l.Balance(ctx, "wallet:a")
	if successes > 1 {
		t.Fatalf("both transfers committed")
	}
	if balance != 1_000 && balance != 300 {
		t.Fatalf("unexpected final balance %d", balance)
	}
	if balance < 0 {
		t.Fatalf("balance went negative: %d", balance)
	}
}

func TestInMemoryLedger_ReceiveCreditsNetOfFee(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a")

	tx, err := l.ApplyReceive(ctx, ReceivePosting{
		AccountCode: "wallet:a", Counterparty: "sender:x",
		ClientTxID: "recv-1", Amount: 1_000, Schedule: FeeSchedule{Rate: 0.005},
	})
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if tx.Fee != 5 || tx.Amount != 995 {
		t.Fatalf("unexpected receive posting: amount=%d fee=%d", tx.Amount, tx.Fee)
	}

	balance, _ := l.Balance(ctx, "wallet:a")
	if balance != 995 {
		t.Fatalf("expected balance 995, got %d", balance)
	}
}

func TestInMemoryLedger_SumCompletedWindows(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a")
	SeedBalance(l, "wallet:a", 100_000)

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	clock := now.Add(-48 * time.Hour)
	SetClock(l, func() time.Time { return clock })

	// One transfer two days ago, one today.
	if _, err := l.ApplyTransfer(ctx, TransferPosting{AccountCode: "wallet:a", ClientTxID: "old", Amount: 300, Schedule: FeeSchedule{}}); err != nil {
		t.Fatalf("old transfer: %v", err)
	}
	clock = now
	if _, err := l.ApplyTransfer(ctx, TransferPosting{AccountCode: "wallet:a", ClientTxID: "new", Amount: 200, Schedule: FeeSchedule{}}); err != nil {
		t.Fatalf("new transfer: %v", err)
	}

	dayStart := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	daily, err := l.SumCompleted(ctx, "wallet:a", KindTransferOut, dayStart)
	if err != nil {
		t.Fatalf("sum daily: %v", err)
	}
	if daily != 200 {
		t.Fatalf("expected daily total 200, got %d", daily)
	}

	monthStart := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	monthly, err := l.SumCompleted(ctx, "wallet:a", KindTransferOut, monthStart)
	if err != nil {
		t.Fatalf("sum monthly: %v", err)
	}
	if monthly != 500 {
		t.Fatalf("expected monthly total 500, got %d", monthly)
	}
}
