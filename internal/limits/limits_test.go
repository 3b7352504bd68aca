package limits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sango-pay/sango_pay/internal/ledger"
)

type stubSummer struct {
	daily   int64
	monthly int64
}

func (s stubSummer) SumCompleted(_ context.Context, _ string, _ ledger.Kind, since time.Time) (int64, error) {
	// The monthly cutoff is always on the 1st; anything later is the daily window.
	if since.Day() == 1 {
		return s.monthly, nil
	}
	return s.daily, nil
}

func newTestChecker(daily, monthly int64) *Checker {
	c := NewChecker(stubSummer{daily: daily, monthly: monthly}, map[ledger.Kind]Policy{
		ledger.KindTransferOut: {
			MinAmount:    10,
			MaxAmount:    10_000,
			DailyLimit:   5_000,
			MonthlyLimit: 50_000,
		},
	})
	c.SetClock(func() time.Time { return time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC) })
	return c
}

func TestCheckSingleTransactionBounds(t *testing.T) {
	c := newTestChecker(0, 0)
	ctx := context.Background()

	if err := c.Check(ctx, "wallet:a", ledger.KindTransferOut, 5); !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("expected below minimum, got %v", err)
	}
	if err := c.Check(ctx, "wallet:a", ledger.KindTransferOut, 20_000); !errors.Is(err, ErrAboveMaximum) {
		t.Fatalf("expected above maximum, got %v", err)
	}
	if err := c.Check(ctx, "wallet:a", ledger.KindTransferOut, 500); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
}

func TestCheckDailyWindow(t *testing.T) {
	c := newTestChecker(4_900, 4_900)
	ctx := context.Background()

	// 4900 spent today, limit 5000: 200 more must be rejected, 100 allowed.
	if err := c.Check(ctx, "wallet:a", ledger.KindTransferOut, 200); !errors.Is(err, ErrDailyLimitExceeded) {
		t.Fatalf("expected daily limit exceeded, got %v", err)
	}
	if err := c.Check(ctx, "wallet:a", ledger.KindTransferOut, 100); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
}

func TestCheckMonthlyWindow(t *testing.T) {
	c := newTestChecker(0, 49_950)
	ctx := context.Background()

	if err := c.Check(ctx, "wallet:a", ledger.KindTransferOut, 100); !errors.Is(err, ErrMonthlyLimitExceeded) {
		t.Fatalf("expected monthly limit exceeded, got %v", err)
	}
	if err := c.Check(ctx, "wallet:a", ledger.KindTransferOut, 50); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
}

func TestCheckUnknownKind(t *testing.T) {
	c := newTestChecker(0, 0)
	if err := c.Check(context.Background(), "wallet:a", ledger.Kind("unknown"), 100); err == nil {
		t.Fatal("expected error for unconfigured kind")
	}
}
