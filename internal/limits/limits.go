package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sango-pay/sango_pay/internal/ledger"
)

var (
	// ErrBelowMinimum occurs when an amount is under the single-transaction floor.
	ErrBelowMinimum = errors.New("amount below minimum")
	// ErrAboveMaximum occurs when an amount is over the single-transaction ceiling.
	ErrAboveMaximum = errors.New("amount above maximum")
	// ErrDailyLimitExceeded occurs when the rolling daily total would be breached.
	ErrDailyLimitExceeded = errors.New("daily limit exceeded")
	// ErrMonthlyLimitExceeded occurs when the rolling monthly total would be breached.
	ErrMonthlyLimitExceeded = errors.New("monthly limit exceeded")
)

// Policy holds the thresholds applied to one transaction kind.
type Policy struct {
	MinAmount         int64
	MaxAmount         int64
	DailyLimit        int64
	MonthlyLimit      int64
	HighRiskThreshold int64
}

// Summer provides the rolling sums of completed transactions the checker
// compares against. Satisfied by ledger.Ledger.
type Summer interface {
	SumCompleted(ctx context.Context, code string, kind ledger.Kind, since time.Time) (int64, error)
}

// Checker enforces per-kind spending limits. It only reads; callers must hold
// the per-account lock across check and ledger apply so two concurrent
// requests cannot both pass against the same stale window.
type Checker struct {
	policies map[ledger.Kind]Policy
	sums     Summer
	now      func() time.Time
}

// NewChecker builds a limit checker over the given policies.
func NewChecker(sums Summer, policies map[ledger.Kind]Policy) *Checker {
	return &Checker{
		policies: policies,
		sums:     sums,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the configured policy for a kind, if any.
func (c *Checker) Policy(kind ledger.Kind) (Policy, bool) {
	p, ok := c.policies[kind]
	return p, ok
}

// Check validates the amount against single-transaction bounds and the rolling
// daily/monthly windows of completed transactions for the account.
func (c *Checker) Check(ctx context.Context, accountCode string, kind ledger.Kind, amount int64) error {
	policy, ok := c.policies[kind]
	if !ok {
		return fmt.Errorf("no limit policy for kind %s", kind)
	}

	if amount < policy.MinAmount {
		return ErrBelowMinimum
	}
	if policy.MaxAmount > 0 && amount > policy.MaxAmount {
		return ErrAboveMaximum
	}

	now := c.now()

	dailyTotal, err := c.sums.SumCompleted(ctx, accountCode, kind, dayStart(now))
	if err != nil {
		return fmt.Errorf("sum daily window: %w", err)
	}
	if policy.DailyLimit > 0 && dailyTotal+amount > policy.DailyLimit {
		return ErrDailyLimitExceeded
	}

	monthlyTotal, err := c.sums.SumCompleted(ctx, accountCode, kind, monthStart(now))
	if err != nil {
		return fmt.Errorf("sum monthly window: %w", err)
	}
	if policy.MonthlyLimit > 0 && monthlyTotal+amount > policy.MonthlyLimit {
		return ErrMonthlyLimitExceeded
	}

	return nil
}

// SetClock pins the checker's clock. Test helper.
func (c *Checker) SetClock(now func() time.Time) {
	c.now = now
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
