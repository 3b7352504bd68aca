package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sango-pay/sango_pay/internal/ledger"
	"github.com/sango-pay/sango_pay/internal/logging"
)

type stubHistory struct {
	txs []ledger.Transaction
	err error
}

func (s stubHistory) RecentCompleted(_ context.Context, _ string, since time.Time) ([]ledger.Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []ledger.Transaction
	for _, tx := range s.txs {
		if !tx.CreatedAt.Before(since) {
			out = append(out, tx)
		}
	}
	return out, nil
}

type stubTrust struct {
	trusted map[string]bool
	err     error
}

func (s stubTrust) IsTrusted(_ context.Context, deviceID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.trusted[deviceID], nil
}

func testConfig() Config {
	return Config{
		Weights:           DefaultWeights(),
		HighRiskThreshold: 10_000,
		VerifyThreshold:   40,
		BlockThreshold:    75,
		VelocityWindow:    2 * time.Hour,
		VelocityBaseline:  10,
		LookupTimeout:     200 * time.Millisecond,
	}
}

func newTestEngine(cfg Config, store SignalStore, history History, trust TrustChecker) *Engine {
	e := NewEngine(cfg, store, history, trust, logging.Discard())
	e.SetClock(func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) })
	return e
}

func TestHighAmountFromUnknownDeviceRequiresVerification(t *testing.T) {
	e := newTestEngine(testConfig(), NewMemorySignalStore(), stubHistory{}, stubTrust{})

	// 15000 over the 10000 threshold from a never-trusted device.
	a := e.CheckTransaction(context.Background(), Input{
		AccountCode: "wallet:a",
		Amount:      15_000,
		Kind:        ledger.KindTransferOut,
		DeviceID:    "dev-unknown",
	})

	if !a.Allowed {
		t.Fatalf("expected allowed with verification, got blocked (score %d)", a.Score)
	}
	if !a.RequiresVerification {
		t.Fatalf("expected verification required, score=%d factors=%v", a.Score, a.FactorCodes())
	}
}

func TestTrustedDeviceLowAmountPasses(t *testing.T) {
	store := NewMemorySignalStore()
	store.RememberSighting(context.Background(), "wallet:a", "1.2.3.4", "Brazzaville")
	e := newTestEngine(testConfig(), store, stubHistory{}, stubTrust{trusted: map[string]bool{"dev-1": true}})

	a := e.CheckTransaction(context.Background(), Input{
		AccountCode: "wallet:a",
		Amount:      500,
		Kind:        ledger.KindTransferOut,
		DeviceID:    "dev-1",
		IP:          "1.2.3.4",
		Location:    "Brazzaville",
	})

	if !a.Allowed || a.RequiresVerification {
		t.Fatalf("expected clean pass, got %+v", a)
	}
	if a.Score != 0 {
		t.Fatalf("expected score 0, got %d (%v)", a.Score, a.FactorCodes())
	}
}

func TestSuspiciousIPStacksToBlock(t *testing.T) {
	store := NewMemorySignalStore()
	store.MarkSuspiciousIP(context.Background(), "6.6.6.6")
	e := newTestEngine(testConfig(), store, stubHistory{}, stubTrust{})

	a := e.CheckTransaction(context.Background(), Input{
		AccountCode: "wallet:a",
		Amount:      15_000,
		Kind:        ledger.KindTransferOut,
		DeviceID:    "dev-unknown",
		IP:          "6.6.6.6",
		Location:    "nowhere",
	})

	if a.Allowed {
		t.Fatalf("expected block, got score %d (%v)", a.Score, a.FactorCodes())
	}
}

func TestVelocityAboveBaseline(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	var txs []ledger.Transaction
	for i := 0; i < 11; i++ {
		txs = append(txs, ledger.Transaction{
			Gross:     100,
			Status:    ledger.StatusCompleted,
			CreatedAt: now.Add(-time.Duration(i) * time.Minute),
		})
	}
	e := newTestEngine(testConfig(), NewMemorySignalStore(), stubHistory{txs: txs}, stubTrust{trusted: map[string]bool{"dev-1": true}})

	a := e.CheckTransaction(context.Background(), Input{
		AccountCode: "wallet:a",
		Amount:      100,
		Kind:        ledger.KindTransferOut,
		DeviceID:    "dev-1",
	})

	if !hasFactor(a, FactorVelocity) {
		t.Fatalf("expected velocity factor, got %v", a.FactorCodes())
	}
}

func TestAboveAverageFactor(t *testing.T) {
	now := time.Date(2024, 5, 9, 12, 0, 0, 0, time.UTC)
	txs := []ledger.Transaction{
		{Gross: 100, Status: ledger.StatusCompleted, CreatedAt: now},
		{Gross: 200, Status: ledger.StatusCompleted, CreatedAt: now},
	}
	e := newTestEngine(testConfig(), NewMemorySignalStore(), stubHistory{txs: txs}, stubTrust{trusted: map[string]bool{"dev-1": true}})

	a := e.CheckTransaction(context.Background(), Input{
		AccountCode: "wallet:a",
		Amount:      1_000, // more than 3x the 150 average
		Kind:        ledger.KindTransferOut,
		DeviceID:    "dev-1",
	})

	if !hasFactor(a, FactorAboveAverage) {
		t.Fatalf("expected above_average factor, got %v", a.FactorCodes())
	}
}

func TestFailClosedPolicyBlocksOnStoreError(t *testing.T) {
	store := NewMemorySignalStore()
	store.FailWith(errors.New("redis down"))
	e := newTestEngine(testConfig(), store, stubHistory{}, stubTrust{})

	a := e.CheckTransaction(context.Background(), Input{
		AccountCode: "wallet:a", Amount: 100, Kind: ledger.KindTransferOut, IP: "1.2.3.4",
	})

	if a.Allowed {
		t.Fatal("fail_closed must block when signals are unreachable")
	}
	if !hasFactor(a, FactorEngineUnavailable) {
		t.Fatalf("expected engine_unavailable factor, got %v", a.FactorCodes())
	}
}

func TestFailOpenPolicyAllowsOnHistoryError(t *testing.T) {
	cfg := testConfig()
	cfg.FailOpen = true
	e := newTestEngine(cfg, NewMemorySignalStore(), stubHistory{err: errors.New("db down")}, stubTrust{})

	a := e.CheckTransaction(context.Background(), Input{
		AccountCode: "wallet:a", Amount: 100, Kind: ledger.KindTransferOut,
	})

	if !a.Allowed || a.RequiresVerification {
		t.Fatalf("fail_open must allow unscored, got %+v", a)
	}
}

func hasFactor(a Assessment, code string) bool {
	for _, f := range a.Factors {
		if f.Code == code {
			return true
		}
	}
	return false
}
