package account

import (
	"context"
	"errors"
	"testing"

	"github.com/sango-pay/sango_pay/internal/ledger"
)

func TestCreateProvisionsLedgerAccount(t *testing.T) {
	led := ledger.NewInMemory()
	svc := NewService(NewMemoryRepository(), led)
	ctx := context.Background()

	acct, err := svc.Create(ctx, CreateInput{OwnerName: "Awa"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if acct.Currency != "XAF" {
		t.Fatalf("expected default currency XAF, got %s", acct.Currency)
	}

	// The ledger account exists and starts at zero.
	balance, err := led.Balance(ctx, acct.AccountCode)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected zero balance, got %d", balance)
	}
}

func TestCreateRequiresOwnerName(t *testing.T) {
	svc := NewService(NewMemoryRepository(), ledger.NewInMemory())
	if _, err := svc.Create(context.Background(), CreateInput{}); err == nil {
		t.Fatal("expected error for missing owner name")
	}
}

func TestBalanceReflectsLedger(t *testing.T) {
	led := ledger.NewInMemory()
	svc := NewService(NewMemoryRepository(), led)
	ctx := context.Background()

	acct, err := svc.Create(ctx, CreateInput{OwnerName: "Awa"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ledger.SeedBalance(led, acct.AccountCode, 2500)

	b, err := svc.Balance(ctx, acct.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.Amount != 2500 {
		t.Fatalf("expected 2500, got %d", b.Amount)
	}
}

func TestGetUnknownAccount(t *testing.T) {
	svc := NewService(NewMemoryRepository(), ledger.NewInMemory())
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
