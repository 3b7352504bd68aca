package beneficiary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestCreateValidatesInput(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	accountID := uuid.New().String()

	if _, err := svc.Create(ctx, CreateInput{AccountID: "not-a-uuid", Destination: "momo:+242061112222"}); err == nil {
		t.Fatal("expected error for invalid account id")
	}
	if _, err := svc.Create(ctx, CreateInput{AccountID: accountID, Destination: "  "}); err == nil {
		t.Fatal("expected error for empty destination")
	}
	if _, err := svc.Create(ctx, CreateInput{AccountID: accountID, Destination: strings.Repeat("x", 65)}); err == nil {
		t.Fatal("expected error for oversized destination")
	}

	b, err := svc.Create(ctx, CreateInput{AccountID: accountID, Name: " Landlord ", Destination: " momo:+242061112222 "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !b.Active {
		t.Fatal("expected new beneficiary to be active")
	}
	if b.Destination != "momo:+242061112222" {
		t.Fatalf("expected trimmed destination, got %q", b.Destination)
	}
}

func TestResolveEnforcesOwnershipAndActive(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	owner := uuid.New().String()

	b, err := svc.Create(ctx, CreateInput{AccountID: owner, Name: "Landlord", Destination: "momo:+242061112222"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Resolve(ctx, b.ID, owner); err != nil {
		t.Fatalf("resolve by owner: %v", err)
	}

	// A foreign caller sees not-found, never the real record.
	if _, err := svc.Resolve(ctx, b.ID, uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for foreign caller, got %v", err)
	}

	if err := svc.Deactivate(ctx, b.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Resolve(ctx, b.ID, owner); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected inactive, got %v", err)
	}
}

func TestListReturnsOnlyOwnBeneficiaries(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	first := uuid.New().String()
	second := uuid.New().String()

	if _, err := svc.Create(ctx, CreateInput{AccountID: first, Name: "A", Destination: "momo:+242060000001"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{AccountID: first, Name: "B", Destination: "momo:+242060000002"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{AccountID: second, Name: "C", Destination: "momo:+242060000003"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	items, err := svc.List(ctx, first)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 beneficiaries, got %d", len(items))
	}
}
