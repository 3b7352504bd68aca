package beneficiary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxDestinationLength = 64

// ErrInactive indicates the beneficiary exists but has been deactivated.
var ErrInactive = errors.New("beneficiary inactive")

// Service manages saved transfer destinations.
type Service struct {
	repo Repository
}

// NewService builds a beneficiary service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput captures data required to save a beneficiary.
type CreateInput struct {
	AccountID   string
	Name        string
	Destination string
}

// Create validates and stores a new active beneficiary.
func (s *Service) Create(ctx context.Context, input CreateInput) (Beneficiary, error) {
	if _, err := uuid.Parse(input.AccountID); err != nil {
		return Beneficiary{}, fmt.Errorf("invalid account id")
	}
	destination := strings.TrimSpace(input.Destination)
	if destination == "" || len(destination) > maxDestinationLength {
		return Beneficiary{}, fmt.Errorf("invalid destination reference")
	}

	b := Beneficiary{
		ID:          uuid.New().String(),
		AccountID:   input.AccountID,
		Name:        strings.TrimSpace(input.Name),
		Destination: destination,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, b); err != nil {
		return Beneficiary{}, err
	}
	return b, nil
}

// Get retrieves a beneficiary by id.
func (s *Service) Get(ctx context.Context, id string) (Beneficiary, error) {
	return s.repo.Get(ctx, id)
}

// List returns all beneficiaries saved by an account.
func (s *Service) List(ctx context.Context, accountID string) ([]Beneficiary, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

// Deactivate marks a beneficiary inactive so future transfers to it are refused.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.repo.SetActive(ctx, id, false)
}

// Resolve fetches a beneficiary and enforces the ownership and active
// preconditions outbound transfers rely on.
func (s *Service) Resolve(ctx context.Context, id, ownerAccountID string) (Beneficiary, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return Beneficiary{}, err
	}
	if b.AccountID != ownerAccountID {
		// Do not leak that the id exists for someone else.
		return Beneficiary{}, ErrNotFound
	}
	if !b.Active {
		return Beneficiary{}, ErrInactive
	}
	return b, nil
}
