package account

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sango-pay/sango_pay/internal/ledger"
)

const statusActive = "active"

// Service exposes account operations backed by the ledger.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
}

// NewService builds an account service instance.
func NewService(repo Repository, ledger ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// CreateInput captures data required to create an account.
type CreateInput struct {
	OwnerName string
	Currency  string
}

// Create provisions an account and its associated ledger account.
func (s *Service) Create(ctx context.Context, input CreateInput) (Account, error) {
	if input.OwnerName == "" {
		return Account{}, fmt.Errorf("owner name is required")
	}

	accountID := uuid.New().String()
	accountCode := fmt.Sprintf("wallet:%s", accountID)

	if err := s.ledger.EnsureAccount(ctx, accountCode); err != nil {
		return Account{}, err
	}

	currency := input.Currency
	if currency == "" {
		currency = "XAF"
	}

	account := Account{
		ID:          accountID,
		OwnerName:   input.OwnerName,
		AccountCode: accountCode,
		Currency:    currency,
		Status:      statusActive,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}

	return account, nil
}

// Get retrieves account metadata.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.Get(ctx, id)
}

// Balance returns the ledger balance for the account.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.Balance(ctx, account.AccountCode)
	if err != nil {
		return Balance{}, err
	}
	return Balance{AccountID: account.ID, Amount: amount, AsOf: time.Now().UTC()}, nil
}
