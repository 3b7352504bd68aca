package account

import "time"

// Account represents a customer account whose balance lives in the ledger.
type Account struct {
	ID          string
	OwnerName   string
	AccountCode string
	Currency    string
	Status      string
	CreatedAt   time.Time
}

// Balance encapsulates available funds for an account.
type Balance struct {
	AccountID string
	Amount    int64
	AsOf      time.Time
}
