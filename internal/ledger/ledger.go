package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidAmount occurs when a posting is requested with a non-positive amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting including its fee.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound indicates the referenced ledger account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)

// Kind classifies a ledger transaction.
type Kind string

const (
	// KindTransferOut is an outbound transfer debiting a wallet.
	KindTransferOut Kind = "transfer_out"
	// KindTransferIn is the inbound leg of an internal transfer.
	KindTransferIn Kind = "transfer_in"
	// KindReceive is an externally funded credit to a wallet.
	KindReceive Kind = "receive"
)

// Status is the lifecycle state of a transaction. Completed and failed are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	// FeeAccountCode collects fees charged on postings.
	FeeAccountCode = "revenue:fees"
	// SettlementAccountCode is the counterpart account for value entering or
	// leaving the wallet universe.
	SettlementAccountCode = "suspense:settlement"
)

// Transaction is the committed record of one ledger posting. Amount is the
// signed net delta applied to the wallet balance; Gross is the requested
// amount before fees and always positive.
type Transaction struct {
	ID           string
	ClientTxID   string
	AccountCode  string
	Counterparty string
	Kind         Kind
	Status       Status
	Amount       int64
	Gross        int64
	Fee          int64
	RiskScore    int
	RiskFactors  []string
	DeviceID     string
	CreatedAt    time.Time
}

// TransferPosting describes an outbound transfer to apply.
type TransferPosting struct {
	AccountCode  string
	Counterparty string
	ClientTxID   string
	Amount       int64
	Schedule     FeeSchedule
	RiskScore    int
	RiskFactors  []string
	DeviceID     string
}

// ReceivePosting describes an inbound credit to apply.
type ReceivePosting struct {
	AccountCode  string
	Counterparty string
	ClientTxID   string
	Amount       int64
	Schedule     FeeSchedule
	DeviceID     string
}

// Ledger is the only component allowed to mutate account balances. The
// balance check and posting of each Apply call are a single atomic unit; no
// partially applied transaction is ever observable.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)

	// ApplyTransfer debits amount+fee from the account. The committed
	// transaction carries Amount = -(amount+fee).
	ApplyTransfer(ctx context.Context, p TransferPosting) (Transaction, error)

	// ApplyReceive credits amount-fee to the account. The committed
	// transaction carries Amount = +(amount-fee).
	ApplyReceive(ctx context.Context, p ReceivePosting) (Transaction, error)

	// SumCompleted returns the summed gross amount of completed transactions
	// of the given kind for the account since the cutoff.
	SumCompleted(ctx context.Context, code string, kind Kind, since time.Time) (int64, error)

	// RecentCompleted lists completed transactions for the account since the
	// cutoff, newest last.
	RecentCompleted(ctx context.Context, code string, since time.Time) ([]Transaction, error)
}
