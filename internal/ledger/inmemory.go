package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	byClient map[string]Transaction
	history  map[string][]Transaction
	now      func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and development mode.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances: map[string]int64{
			FeeAccountCode:        0,
			SettlementAccountCode: 0,
		},
		byClient: make(map[string]Transaction),
		history:  make(map[string][]Transaction),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) ApplyTransfer(_ context.Context, p TransferPosting) (Transaction, error) {
	if p.Amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	clientKey := string(KindTransferOut) + ":" + p.ClientTxID
	if tx, exists := l.byClient[clientKey]; exists {
		return tx, ErrDuplicateTransaction
	}

	balance, ok := l.balances[p.AccountCode]
	if !ok {
		return Transaction{}, ErrAccountNotFound
	}

	fee := p.Schedule.Fee(p.Amount)
	total := p.Amount + fee
	if balance < total {
		return Transaction{}, ErrInsufficientFunds
	}

	l.balances[p.AccountCode] = balance - total
	l.balances[SettlementAccountCode] += p.Amount
	l.balances[FeeAccountCode] += fee

	tx := Transaction{
		ID:           uuid.NewString(),
		ClientTxID:   p.ClientTxID,
		AccountCode:  p.AccountCode,
		Counterparty: p.Counterparty,
		Kind:         KindTransferOut,
		Status:       StatusCompleted,
		Amount:       -total,
		Gross:        p.Amount,
		Fee:          fee,
		RiskScore:    p.RiskScore,
		RiskFactors:  p.RiskFactors,
		DeviceID:     p.DeviceID,
		CreatedAt:    l.now(),
	}

	l.byClient[clientKey] = tx
	l.history[p.AccountCode] = append(l.history[p.AccountCode], tx)
	return tx, nil
}

func (l *inMemoryLedger) ApplyReceive(_ context.Context, p ReceivePosting) (Transaction, error) {
	if p.Amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	clientKey := string(KindReceive) + ":" + p.ClientTxID
	if tx, exists := l.byClient[clientKey]; exists {
		return tx, ErrDuplicateTransaction
	}

	balance, ok := l.balances[p.AccountCode]
	if !ok {
		return Transaction{}, ErrAccountNotFound
	}

	fee := p.Schedule.Fee(p.Amount)
	if fee >= p.Amount {
		return Transaction{}, ErrInvalidAmount
	}
	net := p.Amount - fee

	l.balances[p.AccountCode] = balance + net
	l.balances[SettlementAccountCode] -= p.Amount
	l.balances[FeeAccountCode] += fee

	tx := Transaction{
		ID:           uuid.NewString(),
		ClientTxID:   p.ClientTxID,
		AccountCode:  p.AccountCode,
		Counterparty: p.Counterparty,
		Kind:         KindReceive,
		Status:       StatusCompleted,
		Amount:       net,
		Gross:        p.Amount,
		Fee:          fee,
		DeviceID:     p.DeviceID,
		CreatedAt:    l.now(),
	}

	l.byClient[clientKey] = tx
	l.history[p.AccountCode] = append(l.history[p.AccountCode], tx)
	return tx, nil
}

func (l *inMemoryLedger) SumCompleted(_ context.Context, code string, kind Kind, since time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for _, tx := range l.history[code] {
		if tx.Kind != kind || tx.Status != StatusCompleted {
			continue
		}
		if tx.CreatedAt.Before(since) {
			continue
		}
		total += tx.Gross
	}
	return total, nil
}

func (l *inMemoryLedger) RecentCompleted(_ context.Context, code string, since time.Time) ([]Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Transaction
	for _, tx := range l.history[code] {
		if tx.Status != StatusCompleted || tx.CreatedAt.Before(since) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}
