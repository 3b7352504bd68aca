package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists postings in PostgreSQL ensuring double-entry balance.
// Account rows are locked with SELECT ... FOR UPDATE so the balance check and
// the posting commit as one serializable unit per account. A CHECK constraint
// on wallet balances acts as the storage-level backstop against negatives.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Balance returns the summed balance for the specified account code.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (int64, error) {
	const query = `
        SELECT COALESCE(SUM(e.amount), 0)
        FROM accounts a
        LEFT JOIN entries e ON e.account_id = a.id
        WHERE a.code = $1
        GROUP BY a.id`
	var balance int64
	if err := l.db.QueryRow(ctx, query, code).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

// ApplyTransfer debits amount+fee from the wallet and credits the settlement
// and fee accounts inside a single database transaction.
func (l *PostgresLedger) ApplyTransfer(ctx context.Context, p TransferPosting) (Transaction, error) {
	if p.Amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	accountID, err := lockAccount(ctx, tx, p.AccountCode)
	if err != nil {
		return Transaction{}, err
	}
	settlementID, err := lockAccount(ctx, tx, SettlementAccountCode)
	if err != nil {
		return Transaction{}, err
	}
	feeID, err := lockAccount(ctx, tx, FeeAccountCode)
	if err != nil {
		return Transaction{}, err
	}

	if existing, err := existingTransaction(ctx, tx, p.ClientTxID, KindTransferOut); err == nil {
		return existing, ErrDuplicateTransaction
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, err
	}

	balance, err := balanceForAccount(ctx, tx, accountID)
	if err != nil {
		return Transaction{}, err
	}

	fee := p.Schedule.Fee(p.Amount)
	total := p.Amount + fee
	if balance < total {
		return Transaction{}, ErrInsufficientFunds
	}

	record := Transaction{
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
		CreatedAt:    time.Now().UTC(),
	}

	if err := insertTransaction(ctx, tx, record); err != nil {
		return Transaction{}, err
	}

	txID := uuid.MustParse(record.ID)
	if err := insertEntry(ctx, tx, txID, accountID, -total); err != nil {
		return Transaction{}, err
	}
	if err := insertEntry(ctx, tx, txID, settlementID, p.Amount); err != nil {
		return Transaction{}, err
	}
	if err := insertEntry(ctx, tx, txID, feeID, fee); err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}

	return record, nil
}

// ApplyReceive credits amount-fee to the wallet against the settlement account.
func (l *PostgresLedger) ApplyReceive(ctx context.Context, p ReceivePosting) (Transaction, error) {
	if p.Amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	accountID, err := lockAccount(ctx, tx, p.AccountCode)
	if err != nil {
		return Transaction{}, err
	}
	settlementID, err := lockAccount(ctx, tx, SettlementAccountCode)
	if err != nil {
		return Transaction{}, err
	}
	feeID, err := lockAccount(ctx, tx, FeeAccountCode)
	if err != nil {
		return Transaction{}, err
	}

	if existing, err := existingTransaction(ctx, tx, p.ClientTxID, KindReceive); err == nil {
		return existing, ErrDuplicateTransaction
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, err
	}

	fee := p.Schedule.Fee(p.Amount)
	if fee >= p.Amount {
		return Transaction{}, ErrInvalidAmount
	}
	net := p.Amount - fee

	record := Transaction{
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
		CreatedAt:    time.Now().UTC(),
	}

	if err := insertTransaction(ctx, tx, record); err != nil {
		return Transaction{}, err
	}

	txID := uuid.MustParse(record.ID)
	if err := insertEntry(ctx, tx, txID, accountID, net); err != nil {
		return Transaction{}, err
	}
	if err := insertEntry(ctx, tx, txID, settlementID, -p.Amount); err != nil {
		return Transaction{}, err
	}
	if err := insertEntry(ctx, tx, txID, feeID, fee); err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}

	return record, nil
}

// SumCompleted aggregates gross amounts of completed transactions for limit windows.
func (l *PostgresLedger) SumCompleted(ctx context.Context, code string, kind Kind, since time.Time) (int64, error) {
	const query = `
        SELECT COALESCE(SUM(gross), 0)
        FROM transactions
        WHERE account_code = $1 AND kind = $2 AND status = $3 AND created_at >= $4`
	var total int64
	if err := l.db.QueryRow(ctx, query, code, string(kind), string(StatusCompleted), since).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// RecentCompleted lists completed transactions for risk history reads.
func (l *PostgresLedger) RecentCompleted(ctx context.Context, code string, since time.Time) ([]Transaction, error) {
	const query = `
        SELECT id, client_tx_id, account_code, counterparty, kind, status,
               amount, gross, fee, risk_score, risk_factors, device_id, created_at
        FROM transactions
        WHERE account_code = $1 AND status = $2 AND created_at >= $3
        ORDER BY created_at`
	rows, err := l.db.Query(ctx, query, code, string(StatusCompleted), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func lockAccount(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("account %s: %w", code, ErrAccountNotFound)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

func existingTransaction(ctx context.Context, tx pgx.Tx, clientTxID string, kind Kind) (Transaction, error) {
	const query = `
        SELECT id, client_tx_id, account_code, counterparty, kind, status,
               amount, gross, fee, risk_score, risk_factors, device_id, created_at
        FROM transactions
        WHERE client_tx_id = $1 AND kind = $2`
	row := tx.QueryRow(ctx, query, clientTxID, string(kind))
	return scanTransaction(row)
}

func insertTransaction(ctx context.Context, tx pgx.Tx, record Transaction) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO transactions
            (id, client_tx_id, account_code, counterparty, kind, status,
             amount, gross, fee, risk_score, risk_factors, device_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.MustParse(record.ID), record.ClientTxID, record.AccountCode, record.Counterparty,
		string(record.Kind), string(record.Status), record.Amount, record.Gross, record.Fee,
		record.RiskScore, record.RiskFactors, record.DeviceID, record.CreatedAt)
	return err
}

func insertEntry(ctx context.Context, tx pgx.Tx, txID, accountID uuid.UUID, amount int64) error {
	_, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount)
        VALUES ($1, $2, $3, $4)`, uuid.New(), txID, accountID, amount)
	return err
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		tx        Transaction
		id        uuid.UUID
		kind      string
		status    string
		createdAt time.Time
	)
	if err := row.Scan(&id, &tx.ClientTxID, &tx.AccountCode, &tx.Counterparty, &kind, &status,
		&tx.Amount, &tx.Gross, &tx.Fee, &tx.RiskScore, &tx.RiskFactors, &tx.DeviceID, &createdAt); err != nil {
		return Transaction{}, err
	}
	tx.ID = id.String()
	tx.Kind = Kind(kind)
	tx.Status = Status(status)
	tx.CreatedAt = createdAt.UTC()
	return tx, nil
}
