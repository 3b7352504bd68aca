package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the account does not exist.
var ErrNotFound = errors.New("account not found")

// Repository persists account metadata.
type Repository interface {
	Create(ctx context.Context, account Account) error
	Get(ctx context.Context, id string) (Account, error)
}

// PostgresRepository stores accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an account record.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	accountID, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO customer_accounts (id, owner_name, account_code, currency, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		accountID, account.OwnerName, account.AccountCode, account.Currency, account.Status, account.CreatedAt.UTC())
	return err
}

// Get fetches account metadata by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, owner_name, account_code, currency, status, created_at
        FROM customer_accounts WHERE id = $1`, accountID)

	var (
		a         Account
		idVal     uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&idVal, &a.OwnerName, &a.AccountCode, &a.Currency, &a.Status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	a.ID = idVal.String()
	a.CreatedAt = createdAt.UTC()
	return a, nil
}
