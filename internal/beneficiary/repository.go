package beneficiary

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the beneficiary does not exist.
var ErrNotFound = errors.New("beneficiary not found")

// Repository persists beneficiaries.
type Repository interface {
	Create(ctx context.Context, b Beneficiary) error
	Get(ctx context.Context, id string) (Beneficiary, error)
	ListByAccount(ctx context.Context, accountID string) ([]Beneficiary, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// PostgresRepository stores beneficiaries in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, b Beneficiary) error {
	id, err := uuid.Parse(b.ID)
	if err != nil {
		return err
	}
	accountID, err := uuid.Parse(b.AccountID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO beneficiaries (id, account_id, name, destination, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, id, accountID, b.Name, b.Destination, b.Active, b.CreatedAt.UTC())
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Beneficiary, error) {
	benID, err := uuid.Parse(id)
	if err != nil {
		return Beneficiary{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, account_id, name, destination, active, created_at
        FROM beneficiaries WHERE id = $1`, benID)
	return scanBeneficiary(row)
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]Beneficiary, error) {
	acctID, err := uuid.Parse(accountID)
	if err != nil {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, account_id, name, destination, active, created_at
        FROM beneficiaries WHERE account_id = $1 ORDER BY created_at`, acctID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) error {
	benID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE beneficiaries SET active = $2 WHERE id = $1`, benID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBeneficiary(row pgx.Row) (Beneficiary, error) {
	var (
		b         Beneficiary
		id        uuid.UUID
		accountID uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &accountID, &b.Name, &b.Destination, &b.Active, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Beneficiary{}, ErrNotFound
		}
		return Beneficiary{}, err
	}
	b.ID = id.String()
	b.AccountID = accountID.String()
	b.CreatedAt = createdAt.UTC()
	return b, nil
}
