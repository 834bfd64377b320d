package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountsTable defines the fully-qualified table for the shared account registry.
const AccountsTable = "admin.accounts"

// AccountRecord represents a row in the accounts table. Accounts are created
// inactive and flipped active only once verification completes.
type AccountRecord struct {
	AccountID      uuid.UUID `db:"account_id"`
	Email          string    `db:"email"`
	Username       string    `db:"username"`
	PasswordHash   string    `db:"password_hash"`
	FirstName      string    `db:"first_name"`
	LastName       string    `db:"last_name"`
	WhatsappNumber *string   `db:"whatsapp_number"`
	IsAgent        bool      `db:"is_agent"`
	Active         bool      `db:"active"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// AccountStore provides access to the accounts table.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates a store; assumes migrations already created the table.
func NewAccountStore(ctx context.Context, pool *pgxpool.Pool) (*AccountStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &AccountStore{pool: pool}, nil
}

const accountColumns = `account_id, email, username, password_hash, first_name, last_name,
        whatsapp_number, is_agent, active, created_at, updated_at`

// Create inserts a new account row.
func (s *AccountStore) Create(ctx context.Context, rec AccountRecord) (AccountRecord, error) {
	if rec.AccountID == uuid.Nil {
		return AccountRecord{}, errors.New("account id is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (account_id, email, username, password_hash, first_name, last_name,
            whatsapp_number, is_agent, active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING %s
    `, AccountsTable, accountColumns)

	row := s.pool.QueryRow(ctx, query,
		rec.AccountID, rec.Email, rec.Username, rec.PasswordHash, rec.FirstName, rec.LastName,
		rec.WhatsappNumber, rec.IsAgent, rec.Active,
	)

	out, err := scanAccountRecord(row)
	if err != nil {
		return AccountRecord{}, mapAccountConflict(err)
	}
	return out, nil
}

// Get fetches an account by id.
func (s *AccountStore) Get(ctx context.Context, id uuid.UUID) (AccountRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE account_id = $1`, accountColumns, AccountsTable)
	return scanAccountRecord(s.pool.QueryRow(ctx, query, id))
}

// GetByEmail fetches an account by its unique email.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (AccountRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = $1`, accountColumns, AccountsTable)
	return scanAccountRecord(s.pool.QueryRow(ctx, query, email))
}

// GetByUsername fetches an account by its unique username.
func (s *AccountStore) GetByUsername(ctx context.Context, username string) (AccountRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE username = $1`, accountColumns, AccountsTable)
	return scanAccountRecord(s.pool.QueryRow(ctx, query, username))
}

// SetActive flips the active flag and returns the updated record.
func (s *AccountStore) SetActive(ctx context.Context, id uuid.UUID, active bool) (AccountRecord, error) {
	query := fmt.Sprintf(`
        UPDATE %s SET active = $2, updated_at = now()
        WHERE account_id = $1
        RETURNING %s
    `, AccountsTable, accountColumns)
	return scanAccountRecord(s.pool.QueryRow(ctx, query, id, active))
}

// UpdatePassword replaces the credential hash.
func (s *AccountStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET password_hash = $2, updated_at = now() WHERE account_id = $1`, AccountsTable)
	tag, err := s.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Delete removes an account row. Tenant-side cleanup (profile, tenant, domain)
// is the caller's responsibility via the tenant store.
func (s *AccountStore) Delete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE account_id = $1`, AccountsTable)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanAccountRecord(row pgx.Row) (AccountRecord, error) {
	var rec AccountRecord
	if err := row.Scan(&rec.AccountID, &rec.Email, &rec.Username, &rec.PasswordHash, &rec.FirstName,
		&rec.LastName, &rec.WhatsappNumber, &rec.IsAgent, &rec.Active, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountRecord{}, ErrAccountNotFound
		}
		return AccountRecord{}, err
	}
	return rec, nil
}

func mapAccountConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAccountConflict
	}
	return err
}
