package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/brickline/brickline-saas/domains/accounts/be/service"
	"github.com/brickline/brickline-saas/platform/go/persistence"
)

// PostgresRepository implements the accounts repository on the shared
// persistence layer.
type PostgresRepository struct {
	store *persistence.AccountStore
}

// NewPostgresRepository constructs a repository backed by AccountStore.
func NewPostgresRepository(store *persistence.AccountStore) *PostgresRepository {
	if store == nil {
		panic("account store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, a service.Account, passwordHash string) (service.Account, error) {
	rec, err := r.store.Create(ctx, persistence.AccountRecord{
		AccountID:      a.ID,
		Email:          a.Email,
		Username:       a.Username,
		PasswordHash:   passwordHash,
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		WhatsappNumber: a.WhatsappNumber,
		IsAgent:        a.IsAgent,
		Active:         a.Active,
	})
	if err != nil {
		return service.Account{}, mapPersistenceError(err)
	}
	return toServiceAccount(rec), nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (service.Account, error) {
	rec, err := r.store.GetByEmail(ctx, email)
	if err != nil {
		return service.Account{}, mapPersistenceError(err)
	}
	return toServiceAccount(rec), nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (service.Account, error) {
	rec, err := r.store.GetByUsername(ctx, username)
	if err != nil {
		return service.Account{}, mapPersistenceError(err)
	}
	return toServiceAccount(rec), nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (service.Account, error) {
	rec, err := r.store.SetActive(ctx, id, active)
	if err != nil {
		return service.Account{}, mapPersistenceError(err)
	}
	return toServiceAccount(rec), nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return mapPersistenceError(r.store.UpdatePassword(ctx, id, passwordHash))
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return mapPersistenceError(r.store.Delete(ctx, id))
}

func toServiceAccount(rec persistence.AccountRecord) service.Account {
	return service.Account{
		ID:             rec.AccountID,
		Email:          rec.Email,
		Username:       rec.Username,
		FirstName:      rec.FirstName,
		LastName:       rec.LastName,
		WhatsappNumber: rec.WhatsappNumber,
		IsAgent:        rec.IsAgent,
		Active:         rec.Active,
		CreatedAt:      rec.CreatedAt,
	}
}

func mapPersistenceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrAccountNotFound):
		return service.ErrNotFound
	case errors.Is(err, persistence.ErrAccountConflict):
		return service.ErrDuplicateAccount
	default:
		return err
	}
}

// Ensure interface compliance.
var _ service.Repository = (*PostgresRepository)(nil)
