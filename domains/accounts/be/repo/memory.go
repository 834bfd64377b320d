package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brickline/brickline-saas/domains/accounts/be/service"
)

type memoryRow struct {
	account      service.Account
	passwordHash string
}

// MemoryRepository is an in-memory accounts repository for tests.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[uuid.UUID]memoryRow
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[uuid.UUID]memoryRow)}
}

func (r *MemoryRepository) Create(_ context.Context, a service.Account, passwordHash string) (service.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if row.account.Email == a.Email || row.account.Username == a.Username {
			return service.Account{}, service.ErrDuplicateAccount
		}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	r.rows[a.ID] = memoryRow{account: a, passwordHash: passwordHash}
	return a, nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (service.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.account.Email == email {
			return row.account, nil
		}
	}
	return service.Account{}, service.ErrNotFound
}

func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (service.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.account.Username == username {
			return row.account, nil
		}
	}
	return service.Account{}, service.ErrNotFound
}

func (r *MemoryRepository) SetActive(_ context.Context, id uuid.UUID, active bool) (service.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return service.Account{}, service.ErrNotFound
	}
	row.account.Active = active
	r.rows[id] = row
	return row.account, nil
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return service.ErrNotFound
	}
	row.passwordHash = passwordHash
	r.rows[id] = row
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return service.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

// PasswordHash exposes the stored hash for assertions.
func (r *MemoryRepository) PasswordHash(id uuid.UUID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id].passwordHash
}

// Count returns the number of stored accounts.
func (r *MemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

var _ service.Repository = (*MemoryRepository)(nil)
