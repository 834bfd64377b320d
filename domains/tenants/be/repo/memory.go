package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brickline/brickline-saas/domains/tenants/be/service"
)

// MemoryRepository is an in-memory tenant repository for tests.
type MemoryRepository struct {
	mu       sync.Mutex
	tenants  map[uuid.UUID]service.Tenant
	domains  map[string]uuid.UUID
	profiles map[uuid.UUID]service.AgentProfile // keyed by account id
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tenants:  make(map[uuid.UUID]service.Tenant),
		domains:  make(map[string]uuid.UUID),
		profiles: make(map[uuid.UUID]service.AgentProfile),
	}
}

func (r *MemoryRepository) DomainExists(_ context.Context, domain string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.domains[domain]
	return ok, nil
}

func (r *MemoryRepository) CreateProvisioned(_ context.Context, t service.Tenant, domain string, p service.AgentProfile) (service.Provisioned, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.domains[domain]; ok {
		return service.Provisioned{}, service.ErrDomainConflict
	}
	for _, existing := range r.tenants {
		if existing.Slug == t.Slug {
			return service.Provisioned{}, service.ErrDomainConflict
		}
	}

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	p.TenantID = t.ID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}

	r.tenants[t.ID] = t
	r.domains[domain] = t.ID
	r.profiles[p.AccountID] = p

	return service.Provisioned{Tenant: t, Domain: domain, Profile: p}, nil
}

func (r *MemoryRepository) GetBySlug(_ context.Context, slug string) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return service.Tenant{}, service.ErrNotFound
}

func (r *MemoryRepository) GetByDomain(_ context.Context, domain string) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.domains[domain]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}
	return r.tenants[id], nil
}

func (r *MemoryRepository) GetProfileByAccount(_ context.Context, accountID uuid.UUID) (service.AgentProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[accountID]
	if !ok {
		return service.AgentProfile{}, service.ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) DeleteByOwner(_ context.Context, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[accountID]
	if !ok {
		return nil
	}
	delete(r.profiles, accountID)
	delete(r.tenants, p.TenantID)
	for domain, id := range r.domains {
		if id == p.TenantID {
			delete(r.domains, domain)
		}
	}
	return nil
}

// Tenants returns a snapshot of stored tenants for assertions.
func (r *MemoryRepository) Tenants() []service.Tenant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]service.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, t)
	}
	return out
}

var _ service.Repository = (*MemoryRepository)(nil)
