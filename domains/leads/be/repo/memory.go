package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brickline/brickline-saas/domains/leads/be/service"
)

// MemoryRepository is an in-memory leads repository for tests.
type MemoryRepository struct {
	mu         sync.Mutex
	leads      []service.Lead
	properties map[uuid.UUID]service.Property
	contacts   map[uuid.UUID]service.Contact
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		properties: make(map[uuid.UUID]service.Property),
		contacts:   make(map[uuid.UUID]service.Contact),
	}
}

// AddProperty registers a property for lookups.
func (r *MemoryRepository) AddProperty(p service.Property) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.properties[p.ID] = p
}

// AddContact registers an account contact for lookups.
func (r *MemoryRepository) AddContact(accountID uuid.UUID, c service.Contact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[accountID] = c
}

func (r *MemoryRepository) Create(_ context.Context, lead service.Lead) (service.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	r.leads = append(r.leads, lead)
	return lead, nil
}

func (r *MemoryRepository) ListByAgent(_ context.Context, agentID uuid.UUID) ([]service.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []service.Lead
	for _, lead := range r.leads {
		if lead.AssignedAgent != nil && *lead.AssignedAgent == agentID {
			out = append(out, lead)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) GetProperty(_ context.Context, propertyID uuid.UUID) (service.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.properties[propertyID]
	if !ok {
		return service.Property{}, service.ErrPropertyNotFound
	}
	return p, nil
}

func (r *MemoryRepository) GetContact(_ context.Context, accountID uuid.UUID) (service.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[accountID]
	if !ok {
		return service.Contact{}, service.ErrContactNotFound
	}
	return c, nil
}

var _ service.Repository = (*MemoryRepository)(nil)
