package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brickline/brickline-saas/domains/subscriptions/be/service"
)

// MemoryRepository is an in-memory subscriptions repository for tests.
type MemoryRepository struct {
	mu    sync.Mutex
	plans map[uuid.UUID]service.Plan
	subs  []service.Subscription
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{plans: make(map[uuid.UUID]service.Plan)}
}

func (r *MemoryRepository) CreatePlan(_ context.Context, plan service.Plan) (service.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	r.plans[plan.ID] = plan
	return plan, nil
}

func (r *MemoryRepository) GetPlan(_ context.Context, id uuid.UUID) (service.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	plan, ok := r.plans[id]
	if !ok {
		return service.Plan{}, service.ErrPlanNotFound
	}
	return plan, nil
}

func (r *MemoryRepository) GetPlanByName(_ context.Context, name string) (service.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, plan := range r.plans {
		if plan.Name == name {
			return plan, nil
		}
	}
	return service.Plan{}, service.ErrPlanNotFound
}

func (r *MemoryRepository) HasSubscription(_ context.Context, accountID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.AccountID == accountID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) CreateSubscription(_ context.Context, sub service.Subscription) (service.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, sub)
	return sub, nil
}

func (r *MemoryRepository) FindSubscription(_ context.Context, accountID, planID uuid.UUID, processorSubID string) (service.Subscription, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.AccountID == accountID && sub.PlanID == planID && sub.ProcessorSubID == processorSubID {
			return sub, true, nil
		}
	}
	return service.Subscription{}, false, nil
}

func (r *MemoryRepository) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for i, sub := range r.subs {
		if sub.Status == "active" && sub.EndDate != nil && sub.EndDate.Before(now) {
			r.subs[i].Status = "inactive"
			count++
		}
	}
	return count, nil
}

// Subscriptions returns a snapshot for assertions.
func (r *MemoryRepository) Subscriptions() []service.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]service.Subscription(nil), r.subs...)
}

var _ service.Repository = (*MemoryRepository)(nil)
