package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/brickline/brickline-saas/domains/subscriptions/be/service"
	"github.com/brickline/brickline-saas/platform/go/persistence"
)

// PostgresRepository implements the subscriptions repository on the shared
// persistence layer.
type PostgresRepository struct {
	store *persistence.SubscriptionStore
}

// NewPostgresRepository constructs a repository backed by SubscriptionStore.
func NewPostgresRepository(store *persistence.SubscriptionStore) *PostgresRepository {
	if store == nil {
		panic("subscription store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) CreatePlan(ctx context.Context, plan service.Plan) (service.Plan, error) {
	rec, err := r.store.CreatePlan(ctx, persistence.PlanRecord{
		PlanID:          plan.ID,
		Name:            plan.Name,
		Amount:          plan.Amount,
		Interval:        plan.Interval,
		DurationCycles:  plan.DurationCycles,
		ProcessorPlanID: plan.ProcessorPlanID,
	})
	if err != nil {
		return service.Plan{}, err
	}
	return toServicePlan(rec), nil
}

func (r *PostgresRepository) GetPlan(ctx context.Context, id uuid.UUID) (service.Plan, error) {
	rec, err := r.store.GetPlan(ctx, id)
	if err != nil {
		return service.Plan{}, mapPlanNotFound(err)
	}
	return toServicePlan(rec), nil
}

func (r *PostgresRepository) GetPlanByName(ctx context.Context, name string) (service.Plan, error) {
	rec, err := r.store.GetPlanByName(ctx, name)
	if err != nil {
		return service.Plan{}, mapPlanNotFound(err)
	}
	return toServicePlan(rec), nil
}

func (r *PostgresRepository) HasSubscription(ctx context.Context, accountID uuid.UUID) (bool, error) {
	return r.store.HasSubscription(ctx, accountID)
}

func (r *PostgresRepository) CreateSubscription(ctx context.Context, sub service.Subscription) (service.Subscription, error) {
	rec, err := r.store.CreateSubscription(ctx, persistence.SubscriptionRecord{
		SubscriptionID: sub.ID,
		AccountID:      sub.AccountID,
		PlanID:         sub.PlanID,
		ProcessorSubID: sub.ProcessorSubID,
		Status:         sub.Status,
		StartDate:      sub.StartDate,
		EndDate:        sub.EndDate,
	})
	if err != nil {
		return service.Subscription{}, err
	}
	return toServiceSubscription(rec), nil
}

func (r *PostgresRepository) FindSubscription(ctx context.Context, accountID, planID uuid.UUID, processorSubID string) (service.Subscription, bool, error) {
	rec, found, err := r.store.FindSubscription(ctx, accountID, planID, processorSubID)
	if err != nil || !found {
		return service.Subscription{}, found, err
	}
	return toServiceSubscription(rec), true, nil
}

func (r *PostgresRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.store.DeactivateExpired(ctx, now)
}

func toServicePlan(rec persistence.PlanRecord) service.Plan {
	return service.Plan{
		ID:              rec.PlanID,
		Name:            rec.Name,
		Amount:          rec.Amount,
		Interval:        rec.Interval,
		DurationCycles:  rec.DurationCycles,
		ProcessorPlanID: rec.ProcessorPlanID,
		CreatedAt:       rec.CreatedAt,
	}
}

func toServiceSubscription(rec persistence.SubscriptionRecord) service.Subscription {
	return service.Subscription{
		ID:             rec.SubscriptionID,
		AccountID:      rec.AccountID,
		PlanID:         rec.PlanID,
		ProcessorSubID: rec.ProcessorSubID,
		Status:         rec.Status,
		StartDate:      rec.StartDate,
		EndDate:        rec.EndDate,
	}
}

func mapPlanNotFound(err error) error {
	if errors.Is(err, persistence.ErrPlanNotFound) {
		return service.ErrPlanNotFound
	}
	return err
}

// Ensure interface compliance.
var _ service.Repository = (*PostgresRepository)(nil)
