package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tables backing subscription billing.
const (
	SubscriptionPlansTable = "admin.subscription_plans"
	SubscriptionsTable     = "admin.subscriptions"
)

// PlanRecord represents a billing plan registered with the payment processor.
type PlanRecord struct {
	PlanID          uuid.UUID `db:"plan_id"`
	Name            string    `db:"name"`
	Amount          int64     `db:"amount"` // smallest currency unit
	Interval        string    `db:"interval"`
	DurationCycles  int       `db:"duration_cycles"`
	ProcessorPlanID *string   `db:"processor_plan_id"`
	CreatedAt       time.Time `db:"created_at"`
}

// SubscriptionRecord represents one account's subscription to a plan.
type SubscriptionRecord struct {
	SubscriptionID uuid.UUID  `db:"subscription_id"`
	AccountID      uuid.UUID  `db:"account_id"`
	PlanID         uuid.UUID  `db:"plan_id"`
	ProcessorSubID string     `db:"processor_sub_id"`
	Status         string     `db:"status"`
	StartDate      time.Time  `db:"start_date"`
	EndDate        *time.Time `db:"end_date"`
}

// SubscriptionStore provides access to the billing tables.
type SubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewSubscriptionStore creates a store; assumes migrations already created the tables.
func NewSubscriptionStore(ctx context.Context, pool *pgxpool.Pool) (*SubscriptionStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &SubscriptionStore{pool: pool}, nil
}

// CreatePlan inserts a billing plan.
func (s *SubscriptionStore) CreatePlan(ctx context.Context, rec PlanRecord) (PlanRecord, error) {
	if rec.PlanID == uuid.Nil {
		return PlanRecord{}, errors.New("plan id is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (plan_id, name, amount, interval, duration_cycles, processor_plan_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING plan_id, name, amount, interval, duration_cycles, processor_plan_id, created_at
    `, SubscriptionPlansTable)

	return scanPlanRecord(s.pool.QueryRow(ctx, query,
		rec.PlanID, rec.Name, rec.Amount, rec.Interval, rec.DurationCycles, rec.ProcessorPlanID))
}

// GetPlan fetches a plan by id.
func (s *SubscriptionStore) GetPlan(ctx context.Context, id uuid.UUID) (PlanRecord, error) {
	query := fmt.Sprintf(`
        SELECT plan_id, name, amount, interval, duration_cycles, processor_plan_id, created_at
        FROM %s WHERE plan_id = $1
    `, SubscriptionPlansTable)
	return scanPlanRecord(s.pool.QueryRow(ctx, query, id))
}

// GetPlanByName fetches a plan by its display name.
func (s *SubscriptionStore) GetPlanByName(ctx context.Context, name string) (PlanRecord, error) {
	query := fmt.Sprintf(`
        SELECT plan_id, name, amount, interval, duration_cycles, processor_plan_id, created_at
        FROM %s WHERE name = $1
    `, SubscriptionPlansTable)
	return scanPlanRecord(s.pool.QueryRow(ctx, query, name))
}

// HasActiveSubscription reports whether the account has any subscription row.
func (s *SubscriptionStore) HasSubscription(ctx context.Context, accountID uuid.UUID) (bool, error) {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE account_id = $1)`, SubscriptionsTable)
	if err := s.pool.QueryRow(ctx, query, accountID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateSubscription inserts a subscription row.
func (s *SubscriptionStore) CreateSubscription(ctx context.Context, rec SubscriptionRecord) (SubscriptionRecord, error) {
	if rec.SubscriptionID == uuid.Nil {
		return SubscriptionRecord{}, errors.New("subscription id is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (subscription_id, account_id, plan_id, processor_sub_id, status, start_date, end_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING subscription_id, account_id, plan_id, processor_sub_id, status, start_date, end_date
    `, SubscriptionsTable)

	return scanSubscriptionRecord(s.pool.QueryRow(ctx, query,
		rec.SubscriptionID, rec.AccountID, rec.PlanID, rec.ProcessorSubID, rec.Status, rec.StartDate, rec.EndDate))
}

// FindSubscription returns the subscription matching (account, plan, processor id), if any.
func (s *SubscriptionStore) FindSubscription(ctx context.Context, accountID, planID uuid.UUID, processorSubID string) (SubscriptionRecord, bool, error) {
	query := fmt.Sprintf(`
        SELECT subscription_id, account_id, plan_id, processor_sub_id, status, start_date, end_date
        FROM %s WHERE account_id = $1 AND plan_id = $2 AND processor_sub_id = $3
    `, SubscriptionsTable)

	rec, err := scanSubscriptionRecord(s.pool.QueryRow(ctx, query, accountID, planID, processorSubID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SubscriptionRecord{}, false, nil
		}
		return SubscriptionRecord{}, false, err
	}
	return rec, true, nil
}

// DeactivateExpired flips active subscriptions past their end date to inactive
// and returns how many rows changed.
func (s *SubscriptionStore) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`
        UPDATE %s SET status = 'inactive'
        WHERE status = 'active' AND end_date IS NOT NULL AND end_date < $1
    `, SubscriptionsTable)

	tag, err := s.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanPlanRecord(row pgx.Row) (PlanRecord, error) {
	var rec PlanRecord
	if err := row.Scan(&rec.PlanID, &rec.Name, &rec.Amount, &rec.Interval, &rec.DurationCycles,
		&rec.ProcessorPlanID, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PlanRecord{}, ErrPlanNotFound
		}
		return PlanRecord{}, err
	}
	return rec, nil
}

func scanSubscriptionRecord(row pgx.Row) (SubscriptionRecord, error) {
	var rec SubscriptionRecord
	if err := row.Scan(&rec.SubscriptionID, &rec.AccountID, &rec.PlanID, &rec.ProcessorSubID,
		&rec.Status, &rec.StartDate, &rec.EndDate); err != nil {
		return SubscriptionRecord{}, err
	}
	return rec, nil
}
