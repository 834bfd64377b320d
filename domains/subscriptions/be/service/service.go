// Package service manages billing plans and subscriptions driven by payment
// processor webhooks.
package service

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/platform/go/metrics"
)

// Domain sentinel errors.
var (
	ErrPlanNotFound    = errors.New("plan not found")
	ErrWebhookRejected = errors.New("webhook signature rejected")
	ErrBadTxRef        = errors.New("transaction reference is malformed")
)

// Plan intervals.
const (
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

// FreePlanName is the plan every account falls back to.
const FreePlanName = "Free"

// Plan represents a billing plan.
type Plan struct {
	ID              uuid.UUID
	Name            string
	Amount          int64
	Interval        string
	DurationCycles  int
	ProcessorPlanID *string
	CreatedAt       time.Time
}

// Subscription represents one account's subscription to a plan.
type Subscription struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	PlanID         uuid.UUID
	ProcessorSubID string
	Status         string
	StartDate      time.Time
	EndDate        *time.Time
}

// CreatePlanInput represents the request to register a plan.
type CreatePlanInput struct {
	Name           string
	Amount         int64
	Interval       string
	DurationCycles int
}

// Repository abstracts billing persistence.
type Repository interface {
	CreatePlan(ctx context.Context, plan Plan) (Plan, error)
	GetPlan(ctx context.Context, id uuid.UUID) (Plan, error)
	GetPlanByName(ctx context.Context, name string) (Plan, error)
	HasSubscription(ctx context.Context, accountID uuid.UUID) (bool, error)
	CreateSubscription(ctx context.Context, sub Subscription) (Subscription, error)
	FindSubscription(ctx context.Context, accountID, planID uuid.UUID, processorSubID string) (Subscription, bool, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// Payments abstracts the payment processor.
type Payments interface {
	CreatePlan(ctx context.Context, name string, amount int64, interval string, cycles int) (string, error)
	InitiateCheckout(ctx context.Context, txRef string, amount int64, email, processorPlanID string) (string, error)
}

// Service provides billing operations.
type Service struct {
	repo     Repository
	payments Payments
	logger   *zap.Logger
	metrics  *metrics.Metrics
	secret   string
	now      func() time.Time
}

// New constructs a Service with required dependencies. Metrics may be nil.
func New(repo Repository, payments Payments, logger *zap.Logger, m *metrics.Metrics, webhookSecret string) *Service {
	if repo == nil {
		panic("subscriptions repo is required")
	}
	if payments == nil {
		panic("payments client is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if webhookSecret == "" {
		panic("webhook secret is required")
	}
	return &Service{
		repo: repo, payments: payments, logger: logger, metrics: m,
		secret: webhookSecret, now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreatePlan registers the plan with the processor and persists it.
func (s *Service) CreatePlan(ctx context.Context, input CreatePlanInput) (Plan, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Plan{}, errors.New("plan name is required")
	}
	if input.Interval != IntervalMonthly && input.Interval != IntervalYearly {
		return Plan{}, fmt.Errorf("interval must be %q or %q", IntervalMonthly, IntervalYearly)
	}
	if input.DurationCycles <= 0 {
		return Plan{}, errors.New("durationCycles must be positive")
	}

	plan := Plan{
		ID:             uuid.New(),
		Name:           name,
		Amount:         input.Amount,
		Interval:       input.Interval,
		DurationCycles: input.DurationCycles,
	}

	// Free plans never touch the processor.
	if input.Amount > 0 {
		processorID, err := s.payments.CreatePlan(ctx, name, input.Amount, input.Interval, input.DurationCycles)
		if err != nil {
			return Plan{}, fmt.Errorf("register plan with processor: %w", err)
		}
		plan.ProcessorPlanID = &processorID
	}

	return s.repo.CreatePlan(ctx, plan)
}

// InitiateCheckout starts a hosted payment for the plan and returns the
// checkout link. The transaction reference encodes the account and plan so
// the webhook can recover them.
func (s *Service) InitiateCheckout(ctx context.Context, accountID, planID uuid.UUID, email string) (string, error) {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return "", err
	}

	txRef := fmt.Sprintf("sub_%s_%s_%s", accountID, planID, uuid.New())
	processorPlanID := ""
	if plan.ProcessorPlanID != nil {
		processorPlanID = *plan.ProcessorPlanID
	}

	return s.payments.InitiateCheckout(ctx, txRef, plan.Amount, email, processorPlanID)
}

// webhookEnvelope is the subset of the processor payload the service reads.
type webhookEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		ID     int64  `json:"id"`
		TxRef  string `json:"tx_ref"`
		Status string `json:"status"`
	} `json:"data"`
}

// HandleWebhook processes a processor delivery. The verif-hash header is
// checked against the shared secret before the body is parsed at all; a bad
// hash never reaches the JSON decoder. Redeliveries of a completed charge are
// idempotent.
func (s *Service) HandleWebhook(ctx context.Context, verifHash string, body []byte) error {
	expected := sha512Hex(s.secret)
	if subtle.ConstantTimeCompare([]byte(verifHash), []byte(expected)) != 1 {
		s.countWebhook("rejected")
		return ErrWebhookRejected
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		s.countWebhook("rejected")
		return fmt.Errorf("parse webhook payload: %w", err)
	}

	if envelope.Event != "charge.completed" || envelope.Data.Status != "successful" {
		s.logger.Info("webhook ignored",
			zap.String("event", envelope.Event),
			zap.String("status", envelope.Data.Status))
		s.countWebhook("ignored")
		return nil
	}

	accountID, planID, err := parseTxRef(envelope.Data.TxRef)
	if err != nil {
		s.countWebhook("rejected")
		return err
	}

	processorSubID := fmt.Sprintf("%d", envelope.Data.ID)
	if _, found, err := s.repo.FindSubscription(ctx, accountID, planID, processorSubID); err != nil {
		return err
	} else if found {
		s.countWebhook("ignored")
		return nil
	}

	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return err
	}

	start := s.now()
	end := subscriptionEnd(start, plan)
	if _, err := s.repo.CreateSubscription(ctx, Subscription{
		ID:             uuid.New(),
		AccountID:      accountID,
		PlanID:         planID,
		ProcessorSubID: processorSubID,
		Status:         "active",
		StartDate:      start,
		EndDate:        &end,
	}); err != nil {
		return err
	}

	s.logger.Info("subscription activated",
		zap.String("account_id", accountID.String()),
		zap.String("plan", plan.Name))
	s.countWebhook("processed")
	return nil
}

// AssignFreePlan puts the account on the free plan unless it already has any
// subscription. Free subscriptions never expire.
func (s *Service) AssignFreePlan(ctx context.Context, accountID uuid.UUID) error {
	has, err := s.repo.HasSubscription(ctx, accountID)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	plan, err := s.repo.GetPlanByName(ctx, FreePlanName)
	if err != nil {
		return err
	}

	_, err = s.repo.CreateSubscription(ctx, Subscription{
		ID:             uuid.New(),
		AccountID:      accountID,
		PlanID:         plan.ID,
		ProcessorSubID: "free",
		Status:         "active",
		StartDate:      s.now(),
	})
	return err
}

// DeactivateExpired flips subscriptions past their end date to inactive.
func (s *Service) DeactivateExpired(ctx context.Context) (int64, error) {
	return s.repo.DeactivateExpired(ctx, s.now())
}

// RunExpirySweeper deactivates expired subscriptions on the given interval
// until ctx is cancelled.
func (s *Service) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.DeactivateExpired(ctx)
			if err != nil {
				s.logger.Error("subscription expiry sweep failed", zap.Error(err))
				continue
			}
			if count > 0 {
				s.logger.Info("subscriptions deactivated", zap.Int64("count", count))
			}
		}
	}
}

// parseTxRef recovers the account and plan ids from a sub_{account}_{plan}_{nonce}
// reference.
func parseTxRef(txRef string) (uuid.UUID, uuid.UUID, error) {
	parts := strings.Split(txRef, "_")
	if len(parts) < 3 || parts[0] != "sub" {
		return uuid.Nil, uuid.Nil, ErrBadTxRef
	}

	accountID, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrBadTxRef
	}
	planID, err := uuid.Parse(parts[2])
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrBadTxRef
	}
	return accountID, planID, nil
}

// subscriptionEnd computes the paid-through date: 30 days per monthly cycle,
// 365 per yearly cycle.
func subscriptionEnd(start time.Time, plan Plan) time.Time {
	days := 30
	if plan.Interval == IntervalYearly {
		days = 365
	}
	return start.AddDate(0, 0, days*plan.DurationCycles)
}

func sha512Hex(secret string) string {
	sum := sha512.Sum512([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func (s *Service) countWebhook(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WebhooksTotal.WithLabelValues(outcome).Inc()
}
