package service_test

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/domains/subscriptions/be/repo"
	"github.com/brickline/brickline-saas/domains/subscriptions/be/service"
)

const webhookSecret = "test-webhook-secret"

type fakePayments struct {
	plans     int
	checkouts []string
}

func (f *fakePayments) CreatePlan(_ context.Context, _ string, _ int64, _ string, _ int) (string, error) {
	f.plans++
	return fmt.Sprintf("plan-%d", f.plans), nil
}

func (f *fakePayments) InitiateCheckout(_ context.Context, txRef string, _ int64, _, _ string) (string, error) {
	f.checkouts = append(f.checkouts, txRef)
	return "https://checkout.example/" + txRef, nil
}

func validHash() string {
	sum := sha512.Sum512([]byte(webhookSecret))
	return hex.EncodeToString(sum[:])
}

func setup(t *testing.T) (*service.Service, *repo.MemoryRepository, *fakePayments) {
	t.Helper()
	r := repo.NewMemoryRepository()
	payments := &fakePayments{}
	svc := service.New(r, payments, zap.NewNop(), nil, webhookSecret)
	return svc, r, payments
}

func monthlyPlan(t *testing.T, svc *service.Service, cycles int) service.Plan {
	t.Helper()
	plan, err := svc.CreatePlan(context.Background(), service.CreatePlanInput{
		Name:           "Pro",
		Amount:         5000,
		Interval:       service.IntervalMonthly,
		DurationCycles: cycles,
	})
	require.NoError(t, err)
	return plan
}

func chargeCompleted(txRef string, chargeID int64) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"charge.completed","data":{"id":%d,"tx_ref":"%s","status":"successful"}}`,
		chargeID, txRef))
}

func TestCreatePlanRegistersPaidPlansWithProcessor(t *testing.T) {
	svc, _, payments := setup(t)

	plan := monthlyPlan(t, svc, 1)
	require.NotNil(t, plan.ProcessorPlanID)
	require.Equal(t, 1, payments.plans)

	free, err := svc.CreatePlan(context.Background(), service.CreatePlanInput{
		Name:           service.FreePlanName,
		Amount:         0,
		Interval:       service.IntervalMonthly,
		DurationCycles: 1,
	})
	require.NoError(t, err)
	require.Nil(t, free.ProcessorPlanID)
	require.Equal(t, 1, payments.plans)
}

func TestCheckoutTxRefEncodesAccountAndPlan(t *testing.T) {
	svc, _, payments := setup(t)
	plan := monthlyPlan(t, svc, 1)
	accountID := uuid.New()

	link, err := svc.InitiateCheckout(context.Background(), accountID, plan.ID, "a@x.com")
	require.NoError(t, err)
	require.Contains(t, link, "https://checkout.example/sub_")

	require.Len(t, payments.checkouts, 1)
	require.Contains(t, payments.checkouts[0], accountID.String())
	require.Contains(t, payments.checkouts[0], plan.ID.String())
}

func TestWebhookRejectsBadHashBeforeParsing(t *testing.T) {
	svc, r, _ := setup(t)

	// Deliberately broken JSON: with a bad hash it must be rejected without
	// ever hitting the parser.
	err := svc.HandleWebhook(context.Background(), "wrong-hash", []byte("{not json"))
	require.ErrorIs(t, err, service.ErrWebhookRejected)
	require.Empty(t, r.Subscriptions())

	// The same body with a valid hash reaches the parser and fails there.
	err = svc.HandleWebhook(context.Background(), validHash(), []byte("{not json"))
	require.Error(t, err)
	require.NotErrorIs(t, err, service.ErrWebhookRejected)
}

func TestWebhookActivatesSubscription(t *testing.T) {
	svc, r, _ := setup(t)
	plan := monthlyPlan(t, svc, 3)
	accountID := uuid.New()

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return start })

	txRef := fmt.Sprintf("sub_%s_%s_%s", accountID, plan.ID, uuid.New())
	require.NoError(t, svc.HandleWebhook(context.Background(), validHash(), chargeCompleted(txRef, 42)))

	subs := r.Subscriptions()
	require.Len(t, subs, 1)
	require.Equal(t, accountID, subs[0].AccountID)
	require.Equal(t, plan.ID, subs[0].PlanID)
	require.Equal(t, "42", subs[0].ProcessorSubID)
	require.Equal(t, "active", subs[0].Status)
	require.NotNil(t, subs[0].EndDate)
	require.Equal(t, start.AddDate(0, 0, 90), *subs[0].EndDate)
}

func TestWebhookYearlyEndDate(t *testing.T) {
	svc, r, _ := setup(t)
	plan, err := svc.CreatePlan(context.Background(), service.CreatePlanInput{
		Name:           "Pro Annual",
		Amount:         50000,
		Interval:       service.IntervalYearly,
		DurationCycles: 2,
	})
	require.NoError(t, err)

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return start })

	txRef := fmt.Sprintf("sub_%s_%s_%s", uuid.New(), plan.ID, uuid.New())
	require.NoError(t, svc.HandleWebhook(context.Background(), validHash(), chargeCompleted(txRef, 7)))

	subs := r.Subscriptions()
	require.Len(t, subs, 1)
	require.Equal(t, start.AddDate(0, 0, 730), *subs[0].EndDate)
}

func TestWebhookRedeliveryIsIdempotent(t *testing.T) {
	svc, r, _ := setup(t)
	plan := monthlyPlan(t, svc, 1)

	txRef := fmt.Sprintf("sub_%s_%s_%s", uuid.New(), plan.ID, uuid.New())
	payload := chargeCompleted(txRef, 42)

	require.NoError(t, svc.HandleWebhook(context.Background(), validHash(), payload))
	require.NoError(t, svc.HandleWebhook(context.Background(), validHash(), payload))
	require.Len(t, r.Subscriptions(), 1)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	svc, r, _ := setup(t)

	payload := []byte(`{"event":"transfer.completed","data":{"id":1,"tx_ref":"x","status":"successful"}}`)
	require.NoError(t, svc.HandleWebhook(context.Background(), validHash(), payload))
	require.Empty(t, r.Subscriptions())

	failed := []byte(`{"event":"charge.completed","data":{"id":1,"tx_ref":"x","status":"failed"}}`)
	require.NoError(t, svc.HandleWebhook(context.Background(), validHash(), failed))
	require.Empty(t, r.Subscriptions())
}

func TestWebhookRejectsMalformedTxRef(t *testing.T) {
	svc, _, _ := setup(t)

	payload := chargeCompleted("order_12345", 42)
	err := svc.HandleWebhook(context.Background(), validHash(), payload)
	require.ErrorIs(t, err, service.ErrBadTxRef)
}

func TestAssignFreePlan(t *testing.T) {
	svc, r, _ := setup(t)
	ctx := context.Background()

	_, err := svc.CreatePlan(ctx, service.CreatePlanInput{
		Name:           service.FreePlanName,
		Amount:         0,
		Interval:       service.IntervalMonthly,
		DurationCycles: 1,
	})
	require.NoError(t, err)

	accountID := uuid.New()
	require.NoError(t, svc.AssignFreePlan(ctx, accountID))

	subs := r.Subscriptions()
	require.Len(t, subs, 1)
	require.Nil(t, subs[0].EndDate)

	// Second call is a no-op.
	require.NoError(t, svc.AssignFreePlan(ctx, accountID))
	require.Len(t, r.Subscriptions(), 1)
}

func TestDeactivateExpired(t *testing.T) {
	svc, r, _ := setup(t)
	plan := monthlyPlan(t, svc, 1)
	ctx := context.Background()

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return start })

	txRef := fmt.Sprintf("sub_%s_%s_%s", uuid.New(), plan.ID, uuid.New())
	require.NoError(t, svc.HandleWebhook(ctx, validHash(), chargeCompleted(txRef, 1)))

	// Not yet expired.
	svc.SetClock(func() time.Time { return start.AddDate(0, 0, 29) })
	count, err := svc.DeactivateExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	// Past the end date.
	svc.SetClock(func() time.Time { return start.AddDate(0, 0, 31) })
	count, err = svc.DeactivateExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, "inactive", r.Subscriptions()[0].Status)
}
