package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/domains/accounts/be/repo"
	"github.com/brickline/brickline-saas/domains/accounts/be/service"
	tenantrepo "github.com/brickline/brickline-saas/domains/tenants/be/repo"
	tenantsvc "github.com/brickline/brickline-saas/domains/tenants/be/service"
	"github.com/brickline/brickline-saas/platform/go/notify"
	"github.com/brickline/brickline-saas/platform/go/signing"
	"github.com/brickline/brickline-saas/platform/go/verification"
)

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	fail bool
}

func (f *fakeNotifier) Enqueue(msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return notify.ErrQueueFull
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeNotifier) last(template string) (notify.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].Template == template {
			return f.msgs[i], true
		}
	}
	return notify.Message{}, false
}

type noopSchemas struct{}

func (noopSchemas) EnsureSchema(context.Context, string) error { return nil }
func (noopSchemas) DropSchema(context.Context, string) error   { return nil }

type fixture struct {
	svc         *service.Service
	accounts    *repo.MemoryRepository
	tenants     *tenantrepo.MemoryRepository
	verif       *verification.MemoryStore
	notifier    *fakeNotifier
	provisioner *tenantsvc.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	accounts := repo.NewMemoryRepository()
	tenants := tenantrepo.NewMemoryRepository()
	verif := verification.NewMemoryStore()
	notifier := &fakeNotifier{}

	signer, err := signing.NewSigner("test-secret")
	require.NoError(t, err)

	provisioner := tenantsvc.New(tenants, noopSchemas{}, zap.NewNop(), "brickline.app", 90)
	svc := service.New(accounts, verif, signer, provisioner, notifier, zap.NewNop(), nil, service.Options{
		ActivationBaseURL: "https://brickline.app",
	})

	return &fixture{
		svc: svc, accounts: accounts, tenants: tenants,
		verif: verif, notifier: notifier, provisioner: provisioner,
	}
}

func agentInput(email, username, agency string) service.AgentSignupInput {
	return service.AgentSignupInput{
		SignupInput: service.SignupInput{
			Email:          email,
			Username:       username,
			Password:       "hunter2hunter2",
			FirstName:      "Ada",
			LastName:       "Obi",
			WhatsappNumber: "+2348012345678",
		},
		AgencyName:  agency,
		ContactInfo: "+2348012345678",
	}
}

func standardInput(email, username string) service.SignupInput {
	return service.SignupInput{
		Email:     email,
		Username:  username,
		Password:  "hunter2hunter2",
		FirstName: "Ben",
		LastName:  "Eze",
	}
}

func verificationCode(t *testing.T, f *fixture) string {
	t.Helper()
	msg, ok := f.notifier.last("verify_email")
	require.True(t, ok, "verification email not queued")
	require.Len(t, msg.Data["code"], 6)
	return msg.Data["code"]
}

func TestAgentSignupAndActivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account, err := f.svc.SignupAgent(ctx, agentInput("ada@x.com", "ada", "Best Homes!!"))
	require.NoError(t, err)
	require.False(t, account.Active)
	require.True(t, account.IsAgent)

	code := verificationCode(t, f)
	result, err := f.svc.ActivateWithCode(ctx, "ada@x.com", code)
	require.NoError(t, err)

	require.True(t, result.Account.Active)
	require.NotNil(t, result.Workspace)
	require.Equal(t, "best_homes", result.Workspace.Tenant.Slug)
	require.Equal(t, "tenant_best_homes", result.Workspace.Tenant.SchemaName)
	require.Equal(t, "best_homes.brickline.app", result.Workspace.Domain)
	require.True(t, result.Workspace.Tenant.OnTrial)

	// Verification state is consumed.
	_, err = f.verif.GetCode(ctx, "ada@x.com")
	require.ErrorIs(t, err, verification.ErrNotFound)
	_, err = f.verif.GetPending(ctx, "ada@x.com")
	require.ErrorIs(t, err, verification.ErrNotFound)

	_, ok := f.notifier.last("welcome_agent")
	require.True(t, ok, "agent welcome email not queued")
}

func TestStandardSignupSkipsProvisioning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignupStandard(ctx, standardInput("ben@x.com", "ben"))
	require.NoError(t, err)

	result, err := f.svc.ActivateWithCode(ctx, "ben@x.com", verificationCode(t, f))
	require.NoError(t, err)
	require.Nil(t, result.Workspace)
	require.Empty(t, f.tenants.Tenants())
}

func TestActivationWithExpiredCodeReportsExpiredNotInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Now()
	f.verif.SetClock(func() time.Time { return base })
	_, err := f.svc.SignupStandard(ctx, standardInput("ben@x.com", "ben"))
	require.NoError(t, err)
	code := verificationCode(t, f)

	f.verif.SetClock(func() time.Time { return base.Add(16 * time.Minute) })
	_, err = f.svc.ActivateWithCode(ctx, "ben@x.com", code)
	require.ErrorIs(t, err, service.ErrVerificationExpired)
	require.NotErrorIs(t, err, service.ErrCodeMismatch)
}

func TestActivationWithCodeButNoPendingPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignupStandard(ctx, standardInput("ben@x.com", "ben"))
	require.NoError(t, err)
	code := verificationCode(t, f)

	// The code is still valid but the signup payload is gone.
	require.NoError(t, f.verif.DeletePending(ctx, "ben@x.com"))

	_, err = f.svc.ActivateWithCode(ctx, "ben@x.com", code)
	require.ErrorIs(t, err, service.ErrPendingMissing)
	require.NotErrorIs(t, err, service.ErrVerificationExpired)
}

func TestActivationWithWrongCodeLeavesStateForRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignupStandard(ctx, standardInput("ben@x.com", "ben"))
	require.NoError(t, err)
	code := verificationCode(t, f)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err = f.svc.ActivateWithCode(ctx, "ben@x.com", wrong)
	require.ErrorIs(t, err, service.ErrCodeMismatch)

	// The right code still works afterwards.
	result, err := f.svc.ActivateWithCode(ctx, "ben@x.com", code)
	require.NoError(t, err)
	require.True(t, result.Account.Active)
}

func TestActivationWithToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignupStandard(ctx, standardInput("ben@x.com", "ben"))
	require.NoError(t, err)

	result, err := f.svc.ActivateWithToken(ctx, f.svc.ActivationToken("ben@x.com"))
	require.NoError(t, err)
	require.True(t, result.Account.Active)

	_, err = f.svc.ActivateWithToken(ctx, "tampered.token")
	require.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestSignupRejectsActiveDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignupStandard(ctx, standardInput("ben@x.com", "ben"))
	require.NoError(t, err)
	_, err = f.svc.ActivateWithCode(ctx, "ben@x.com", verificationCode(t, f))
	require.NoError(t, err)

	_, err = f.svc.SignupStandard(ctx, standardInput("ben@x.com", "ben2"))
	require.ErrorIs(t, err, service.ErrDuplicateAccount)

	_, err = f.svc.SignupStandard(ctx, standardInput("other@x.com", "ben"))
	require.ErrorIs(t, err, service.ErrDuplicateAccount)
}

func TestSignupEvictsInactiveHolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.SignupStandard(ctx, standardInput("ben@x.com", "ben"))
	require.NoError(t, err)

	// Same email, never activated: the stale row gives way.
	second, err := f.svc.SignupStandard(ctx, standardInput("ben@x.com", "ben"))
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, 1, f.accounts.Count())
}

func TestSecondAgencyWithSameDomainRollsBackCompletely(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignupAgent(ctx, agentInput("ada@x.com", "ada", "Best Homes"))
	require.NoError(t, err)
	_, err = f.svc.ActivateWithCode(ctx, "ada@x.com", verificationCode(t, f))
	require.NoError(t, err)

	_, err = f.svc.SignupAgent(ctx, agentInput("eve@x.com", "eve", "Best Homes!!"))
	require.NoError(t, err)
	_, err = f.svc.ActivateWithCode(ctx, "eve@x.com", verificationCode(t, f))
	require.ErrorIs(t, err, service.ErrDomainConflict)

	// Exactly one tenant survives and the second account is gone.
	require.Len(t, f.tenants.Tenants(), 1)
	_, err = f.accounts.GetByEmail(ctx, "eve@x.com")
	require.ErrorIs(t, err, service.ErrNotFound)
	_, err = f.verif.GetPending(ctx, "eve@x.com")
	require.ErrorIs(t, err, verification.ErrNotFound)
}

func TestProvisioningFailureDeletesAccount(t *testing.T) {
	accounts := repo.NewMemoryRepository()
	verif := verification.NewMemoryStore()
	notifier := &fakeNotifier{}
	signer, err := signing.NewSigner("test-secret")
	require.NoError(t, err)

	tenants := tenantrepo.NewMemoryRepository()
	broken := tenantsvc.New(tenants, brokenSchemas{}, zap.NewNop(), "brickline.app", 90)
	svc := service.New(accounts, verif, signer, broken, notifier, zap.NewNop(), nil, service.Options{})

	ctx := context.Background()
	_, err = svc.SignupAgent(ctx, agentInput("ada@x.com", "ada", "Best Homes"))
	require.NoError(t, err)

	msg, ok := notifier.last("verify_email")
	require.True(t, ok)

	_, err = svc.ActivateWithCode(ctx, "ada@x.com", msg.Data["code"])
	require.Error(t, err)
	require.NotErrorIs(t, err, service.ErrDomainConflict)

	require.Equal(t, 0, accounts.Count())
	require.Empty(t, tenants.Tenants())
	_, err = verif.GetPending(ctx, "ada@x.com")
	require.ErrorIs(t, err, verification.ErrNotFound)
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignupStandard(ctx, standardInput("ben@x.com", "ben"))
	require.NoError(t, err)
	first := verificationCode(t, f)

	require.NoError(t, f.svc.ResendVerification(ctx, "ben@x.com"))
	second := verificationCode(t, f)

	// The latest code wins.
	if first != second {
		_, err = f.svc.ActivateWithCode(ctx, "ben@x.com", first)
		require.ErrorIs(t, err, service.ErrCodeMismatch)
	}
	result, err := f.svc.ActivateWithCode(ctx, "ben@x.com", second)
	require.NoError(t, err)
	require.True(t, result.Account.Active)

	require.ErrorIs(t, f.svc.ResendVerification(ctx, "ben@x.com"), service.ErrAlreadyActive)
}

func TestResendAfterPendingExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Now()
	f.verif.SetClock(func() time.Time { return base })
	_, err := f.svc.SignupStandard(ctx, standardInput("ben@x.com", "ben"))
	require.NoError(t, err)

	f.verif.SetClock(func() time.Time { return base.Add(2 * time.Hour) })
	require.ErrorIs(t, f.svc.ResendVerification(ctx, "ben@x.com"), service.ErrVerificationExpired)
}

func TestSignupSurvivesNotificationFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = true
	ctx := context.Background()

	account, err := f.svc.SignupStandard(ctx, standardInput("ben@x.com", "ben"))
	require.ErrorIs(t, err, service.ErrNotificationFailed)

	// The account and the cache entries survive so resend can recover.
	require.Equal(t, 1, f.accounts.Count())
	require.Equal(t, "ben@x.com", account.Email)
	require.False(t, account.Active)

	f.notifier.fail = false
	require.NoError(t, f.svc.ResendVerification(ctx, "ben@x.com"))

	result, err := f.svc.ActivateWithCode(ctx, "ben@x.com", verificationCode(t, f))
	require.NoError(t, err)
	require.True(t, result.Account.Active)
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := standardInput("not-an-email", "")
	input.Password = "short"
	input.WhatsappNumber = "12345"

	_, err := f.svc.SignupStandard(ctx, input)
	var validationErr *service.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "email")
	require.Contains(t, validationErr.Fields, "username")
	require.Contains(t, validationErr.Fields, "password")
	require.Contains(t, validationErr.Fields, "whatsappNumber")
	require.Equal(t, 0, f.accounts.Count())
}

func TestAgentSignupRequiresAgencyFields(t *testing.T) {
	f := newFixture(t)

	input := agentInput("ada@x.com", "ada", "")
	input.ContactInfo = "not-a-phone"

	_, err := f.svc.SignupAgent(context.Background(), input)
	var validationErr *service.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "agencyName")
	require.Contains(t, validationErr.Fields, "contactInfo")
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account, err := f.svc.SignupStandard(ctx, standardInput("ben@x.com", "ben"))
	require.NoError(t, err)
	oldHash := f.accounts.PasswordHash(account.ID)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ben@x.com"))
	msg, ok := f.notifier.last("password_reset")
	require.True(t, ok)

	require.ErrorIs(t,
		f.svc.ResetPasswordWithCode(ctx, "ben@x.com", "999999x", "newpassword1"),
		service.ErrCodeMismatch)

	require.NoError(t, f.svc.ResetPasswordWithCode(ctx, "ben@x.com", msg.Data["code"], "newpassword1"))
	require.NotEqual(t, oldHash, f.accounts.PasswordHash(account.ID))

	// The code is single use.
	require.ErrorIs(t,
		f.svc.ResetPasswordWithCode(ctx, "ben@x.com", msg.Data["code"], "newpassword2"),
		service.ErrVerificationExpired)
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "ghost@x.com"))
	_, ok := f.notifier.last("password_reset")
	require.False(t, ok)
}

type brokenSchemas struct{}

func (brokenSchemas) EnsureSchema(context.Context, string) error {
	return errors.New("ddl failed")
}

func (brokenSchemas) DropSchema(context.Context, string) error { return nil }
