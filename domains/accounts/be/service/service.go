// Package service implements account signup, verification, and activation.
// Signup writes an inactive account plus two time-boxed verification entries;
// activation consumes them and, for agents, provisions the agency workspace.
// Activation is all-or-nothing: any provisioning failure removes the account
// so the user can sign up again from scratch.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	tenantsvc "github.com/brickline/brickline-saas/domains/tenants/be/service"
	"github.com/brickline/brickline-saas/platform/go/metrics"
	"github.com/brickline/brickline-saas/platform/go/notify"
	"github.com/brickline/brickline-saas/platform/go/signing"
	"github.com/brickline/brickline-saas/platform/go/verification"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

// Domain sentinel errors.
var (
	ErrNotFound            = errors.New("account not found")
	ErrDuplicateAccount    = errors.New("account already exists")
	ErrAlreadyActive       = errors.New("account already verified")
	ErrVerificationExpired = errors.New("verification expired or not found")
	ErrPendingMissing      = errors.New("pending signup payload missing")
	ErrCodeMismatch        = errors.New("verification code does not match")
	ErrInvalidToken        = errors.New("activation token invalid")
	ErrDomainConflict      = errors.New("agency domain already taken")
	ErrNotificationFailed  = errors.New("verification notification could not be queued")
)

// Account represents the domain view of an account record.
type Account struct {
	ID             uuid.UUID
	Email          string
	Username       string
	FirstName      string
	LastName       string
	WhatsappNumber *string
	IsAgent        bool
	Active         bool
	CreatedAt      time.Time
}

// SignupInput carries the fields shared by both signup variants.
type SignupInput struct {
	Email          string
	Username       string
	Password       string
	FirstName      string
	LastName       string
	WhatsappNumber string
}

// AgentSignupInput adds the agency fields required to provision a workspace.
type AgentSignupInput struct {
	SignupInput
	AgencyName  string
	ContactInfo string
}

// ActivationResult reports what activation produced. Workspace is nil for
// standard accounts.
type ActivationResult struct {
	Account   Account
	Workspace *tenantsvc.Provisioned
}

// Repository abstracts account persistence.
type Repository interface {
	Create(ctx context.Context, a Account, passwordHash string) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	GetByUsername(ctx context.Context, username string) (Account, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Provisioner creates and tears down agency workspaces.
type Provisioner interface {
	Provision(ctx context.Context, input tenantsvc.ProvisionInput) (tenantsvc.Provisioned, error)
	Teardown(ctx context.Context, accountID uuid.UUID) error
}

// Notifier queues a notification for background delivery.
type Notifier interface {
	Enqueue(msg notify.Message) error
}

// Biller puts newly activated accounts on the default plan.
type Biller interface {
	AssignFreePlan(ctx context.Context, accountID uuid.UUID) error
}

// Options tunes verification lifetimes and outbound links.
type Options struct {
	CodeTTL           time.Duration
	PendingTTL        time.Duration
	ResetTTL          time.Duration
	ActivationBaseURL string
}

func (o *Options) applyDefaults() {
	if o.CodeTTL <= 0 {
		o.CodeTTL = 15 * time.Minute
	}
	if o.PendingTTL <= 0 {
		o.PendingTTL = time.Hour
	}
	if o.ResetTTL <= 0 {
		o.ResetTTL = 15 * time.Minute
	}
}

// Service provides signup and activation operations.
type Service struct {
	repo     Repository
	verif    verification.Store
	signer   *signing.Signer
	tenants  Provisioner
	notifier Notifier
	biller   Biller
	logger   *zap.Logger
	metrics  *metrics.Metrics
	opts     Options
}

// SetBiller wires the optional default-plan assignment that runs after
// activation.
func (s *Service) SetBiller(b Biller) {
	s.biller = b
}

// New constructs a Service with required dependencies. Metrics may be nil.
func New(repo Repository, verif verification.Store, signer *signing.Signer, tenants Provisioner,
	notifier Notifier, logger *zap.Logger, m *metrics.Metrics, opts Options) *Service {
	if repo == nil {
		panic("accounts repo is required")
	}
	if verif == nil {
		panic("verification store is required")
	}
	if signer == nil {
		panic("signer is required")
	}
	if tenants == nil {
		panic("tenant provisioner is required")
	}
	if notifier == nil {
		panic("notifier is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	opts.applyDefaults()

	return &Service{
		repo: repo, verif: verif, signer: signer, tenants: tenants,
		notifier: notifier, logger: logger, metrics: m, opts: opts,
	}
}

// SignupStandard registers a buyer or seller account pending verification.
func (s *Service) SignupStandard(ctx context.Context, input SignupInput) (Account, error) {
	if err := validateSignup(input, FieldErrors{}); err != nil {
		s.countSignup("standard", "invalid")
		return Account{}, err
	}
	account, err := s.signup(ctx, input, verification.PendingSignup{
		Email:          normalizeEmail(input.Email),
		Username:       strings.TrimSpace(input.Username),
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		WhatsappNumber: strings.TrimSpace(input.WhatsappNumber),
		Kind:           verification.KindStandard,
	}, false)
	s.countSignupOutcome("standard", err)
	return account, err
}

// SignupAgent registers an agency account pending verification. The agency
// details ride along in the pending payload until activation provisions the
// workspace.
func (s *Service) SignupAgent(ctx context.Context, input AgentSignupInput) (Account, error) {
	fieldErrors := FieldErrors{}
	if strings.TrimSpace(input.AgencyName) == "" {
		fieldErrors.add("agencyName", "agencyName is required")
	}
	contact := strings.TrimSpace(input.ContactInfo)
	if contact == "" {
		fieldErrors.add("contactInfo", "contactInfo is required")
	} else if !validPhone(contact) {
		fieldErrors.add("contactInfo", "contactInfo must be a valid phone number")
	}
	if err := validateSignup(input.SignupInput, fieldErrors); err != nil {
		s.countSignup("agent", "invalid")
		return Account{}, err
	}

	account, err := s.signup(ctx, input.SignupInput, verification.PendingSignup{
		Email:          normalizeEmail(input.Email),
		Username:       strings.TrimSpace(input.Username),
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		WhatsappNumber: strings.TrimSpace(input.WhatsappNumber),
		Kind:           verification.KindAgent,
		AgencyName:     strings.TrimSpace(input.AgencyName),
		ContactInfo:    contact,
	}, true)
	s.countSignupOutcome("agent", err)
	return account, err
}

func (s *Service) signup(ctx context.Context, input SignupInput, pending verification.PendingSignup, isAgent bool) (Account, error) {
	email := normalizeEmail(input.Email)
	username := strings.TrimSpace(input.Username)

	if err := s.evictStale(ctx, email, username); err != nil {
		return Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	account := Account{
		ID:        uuid.New(),
		Email:     email,
		Username:  username,
		FirstName: pending.FirstName,
		LastName:  pending.LastName,
		IsAgent:   isAgent,
		Active:    false,
	}
	if pending.WhatsappNumber != "" {
		n := pending.WhatsappNumber
		account.WhatsappNumber = &n
	}

	created, err := s.repo.Create(ctx, account, string(hash))
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			return Account{}, ErrDuplicateAccount
		}
		return Account{}, err
	}

	code, err := generateCode()
	if err != nil {
		s.undoSignup(ctx, created.ID, email)
		return Account{}, fmt.Errorf("generate verification code: %w", err)
	}

	if err := s.verif.PutCode(ctx, email, code, s.opts.CodeTTL); err != nil {
		s.undoSignup(ctx, created.ID, email)
		return Account{}, fmt.Errorf("cache verification code: %w", err)
	}
	if err := s.verif.PutPending(ctx, email, pending, s.opts.PendingTTL); err != nil {
		s.undoSignup(ctx, created.ID, email)
		return Account{}, fmt.Errorf("cache pending signup: %w", err)
	}

	if err := s.sendVerification(email, pending.FirstName, code); err != nil {
		// The account stays inactive and the cache entries stand so the user
		// can recover through the resend endpoint.
		s.logger.Warn("verification notification not queued",
			zap.String("email", email), zap.Error(err))
		return created, ErrNotificationFailed
	}

	return created, nil
}

// evictStale removes inactive accounts holding the requested email or
// username. Active holders win and block the signup.
func (s *Service) evictStale(ctx context.Context, email, username string) error {
	for _, lookup := range []func(context.Context) (Account, error){
		func(ctx context.Context) (Account, error) { return s.repo.GetByEmail(ctx, email) },
		func(ctx context.Context) (Account, error) { return s.repo.GetByUsername(ctx, username) },
	} {
		existing, err := lookup(ctx)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		if existing.Active {
			return ErrDuplicateAccount
		}
		if err := s.repo.Delete(ctx, existing.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *Service) undoSignup(ctx context.Context, accountID uuid.UUID, email string) {
	if err := s.repo.Delete(ctx, accountID); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Error("signup rollback failed", zap.String("email", email), zap.Error(err))
	}
	s.clearVerification(ctx, email)
}

// ActivateWithCode verifies the emailed code and activates the account. A
// wrong code leaves the verification entries untouched so the user can retry.
func (s *Service) ActivateWithCode(ctx context.Context, email, code string) (ActivationResult, error) {
	email = normalizeEmail(email)

	stored, err := s.verif.GetCode(ctx, email)
	if err != nil {
		if errors.Is(err, verification.ErrNotFound) {
			s.countActivation("code", "expired")
			return ActivationResult{}, ErrVerificationExpired
		}
		return ActivationResult{}, err
	}
	if stored != strings.TrimSpace(code) {
		s.countActivation("code", "mismatch")
		return ActivationResult{}, ErrCodeMismatch
	}

	result, err := s.activate(ctx, email)
	s.countActivationOutcome("code", err)
	return result, err
}

// ActivateWithToken verifies the signed activation link and activates the
// account.
func (s *Service) ActivateWithToken(ctx context.Context, token string) (ActivationResult, error) {
	email, err := s.signer.Unsign(token)
	if err != nil {
		s.countActivation("link", "invalid_token")
		return ActivationResult{}, ErrInvalidToken
	}

	result, err := s.activate(ctx, normalizeEmail(email))
	s.countActivationOutcome("link", err)
	return result, err
}

func (s *Service) activate(ctx context.Context, email string) (ActivationResult, error) {
	// The pending payload has a longer lifetime than the code, so a valid
	// code without it is its own condition rather than an ordinary expiry.
	pending, err := s.verif.GetPending(ctx, email)
	if err != nil {
		if errors.Is(err, verification.ErrNotFound) {
			return ActivationResult{}, ErrPendingMissing
		}
		return ActivationResult{}, err
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ActivationResult{}, ErrVerificationExpired
		}
		return ActivationResult{}, err
	}
	if account.Active {
		s.clearVerification(ctx, email)
		return ActivationResult{Account: account}, nil
	}

	activated, err := s.repo.SetActive(ctx, account.ID, true)
	if err != nil {
		return ActivationResult{}, err
	}

	result := ActivationResult{Account: activated}

	if pending.Kind == verification.KindAgent {
		provisioned, err := s.tenants.Provision(ctx, tenantsvc.ProvisionInput{
			AccountID:   activated.ID,
			AgencyName:  pending.AgencyName,
			ContactInfo: pending.ContactInfo,
		})
		if err != nil {
			s.rollbackActivation(ctx, activated.ID, email)
			if s.metrics != nil {
				s.metrics.ProvisioningFailures.Inc()
			}
			if errors.Is(err, tenantsvc.ErrDomainConflict) {
				return ActivationResult{}, ErrDomainConflict
			}
			return ActivationResult{}, fmt.Errorf("provision workspace: %w", err)
		}
		result.Workspace = &provisioned
	}

	s.clearVerification(ctx, email)
	s.sendWelcome(result)

	// Best effort: the account is usable even if the default plan
	// assignment has to be repeated later.
	if s.biller != nil {
		if err := s.biller.AssignFreePlan(ctx, activated.ID); err != nil {
			s.logger.Warn("free plan assignment failed",
				zap.String("email", email), zap.Error(err))
		}
	}

	return result, nil
}

// rollbackActivation removes everything signup and activation created so a
// failed provisioning leaves no trace: no account, no tenant rows, no cache
// entries.
func (s *Service) rollbackActivation(ctx context.Context, accountID uuid.UUID, email string) {
	if err := s.tenants.Teardown(ctx, accountID); err != nil {
		s.logger.Error("workspace teardown failed during rollback",
			zap.String("email", email), zap.Error(err))
	}
	if err := s.repo.Delete(ctx, accountID); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Error("account delete failed during rollback",
			zap.String("email", email), zap.Error(err))
	}
	s.clearVerification(ctx, email)
}

func (s *Service) clearVerification(ctx context.Context, email string) {
	if err := s.verif.DeleteCode(ctx, email); err != nil {
		s.logger.Warn("clearing verification code failed", zap.String("email", email), zap.Error(err))
	}
	if err := s.verif.DeletePending(ctx, email); err != nil {
		s.logger.Warn("clearing pending signup failed", zap.String("email", email), zap.Error(err))
	}
}

// ResendVerification issues a fresh code for an account that has not finished
// activation. The pending payload must still exist; once it expires the user
// has to sign up again.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if account.Active {
		return ErrAlreadyActive
	}

	pending, err := s.verif.GetPending(ctx, email)
	if err != nil {
		if errors.Is(err, verification.ErrNotFound) {
			return ErrVerificationExpired
		}
		return err
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	if err := s.verif.PutCode(ctx, email, code, s.opts.CodeTTL); err != nil {
		return fmt.Errorf("cache verification code: %w", err)
	}
	if err := s.verif.PutPending(ctx, email, pending, s.opts.PendingTTL); err != nil {
		return fmt.Errorf("refresh pending signup: %w", err)
	}

	if err := s.sendVerification(email, pending.FirstName, code); err != nil {
		return ErrNotificationFailed
	}
	return nil
}

// RequestPasswordReset issues a reset code. Unknown emails are a silent no-op
// so the endpoint cannot be used to probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}
	if err := s.verif.PutResetCode(ctx, email, code, s.opts.ResetTTL); err != nil {
		return fmt.Errorf("cache reset code: %w", err)
	}

	return s.notifier.Enqueue(notify.Message{
		Channel:   notify.ChannelEmail,
		Recipient: email,
		Subject:   "Reset your password",
		Template:  "password_reset",
		Data: map[string]string{
			"first_name": account.FirstName,
			"code":       code,
		},
	})
}

// ResetPasswordWithCode validates the reset code and replaces the credential.
func (s *Service) ResetPasswordWithCode(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)

	if len(newPassword) < 8 {
		return newValidationError("password", "password must be at least 8 characters")
	}

	stored, err := s.verif.GetResetCode(ctx, email)
	if err != nil {
		if errors.Is(err, verification.ErrNotFound) {
			return ErrVerificationExpired
		}
		return err
	}
	if stored != strings.TrimSpace(code) {
		return ErrCodeMismatch
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, account.ID, string(hash)); err != nil {
		return err
	}

	if err := s.verif.DeleteResetCode(ctx, email); err != nil {
		s.logger.Warn("clearing reset code failed", zap.String("email", email), zap.Error(err))
	}
	return nil
}

// ActivationToken returns the signed token embedded in activation links.
func (s *Service) ActivationToken(email string) string {
	return s.signer.Sign(normalizeEmail(email))
}

func (s *Service) sendVerification(email, firstName, code string) error {
	data := map[string]string{
		"first_name": firstName,
		"code":       code,
	}
	if s.opts.ActivationBaseURL != "" {
		data["activation_link"] = fmt.Sprintf("%s/activate?token=%s",
			strings.TrimRight(s.opts.ActivationBaseURL, "/"), s.signer.Sign(email))
	}
	return s.notifier.Enqueue(notify.Message{
		Channel:   notify.ChannelEmail,
		Recipient: email,
		Subject:   "Verify your email",
		Template:  "verify_email",
		Data:      data,
	})
}

// sendWelcome is best effort; a full queue must not fail an activation that
// already committed.
func (s *Service) sendWelcome(result ActivationResult) {
	data := map[string]string{
		"first_name": result.Account.FirstName,
	}
	template := "welcome"
	if result.Workspace != nil {
		template = "welcome_agent"
		data["agency_name"] = result.Workspace.Profile.AgencyName
		data["workspace_domain"] = result.Workspace.Domain
	}
	if err := s.notifier.Enqueue(notify.Message{
		Channel:   notify.ChannelEmail,
		Recipient: result.Account.Email,
		Subject:   "Welcome to Brickline",
		Template:  template,
		Data:      data,
	}); err != nil {
		s.logger.Warn("welcome notification not queued",
			zap.String("email", result.Account.Email), zap.Error(err))
	}
}

func validateSignup(input SignupInput, fieldErrors FieldErrors) error {
	email := normalizeEmail(input.Email)
	if email == "" {
		fieldErrors.add("email", "email is required")
	} else if !strings.Contains(email, "@") {
		fieldErrors.add("email", "email must contain '@'")
	}

	if strings.TrimSpace(input.Username) == "" {
		fieldErrors.add("username", "username is required")
	}
	if len(input.Password) < 8 {
		fieldErrors.add("password", "password must be at least 8 characters")
	}
	if strings.TrimSpace(input.FirstName) == "" {
		fieldErrors.add("firstName", "firstName is required")
	}
	if strings.TrimSpace(input.LastName) == "" {
		fieldErrors.add("lastName", "lastName is required")
	}
	if number := strings.TrimSpace(input.WhatsappNumber); number != "" && !validPhone(number) {
		fieldErrors.add("whatsappNumber", "whatsappNumber must be a valid phone number")
	}

	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}
	return nil
}

// validPhone accepts E.164-ish input; region-less parsing requires the
// leading country code.
func validPhone(number string) bool {
	parsed, err := phonenumbers.Parse(number, "")
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(parsed)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newValidationError(field, message string) error {
	fe := FieldErrors{}
	fe.add(field, message)
	return &ValidationError{Fields: fe}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *Service) countSignup(kind, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.SignupsTotal.WithLabelValues(kind, status).Inc()
}

func (s *Service) countSignupOutcome(kind string, err error) {
	switch {
	case err == nil:
		s.countSignup(kind, "created")
	case errors.Is(err, ErrDuplicateAccount):
		s.countSignup(kind, "duplicate")
	case errors.Is(err, ErrNotificationFailed):
		s.countSignup(kind, "notification_failed")
	default:
		s.countSignup(kind, "error")
	}
}

func (s *Service) countActivation(path, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ActivationsTotal.WithLabelValues(path, status).Inc()
}

func (s *Service) countActivationOutcome(path string, err error) {
	switch {
	case err == nil:
		s.countActivation(path, "activated")
	case errors.Is(err, ErrVerificationExpired):
		s.countActivation(path, "expired")
	case errors.Is(err, ErrPendingMissing):
		s.countActivation(path, "pending_missing")
	case errors.Is(err, ErrDomainConflict):
		s.countActivation(path, "domain_conflict")
	default:
		s.countActivation(path, "error")
	}
}
