package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/platform/go/tenant"
)

// Errors returned by the service layer.
var (
	ErrNotFound       = errors.New("tenant not found")
	ErrDomainConflict = errors.New("tenant domain already exists")
	ErrInvalidAgency  = errors.New("agency name is required")
)

// Tenant represents the domain model for a tenant registry entry.
type Tenant struct {
	ID         uuid.UUID
	Name       string
	Slug       string
	SchemaName string
	OnTrial    bool
	PaidUntil  time.Time
	CreatedAt  time.Time
}

// AgentProfile links an account to the tenant it owns.
type AgentProfile struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	AccountID     uuid.UUID
	AgencyName    string
	ContactInfo   string
	LicenseNumber *string
	Address       *string
	CreatedAt     time.Time
}

// Provisioned bundles everything created for one agency.
type Provisioned struct {
	Tenant  Tenant
	Domain  string
	Profile AgentProfile
}

// ProvisionInput represents the request to provision an agency workspace.
type ProvisionInput struct {
	AccountID     uuid.UUID
	AgencyName    string
	ContactInfo   string
	LicenseNumber *string
	Address       *string
}

// Repository abstracts persistence.
type Repository interface {
	DomainExists(ctx context.Context, domain string) (bool, error)
	CreateProvisioned(ctx context.Context, t Tenant, domain string, p AgentProfile) (Provisioned, error)
	GetBySlug(ctx context.Context, slug string) (Tenant, error)
	GetByDomain(ctx context.Context, domain string) (Tenant, error)
	GetProfileByAccount(ctx context.Context, accountID uuid.UUID) (AgentProfile, error)
	DeleteByOwner(ctx context.Context, accountID uuid.UUID) error
}

// SchemaProvisioner creates and drops per-tenant database schemas.
type SchemaProvisioner interface {
	EnsureSchema(ctx context.Context, schemaName string) error
	DropSchema(ctx context.Context, schemaName string) error
}

// Service provisions agency workspaces and resolves tenant spaces for routing.
type Service struct {
	repo      Repository
	schemas   SchemaProvisioner
	logger    *zap.Logger
	suffix    string
	trialDays int
}

// New constructs a Service with required dependencies.
func New(repo Repository, schemas SchemaProvisioner, logger *zap.Logger, platformSuffix string, trialDays int) *Service {
	if repo == nil {
		panic("tenants repo is required")
	}
	if schemas == nil {
		panic("schema provisioner is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if platformSuffix == "" {
		panic("platform suffix is required")
	}
	if trialDays <= 0 {
		trialDays = 90
	}
	return &Service{repo: repo, schemas: schemas, logger: logger, suffix: platformSuffix, trialDays: trialDays}
}

// Provision creates the tenant registry rows and the tenant schema for one
// agency. Either everything is visible afterwards or nothing is: a registry
// conflict aborts before any write, and a schema failure tears the registry
// rows back down.
func (s *Service) Provision(ctx context.Context, input ProvisionInput) (Provisioned, error) {
	name := strings.TrimSpace(input.AgencyName)
	if name == "" {
		return Provisioned{}, ErrInvalidAgency
	}

	slug := tenant.Slugify(name)
	domain := tenant.BuildSubdomain(slug, s.suffix)
	schemaName := tenant.BuildSchemaName(slug)

	exists, err := s.repo.DomainExists(ctx, domain)
	if err != nil {
		return Provisioned{}, fmt.Errorf("check domain: %w", err)
	}
	if exists {
		return Provisioned{}, ErrDomainConflict
	}

	now := time.Now().UTC()
	t := Tenant{
		ID:         uuid.New(),
		Name:       name,
		Slug:       slug,
		SchemaName: schemaName,
		OnTrial:    true,
		PaidUntil:  now.AddDate(0, 0, s.trialDays),
	}
	profile := AgentProfile{
		ID:            uuid.New(),
		AccountID:     input.AccountID,
		AgencyName:    name,
		ContactInfo:   input.ContactInfo,
		LicenseNumber: input.LicenseNumber,
		Address:       input.Address,
	}

	out, err := s.repo.CreateProvisioned(ctx, t, domain, profile)
	if err != nil {
		return Provisioned{}, err
	}

	if err := s.schemas.EnsureSchema(ctx, schemaName); err != nil {
		s.logger.Error("tenant schema provisioning failed, rolling back registry rows",
			zap.String("tenant_id", out.Tenant.ID.String()),
			zap.String("schema", schemaName),
			zap.Error(err))
		if dropErr := s.schemas.DropSchema(ctx, schemaName); dropErr != nil {
			s.logger.Warn("partial schema drop failed", zap.String("schema", schemaName), zap.Error(dropErr))
		}
		if delErr := s.repo.DeleteByOwner(ctx, input.AccountID); delErr != nil {
			s.logger.Error("registry rollback failed", zap.Error(delErr))
		}
		return Provisioned{}, fmt.Errorf("provision schema %s: %w", schemaName, err)
	}

	return out, nil
}

// Teardown removes everything provisioned for the account. Used when a later
// step of account activation fails and the workspace must not survive.
func (s *Service) Teardown(ctx context.Context, accountID uuid.UUID) error {
	profile, err := s.repo.GetProfileByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	if rec, err := s.repo.GetBySlug(ctx, tenant.Slugify(profile.AgencyName)); err == nil {
		if dropErr := s.schemas.DropSchema(ctx, rec.SchemaName); dropErr != nil {
			s.logger.Warn("schema drop failed during teardown",
				zap.String("schema", rec.SchemaName), zap.Error(dropErr))
		}
	}

	return s.repo.DeleteByOwner(ctx, accountID)
}

// ProfileFor returns the agent profile owned by the account.
func (s *Service) ProfileFor(ctx context.Context, accountID uuid.UUID) (AgentProfile, error) {
	return s.repo.GetProfileByAccount(ctx, accountID)
}

// ResolveDomain returns a tenant Space for middleware consumption.
func (s *Service) ResolveDomain(ctx context.Context, domain string) (tenant.Space, error) {
	t, err := s.repo.GetByDomain(ctx, domain)
	if err != nil {
		return tenant.Space{}, err
	}
	return tenant.Space{
		TenantID:   t.ID,
		Slug:       t.Slug,
		SchemaName: t.SchemaName,
		Domain:     domain,
	}, nil
}
