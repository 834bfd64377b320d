package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/brickline/brickline-saas/domains/tenants/be/service"
	"github.com/brickline/brickline-saas/platform/go/persistence"
)

// PostgresRepository implements the tenant repository on the shared
// persistence layer.
type PostgresRepository struct {
	store *persistence.TenantStore
}

// NewPostgresRepository constructs a repository backed by TenantStore.
func NewPostgresRepository(store *persistence.TenantStore) *PostgresRepository {
	if store == nil {
		panic("tenant store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) DomainExists(ctx context.Context, domain string) (bool, error) {
	return r.store.DomainExists(ctx, domain)
}

func (r *PostgresRepository) CreateProvisioned(ctx context.Context, t service.Tenant, domain string, p service.AgentProfile) (service.Provisioned, error) {
	out, err := r.store.CreateProvisioned(ctx, toTenantRecord(t), domain, toProfileRecord(p))
	if err != nil {
		if errors.Is(err, persistence.ErrDomainTaken) {
			return service.Provisioned{}, service.ErrDomainConflict
		}
		return service.Provisioned{}, err
	}
	return service.Provisioned{
		Tenant:  toServiceTenant(out.Tenant),
		Domain:  out.Domain,
		Profile: toServiceProfile(out.Profile),
	}, nil
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (service.Tenant, error) {
	rec, err := r.store.GetBySlug(ctx, slug)
	if err != nil {
		return service.Tenant{}, mapNotFound(err)
	}
	return toServiceTenant(rec), nil
}

func (r *PostgresRepository) GetByDomain(ctx context.Context, domain string) (service.Tenant, error) {
	rec, err := r.store.GetByDomain(ctx, domain)
	if err != nil {
		return service.Tenant{}, mapNotFound(err)
	}
	return toServiceTenant(rec), nil
}

func (r *PostgresRepository) GetProfileByAccount(ctx context.Context, accountID uuid.UUID) (service.AgentProfile, error) {
	rec, err := r.store.GetProfileByAccount(ctx, accountID)
	if err != nil {
		return service.AgentProfile{}, mapNotFound(err)
	}
	return toServiceProfile(rec), nil
}

func (r *PostgresRepository) DeleteByOwner(ctx context.Context, accountID uuid.UUID) error {
	return r.store.DeleteByOwner(ctx, accountID)
}

func toTenantRecord(t service.Tenant) persistence.TenantRecord {
	return persistence.TenantRecord{
		TenantID:   t.ID,
		Name:       t.Name,
		Slug:       t.Slug,
		SchemaName: t.SchemaName,
		OnTrial:    t.OnTrial,
		PaidUntil:  t.PaidUntil,
		CreatedAt:  t.CreatedAt,
	}
}

func toServiceTenant(rec persistence.TenantRecord) service.Tenant {
	return service.Tenant{
		ID:         rec.TenantID,
		Name:       rec.Name,
		Slug:       rec.Slug,
		SchemaName: rec.SchemaName,
		OnTrial:    rec.OnTrial,
		PaidUntil:  rec.PaidUntil,
		CreatedAt:  rec.CreatedAt,
	}
}

func toProfileRecord(p service.AgentProfile) persistence.AgentProfileRecord {
	return persistence.AgentProfileRecord{
		ProfileID:     p.ID,
		TenantID:      p.TenantID,
		AccountID:     p.AccountID,
		AgencyName:    p.AgencyName,
		ContactInfo:   p.ContactInfo,
		LicenseNumber: p.LicenseNumber,
		Address:       p.Address,
		CreatedAt:     p.CreatedAt,
	}
}

func toServiceProfile(rec persistence.AgentProfileRecord) service.AgentProfile {
	return service.AgentProfile{
		ID:            rec.ProfileID,
		TenantID:      rec.TenantID,
		AccountID:     rec.AccountID,
		AgencyName:    rec.AgencyName,
		ContactInfo:   rec.ContactInfo,
		LicenseNumber: rec.LicenseNumber,
		Address:       rec.Address,
		CreatedAt:     rec.CreatedAt,
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, persistence.ErrTenantNotFound) {
		return service.ErrNotFound
	}
	return err
}

// Ensure interface compliance.
var _ service.Repository = (*PostgresRepository)(nil)
