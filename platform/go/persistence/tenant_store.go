package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Fully-qualified tables for the shared tenant registry.
const (
	TenantsTable       = "admin.tenants"
	TenantDomainsTable = "admin.tenant_domains"
	AgentProfilesTable = "admin.agent_profiles"
)

// TenantRecord represents a tenant registry row.
type TenantRecord struct {
	TenantID   uuid.UUID `db:"tenant_id"`
	Name       string    `db:"name"`
	Slug       string    `db:"slug"`
	SchemaName string    `db:"schema_name"`
	OnTrial    bool      `db:"on_trial"`
	PaidUntil  time.Time `db:"paid_until"`
	CreatedAt  time.Time `db:"created_at"`
}

// AgentProfileRecord represents the tenant-scoped agent profile row.
type AgentProfileRecord struct {
	ProfileID     uuid.UUID `db:"profile_id"`
	TenantID      uuid.UUID `db:"tenant_id"`
	AccountID     uuid.UUID `db:"account_id"`
	AgencyName    string    `db:"agency_name"`
	ContactInfo   string    `db:"contact_info"`
	LicenseNumber *string   `db:"license_number"`
	Address       *string   `db:"address"`
	CreatedAt     time.Time `db:"created_at"`
}

// ProvisionedTenant bundles the rows created by a single provisioning call.
type ProvisionedTenant struct {
	Tenant  TenantRecord
	Domain  string
	Profile AgentProfileRecord
}

// TenantStore provides access to the tenant registry tables.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore creates a store; assumes migrations already created the tables.
func NewTenantStore(ctx context.Context, pool *pgxpool.Pool) (*TenantStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &TenantStore{pool: pool}, nil
}

const tenantColumns = `tenant_id, name, slug, schema_name, on_trial, paid_until, created_at`

// DomainExists reports whether the subdomain is already bound to a tenant.
func (s *TenantStore) DomainExists(ctx context.Context, domain string) (bool, error) {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE domain = $1)`, TenantDomainsTable)
	if err := s.pool.QueryRow(ctx, query, domain).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateProvisioned inserts the tenant, its domain binding, and the agent
// profile in one transaction. A uniqueness violation on the slug or domain
// from a concurrent provisioning attempt surfaces as ErrDomainTaken; nothing
// is left behind in that case.
func (s *TenantStore) CreateProvisioned(ctx context.Context, tenant TenantRecord, domain string, profile AgentProfileRecord) (ProvisionedTenant, error) {
	if tenant.TenantID == uuid.Nil {
		return ProvisionedTenant{}, errors.New("tenant id is required")
	}
	if profile.AccountID == uuid.Nil {
		return ProvisionedTenant{}, errors.New("profile account id is required")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ProvisionedTenant{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	insertTenant := fmt.Sprintf(`
        INSERT INTO %s (tenant_id, name, slug, schema_name, on_trial, paid_until)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING %s
    `, TenantsTable, tenantColumns)

	tenantOut, err := scanTenantRecord(tx.QueryRow(ctx, insertTenant,
		tenant.TenantID, tenant.Name, tenant.Slug, tenant.SchemaName, tenant.OnTrial, tenant.PaidUntil))
	if err != nil {
		return ProvisionedTenant{}, mapDomainConflict(err)
	}

	insertDomain := fmt.Sprintf(`INSERT INTO %s (domain, tenant_id) VALUES ($1,$2)`, TenantDomainsTable)
	if _, err := tx.Exec(ctx, insertDomain, domain, tenant.TenantID); err != nil {
		return ProvisionedTenant{}, mapDomainConflict(err)
	}

	insertProfile := fmt.Sprintf(`
        INSERT INTO %s (profile_id, tenant_id, account_id, agency_name, contact_info, license_number, address)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING profile_id, tenant_id, account_id, agency_name, contact_info, license_number, address, created_at
    `, AgentProfilesTable)

	profileRow := tx.QueryRow(ctx, insertProfile,
		profile.ProfileID, tenant.TenantID, profile.AccountID, profile.AgencyName,
		profile.ContactInfo, profile.LicenseNumber, profile.Address)

	var profileOut AgentProfileRecord
	if err := profileRow.Scan(&profileOut.ProfileID, &profileOut.TenantID, &profileOut.AccountID,
		&profileOut.AgencyName, &profileOut.ContactInfo, &profileOut.LicenseNumber,
		&profileOut.Address, &profileOut.CreatedAt); err != nil {
		return ProvisionedTenant{}, mapDomainConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ProvisionedTenant{}, fmt.Errorf("commit provisioning tx: %w", err)
	}

	return ProvisionedTenant{Tenant: tenantOut, Domain: domain, Profile: profileOut}, nil
}

// Get fetches a tenant by id.
func (s *TenantStore) Get(ctx context.Context, id uuid.UUID) (TenantRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = $1`, tenantColumns, TenantsTable)
	return scanTenantRecord(s.pool.QueryRow(ctx, query, id))
}

// GetBySlug fetches a tenant by its canonical slug.
func (s *TenantStore) GetBySlug(ctx context.Context, slug string) (TenantRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE slug = $1`, tenantColumns, TenantsTable)
	return scanTenantRecord(s.pool.QueryRow(ctx, query, slug))
}

// GetByDomain resolves a subdomain to its tenant for request routing.
func (s *TenantStore) GetByDomain(ctx context.Context, domain string) (TenantRecord, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM %s t
        JOIN %s d ON d.tenant_id = t.tenant_id
        WHERE d.domain = $1
    `, prefixedTenantColumns("t"), TenantsTable, TenantDomainsTable)
	return scanTenantRecord(s.pool.QueryRow(ctx, query, domain))
}

// GetProfileByAccount fetches the agent profile owned by the account.
func (s *TenantStore) GetProfileByAccount(ctx context.Context, accountID uuid.UUID) (AgentProfileRecord, error) {
	query := fmt.Sprintf(`
        SELECT profile_id, tenant_id, account_id, agency_name, contact_info, license_number, address, created_at
        FROM %s WHERE account_id = $1
    `, AgentProfilesTable)

	var rec AgentProfileRecord
	if err := s.pool.QueryRow(ctx, query, accountID).Scan(&rec.ProfileID, &rec.TenantID, &rec.AccountID,
		&rec.AgencyName, &rec.ContactInfo, &rec.LicenseNumber, &rec.Address, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AgentProfileRecord{}, ErrTenantNotFound
		}
		return AgentProfileRecord{}, err
	}
	return rec, nil
}

// DeleteByOwner removes the agent profile, domain binding, and tenant owned by
// the account in one transaction. Missing rows are not an error so account
// deletion stays idempotent for non-agent accounts.
func (s *TenantStore) DeleteByOwner(ctx context.Context, accountID uuid.UUID) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var tenantID uuid.UUID
	findTenant := fmt.Sprintf(`SELECT tenant_id FROM %s WHERE account_id = $1`, AgentProfilesTable)
	if err := tx.QueryRow(ctx, findTenant, accountID).Scan(&tenantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	for _, stmt := range []string{
		fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1`, AgentProfilesTable),
		fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1`, TenantDomainsTable),
		fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1`, TenantsTable),
	} {
		if _, err := tx.Exec(ctx, stmt, tenantID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func prefixedTenantColumns(alias string) string {
	return fmt.Sprintf("%[1]s.tenant_id, %[1]s.name, %[1]s.slug, %[1]s.schema_name, %[1]s.on_trial, %[1]s.paid_until, %[1]s.created_at", alias)
}

func scanTenantRecord(row pgx.Row) (TenantRecord, error) {
	var rec TenantRecord
	if err := row.Scan(&rec.TenantID, &rec.Name, &rec.Slug, &rec.SchemaName, &rec.OnTrial,
		&rec.PaidUntil, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantRecord{}, ErrTenantNotFound
		}
		return TenantRecord{}, err
	}
	return rec, nil
}

func mapDomainConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDomainTaken
	}
	return err
}
