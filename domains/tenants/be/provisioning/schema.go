// Package provisioning creates per-tenant database schemas. Each tenant gets
// its own schema holding workspace-local tables; the shared registry stays in
// the admin schema.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var schemaNamePattern = regexp.MustCompile(`^tenant_[a-z0-9_]+$`)

// ErrBadSchemaName rejects schema names that were not derived by the tenant
// naming rules. Schema names are interpolated into DDL, so the whitelist is
// the injection guard.
var ErrBadSchemaName = errors.New("schema name does not match tenant naming rules")

// baseTables is the DDL applied inside every fresh tenant schema.
var baseTables = []string{
	`CREATE TABLE IF NOT EXISTS %s.listings (
        listing_id   UUID PRIMARY KEY,
        title        TEXT NOT NULL,
        description  TEXT NOT NULL DEFAULT '',
        price        BIGINT NOT NULL DEFAULT 0,
        status       TEXT NOT NULL DEFAULT 'draft',
        created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS %s.clients (
        client_id    UUID PRIMARY KEY,
        full_name    TEXT NOT NULL,
        email        TEXT,
        phone        TEXT,
        notes        TEXT NOT NULL DEFAULT '',
        created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS %s.viewings (
        viewing_id   UUID PRIMARY KEY,
        listing_id   UUID NOT NULL,
        client_id    UUID,
        scheduled_at TIMESTAMPTZ NOT NULL,
        created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
}

// DBProvisioner creates tenant schemas on the primary pool.
type DBProvisioner struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewDBProvisioner constructs a provisioner.
func NewDBProvisioner(pool *pgxpool.Pool, logger *zap.Logger) *DBProvisioner {
	if pool == nil {
		panic("pool is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &DBProvisioner{pool: pool, logger: logger}
}

// EnsureSchema creates the schema and its base tables. Safe to call twice;
// everything is IF NOT EXISTS.
func (p *DBProvisioner) EnsureSchema(ctx context.Context, schemaName string) error {
	if !schemaNamePattern.MatchString(schemaName) {
		return fmt.Errorf("%w: %q", ErrBadSchemaName, schemaName)
	}

	if _, err := p.pool.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schemaName)); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	for _, ddl := range baseTables {
		if _, err := p.pool.Exec(ctx, fmt.Sprintf(ddl, schemaName)); err != nil {
			return fmt.Errorf("create base table: %w", err)
		}
	}

	p.logger.Info("tenant schema ready", zap.String("schema", schemaName))
	return nil
}

// DropSchema removes the schema and everything in it.
func (p *DBProvisioner) DropSchema(ctx context.Context, schemaName string) error {
	if !schemaNamePattern.MatchString(schemaName) {
		return fmt.Errorf("%w: %q", ErrBadSchemaName, schemaName)
	}

	if _, err := p.pool.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, schemaName)); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}
