package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brickline/brickline-saas/platform/go/tenant"
)

// txBeginner exposes the minimal pgx pool behaviour needed by SpaceDB.
type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// SpaceDB wraps a pgx pool to execute queries within a tenant-specific search_path.
type SpaceDB struct {
	pool         txBeginner
	sharedSchema string
}

type SpaceDBConfig struct {
	Pool         *pgxpool.Pool
	SharedSchema string
}

func NewSpaceDB(cfg SpaceDBConfig) *SpaceDB {
	if cfg.Pool == nil {
		panic("SpaceDB requires pool")
	}

	sharedSchema := strings.TrimSpace(cfg.SharedSchema)
	if sharedSchema == "" {
		panic("SpaceDB requires shared schema")
	}
	return &SpaceDB{pool: cfg.Pool, sharedSchema: sharedSchema}
}

// WithShared executes fn inside a transaction scoped to the shared schema only.
func (db *SpaceDB) WithShared(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, db.sharedSchema); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// WithTenant executes fn inside a transaction with search_path set to the
// tenant schema followed by the shared schema.
func (db *SpaceDB) WithTenant(ctx context.Context, space tenant.Space, fn func(tx pgx.Tx) error) error {
	if strings.TrimSpace(space.SchemaName) == "" {
		return fmt.Errorf("schema name is required in tenant.Space")
	}

	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	searchPath := fmt.Sprintf("%s, %s", space.SchemaName, db.sharedSchema)
	if _, err = tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, searchPath); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
