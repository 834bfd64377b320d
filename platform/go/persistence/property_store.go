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

// PropertiesTable holds the shared property listings referenced by leads and embeddings.
const PropertiesTable = "admin.properties"

// PropertyRecord represents a row in the properties table.
type PropertyRecord struct {
	PropertyID uuid.UUID `db:"property_id"`
	OwnerID    uuid.UUID `db:"owner_id"`
	Title      string    `db:"title"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
}

// PropertyStore provides access to the properties table.
type PropertyStore struct {
	pool *pgxpool.Pool
}

// NewPropertyStore creates a store; assumes migrations already created the table.
func NewPropertyStore(ctx context.Context, pool *pgxpool.Pool) (*PropertyStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &PropertyStore{pool: pool}, nil
}

// Create inserts a new property listing.
func (s *PropertyStore) Create(ctx context.Context, rec PropertyRecord) (PropertyRecord, error) {
	if rec.PropertyID == uuid.Nil {
		return PropertyRecord{}, errors.New("property id is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (property_id, owner_id, title, status)
        VALUES ($1,$2,$3,$4)
        RETURNING property_id, owner_id, title, status, created_at
    `, PropertiesTable)

	return scanPropertyRecord(s.pool.QueryRow(ctx, query, rec.PropertyID, rec.OwnerID, rec.Title, rec.Status))
}

// Get fetches a property by id.
func (s *PropertyStore) Get(ctx context.Context, id uuid.UUID) (PropertyRecord, error) {
	query := fmt.Sprintf(`SELECT property_id, owner_id, title, status, created_at FROM %s WHERE property_id = $1`, PropertiesTable)
	return scanPropertyRecord(s.pool.QueryRow(ctx, query, id))
}

func scanPropertyRecord(row pgx.Row) (PropertyRecord, error) {
	var rec PropertyRecord
	if err := row.Scan(&rec.PropertyID, &rec.OwnerID, &rec.Title, &rec.Status, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PropertyRecord{}, ErrPropertyNotFound
		}
		return PropertyRecord{}, err
	}
	return rec, nil
}
