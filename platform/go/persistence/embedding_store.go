package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tables backing the assistant pipeline.
const (
	PropertyEmbeddingsTable = "admin.property_embeddings"
	PropertyChatsTable      = "admin.property_chats"
)

// EmbeddingRecord holds one text chunk and its vector for a property.
// EmbeddingID is a serial; ascending order reproduces insertion order.
type EmbeddingRecord struct {
	EmbeddingID int64     `db:"embedding_id"`
	PropertyID  uuid.UUID `db:"property_id"`
	Chunk       string    `db:"chunk"`
	Vector      []float64 `db:"vector"`
	CreatedAt   time.Time `db:"created_at"`
}

// ChatRecord holds one answered question for a property.
type ChatRecord struct {
	ChatID     int64      `db:"chat_id"`
	PropertyID uuid.UUID  `db:"property_id"`
	AccountID  *uuid.UUID `db:"account_id"`
	Question   string     `db:"question"`
	Answer     string     `db:"answer"`
	CreatedAt  time.Time  `db:"created_at"`
}

// EmbeddingStore provides access to stored chunk vectors and chat history.
type EmbeddingStore struct {
	pool *pgxpool.Pool
}

// NewEmbeddingStore creates a store; assumes migrations already created the tables.
func NewEmbeddingStore(ctx context.Context, pool *pgxpool.Pool) (*EmbeddingStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &EmbeddingStore{pool: pool}, nil
}

// Insert stores a chunk and its vector for the property.
func (s *EmbeddingStore) Insert(ctx context.Context, propertyID uuid.UUID, chunk string, vector []float64) (EmbeddingRecord, error) {
	query := fmt.Sprintf(`
        INSERT INTO %s (property_id, chunk, vector)
        VALUES ($1,$2,$3)
        RETURNING embedding_id, property_id, chunk, vector, created_at
    `, PropertyEmbeddingsTable)

	var rec EmbeddingRecord
	if err := s.pool.QueryRow(ctx, query, propertyID, chunk, vector).Scan(
		&rec.EmbeddingID, &rec.PropertyID, &rec.Chunk, &rec.Vector, &rec.CreatedAt); err != nil {
		return EmbeddingRecord{}, err
	}
	return rec, nil
}

// ListByProperty returns all stored vectors for the property in insertion order.
func (s *EmbeddingStore) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]EmbeddingRecord, error) {
	query := fmt.Sprintf(`
        SELECT embedding_id, property_id, chunk, vector, created_at
        FROM %s WHERE property_id = $1
        ORDER BY embedding_id ASC
    `, PropertyEmbeddingsTable)

	rows, err := s.pool.Query(ctx, query, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []EmbeddingRecord
	for rows.Next() {
		var rec EmbeddingRecord
		if err := rows.Scan(&rec.EmbeddingID, &rec.PropertyID, &rec.Chunk, &rec.Vector, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteByProperty removes all stored vectors for the property.
func (s *EmbeddingStore) DeleteByProperty(ctx context.Context, propertyID uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE property_id = $1`, PropertyEmbeddingsTable)
	_, err := s.pool.Exec(ctx, query, propertyID)
	return err
}

// InsertChat records an answered question.
func (s *EmbeddingStore) InsertChat(ctx context.Context, rec ChatRecord) error {
	query := fmt.Sprintf(`
        INSERT INTO %s (property_id, account_id, question, answer)
        VALUES ($1,$2,$3,$4)
    `, PropertyChatsTable)
	_, err := s.pool.Exec(ctx, query, rec.PropertyID, rec.AccountID, rec.Question, rec.Answer)
	return err
}
