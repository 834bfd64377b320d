package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/brickline/brickline-saas/domains/assistant/be/service"
	"github.com/brickline/brickline-saas/platform/go/persistence"
)

// PostgresRepository implements the assistant repository on the shared
// persistence layer.
type PostgresRepository struct {
	embeddings *persistence.EmbeddingStore
	properties *persistence.PropertyStore
}

// NewPostgresRepository constructs a repository backed by the embedding and
// property stores.
func NewPostgresRepository(embeddings *persistence.EmbeddingStore, properties *persistence.PropertyStore) *PostgresRepository {
	if embeddings == nil {
		panic("embedding store is required")
	}
	if properties == nil {
		panic("property store is required")
	}
	return &PostgresRepository{embeddings: embeddings, properties: properties}
}

func (r *PostgresRepository) PropertyExists(ctx context.Context, propertyID uuid.UUID) (bool, error) {
	_, err := r.properties.Get(ctx, propertyID)
	if err != nil {
		if errors.Is(err, persistence.ErrPropertyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PostgresRepository) ReplaceEmbeddings(ctx context.Context, propertyID uuid.UUID, embeddings []service.Embedding) error {
	if err := r.embeddings.DeleteByProperty(ctx, propertyID); err != nil {
		return err
	}
	for _, e := range embeddings {
		if _, err := r.embeddings.Insert(ctx, propertyID, e.Chunk, e.Vector); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) ListEmbeddings(ctx context.Context, propertyID uuid.UUID) ([]service.Embedding, error) {
	records, err := r.embeddings.ListByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	out := make([]service.Embedding, 0, len(records))
	for _, rec := range records {
		out = append(out, service.Embedding{Chunk: rec.Chunk, Vector: rec.Vector})
	}
	return out, nil
}

func (r *PostgresRepository) RecordChat(ctx context.Context, chat service.Chat) error {
	return r.embeddings.InsertChat(ctx, persistence.ChatRecord{
		PropertyID: chat.PropertyID,
		AccountID:  chat.AccountID,
		Question:   chat.Question,
		Answer:     chat.Answer,
	})
}

// Ensure interface compliance.
var _ service.Repository = (*PostgresRepository)(nil)
