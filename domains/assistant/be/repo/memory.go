package repo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/brickline/brickline-saas/domains/assistant/be/service"
)

// MemoryRepository is an in-memory assistant repository for tests.
type MemoryRepository struct {
	mu         sync.Mutex
	properties map[uuid.UUID]struct{}
	embeddings map[uuid.UUID][]service.Embedding
	chats      []service.Chat
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		properties: make(map[uuid.UUID]struct{}),
		embeddings: make(map[uuid.UUID][]service.Embedding),
	}
}

// AddProperty registers a property id as existing.
func (r *MemoryRepository) AddProperty(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.properties[id] = struct{}{}
}

func (r *MemoryRepository) PropertyExists(_ context.Context, propertyID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.properties[propertyID]
	return ok, nil
}

func (r *MemoryRepository) ReplaceEmbeddings(_ context.Context, propertyID uuid.UUID, embeddings []service.Embedding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[propertyID] = append([]service.Embedding(nil), embeddings...)
	return nil
}

func (r *MemoryRepository) ListEmbeddings(_ context.Context, propertyID uuid.UUID) ([]service.Embedding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]service.Embedding(nil), r.embeddings[propertyID]...), nil
}

func (r *MemoryRepository) RecordChat(_ context.Context, chat service.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, chat)
	return nil
}

// Chats returns recorded chats for assertions.
func (r *MemoryRepository) Chats() []service.Chat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]service.Chat(nil), r.chats...)
}

var _ service.Repository = (*MemoryRepository)(nil)
