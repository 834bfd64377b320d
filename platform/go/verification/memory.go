package verification

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and early development.
// Expiry is checked lazily on read.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	// now is swappable in tests to simulate TTL expiry.
	now func() time.Time
}

type memoryItem struct {
	value     string
	pending   *PendingSignup
	expiresAt time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), now: time.Now}
}

// SetClock replaces the time source; tests use it to force expiry.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) PutCode(ctx context.Context, email, code string, ttl time.Duration) error {
	s.put(codeKeyPrefix+email, memoryItem{value: code}, ttl)
	return nil
}

func (s *MemoryStore) GetCode(ctx context.Context, email string) (string, error) {
	item, ok := s.get(codeKeyPrefix + email)
	if !ok {
		return "", ErrNotFound
	}
	return item.value, nil
}

func (s *MemoryStore) DeleteCode(ctx context.Context, email string) error {
	s.delete(codeKeyPrefix + email)
	return nil
}

func (s *MemoryStore) PutPending(ctx context.Context, email string, pending PendingSignup, ttl time.Duration) error {
	s.put(pendingKeyPrefix+email, memoryItem{pending: &pending}, ttl)
	return nil
}

func (s *MemoryStore) GetPending(ctx context.Context, email string) (PendingSignup, error) {
	item, ok := s.get(pendingKeyPrefix + email)
	if !ok || item.pending == nil {
		return PendingSignup{}, ErrNotFound
	}
	return *item.pending, nil
}

func (s *MemoryStore) DeletePending(ctx context.Context, email string) error {
	s.delete(pendingKeyPrefix + email)
	return nil
}

func (s *MemoryStore) PutResetCode(ctx context.Context, email, code string, ttl time.Duration) error {
	s.put(resetKeyPrefix+email, memoryItem{value: code}, ttl)
	return nil
}

func (s *MemoryStore) GetResetCode(ctx context.Context, email string) (string, error) {
	item, ok := s.get(resetKeyPrefix + email)
	if !ok {
		return "", ErrNotFound
	}
	return item.value, nil
}

func (s *MemoryStore) DeleteResetCode(ctx context.Context, email string) error {
	s.delete(resetKeyPrefix + email)
	return nil
}

func (s *MemoryStore) put(key string, item memoryItem, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.expiresAt = s.now().Add(ttl)
	s.items[key] = item
}

func (s *MemoryStore) get(key string) (memoryItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if s.now().After(item.expiresAt) {
		delete(s.items, key)
		return memoryItem{}, false
	}
	return item, true
}

func (s *MemoryStore) delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

var _ Store = (*MemoryStore)(nil)
