package token

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process map. Mutations take the
// write lock; reads share the read lock.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*Token
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]*Token),
	}
}

// Insert adds a token to the store.
func (s *MemoryStore) Insert(ctx context.Context, tok *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[tok.ID]; exists {
		return ErrDuplicateID
	}
	s.tokens[tok.ID] = tok
	return nil
}

// Get retrieves a token by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, exists := s.tokens[id]
	if !exists {
		return nil, ErrNotFound
	}
	return tok, nil
}

// List returns a snapshot of all tokens. Order is unspecified; callers sort
// for presentation.
func (s *MemoryStore) List(ctx context.Context) ([]*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]*Token, 0, len(s.tokens))
	for _, tok := range s.tokens {
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// Remove deletes a token by id.
func (s *MemoryStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[id]; !exists {
		return ErrNotFound
	}
	delete(s.tokens, id)
	return nil
}

// RemoveExpired deletes all tokens past their absolute expiry and reports
// how many were removed.
func (s *MemoryStore) RemoveExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, tok := range s.tokens {
		if !now.Before(tok.Policy.ExpiresAt) {
			delete(s.tokens, id)
			removed++
		}
	}
	return removed, nil
}

// Close implements Store. The in-memory store holds no resources.
func (s *MemoryStore) Close() error {
	return nil
}
