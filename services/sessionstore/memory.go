package sessionstore

import (
	"context"
	"sync"
	"time"
)

// memoryStore keeps revocations in process memory. Good enough for dev and
// tests; a restart forgets revocations, which only un-revokes tokens that
// were about to expire anyway.
type memoryStore struct {
	mu       sync.RWMutex
	entries  map[string]time.Time
	accounts map[string]accountRevocation
}

type accountRevocation struct {
	at       time.Time
	deadline time.Time
}

var _ Store = (*memoryStore)(nil)

func NewMemoryStore() Store {
	return &memoryStore{
		entries:  make(map[string]time.Time),
		accounts: make(map[string]accountRevocation),
	}
}

func (s *memoryStore) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	s.entries[jti] = time.Now().Add(ttl)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	deadline, ok := s.entries[jti]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(deadline) {
		s.mu.Lock()
		delete(s.entries, jti)
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (s *memoryStore) RevokeAccount(_ context.Context, accountID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := time.Now()
	s.mu.Lock()
	s.accounts[accountID] = accountRevocation{at: now, deadline: now.Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) AccountRevokedAt(_ context.Context, accountID string) (time.Time, error) {
	s.mu.RLock()
	rev, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, nil
	}
	if time.Now().After(rev.deadline) {
		s.mu.Lock()
		delete(s.accounts, accountID)
		s.mu.Unlock()
		return time.Time{}, nil
	}
	return rev.at, nil
}
