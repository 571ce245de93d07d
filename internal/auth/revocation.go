package auth

import (
	"sync"
	"time"
)

// RevocationSet holds invalidated tokens until their natural expiry. It is
// injected into the token service so a storage-backed implementation can be
// swapped in without touching verification.
type RevocationSet interface {
	Revoke(token string, expiresAt time.Time)
	IsRevoked(token string) bool
}

// MemRevocationSet is the in-process implementation: a mutex-guarded map
// keyed by token string, garbage-collected on access.
type MemRevocationSet struct {
	mu     sync.Mutex
	tokens map[string]time.Time // token -> natural expiry
}

func NewMemRevocationSet() *MemRevocationSet {
	return &MemRevocationSet{tokens: make(map[string]time.Time)}
}

func (s *MemRevocationSet) Revoke(token string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gcLocked()
	// Keep the entry until the token would have expired anyway; afterwards
	// signature/expiry checks reject it on their own.
	s.tokens[token] = expiresAt
}

func (s *MemRevocationSet) IsRevoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gcLocked()
	_, ok := s.tokens[token]
	return ok
}

func (s *MemRevocationSet) gcLocked() {
	now := time.Now()
	for t, exp := range s.tokens {
		if exp.Before(now) {
			delete(s.tokens, t)
		}
	}
}
