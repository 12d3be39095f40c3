package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stocklaabh/verify-api/internal/domain"
)

type codeKey struct {
	identifier string
	channel    domain.Channel
}

// Store is an in-process CodeStore: a mutex-guarded map keyed by
// (identifier, channel). The bcrypt comparison in Consume runs outside the
// map lock so attempts on different keys don't serialize; single use is
// preserved by a hash-conditioned delete, so only one attempt can win.
// Expired entries are dropped lazily on access and by a periodic sweep.
type Store struct {
	mu    sync.Mutex
	codes map[codeKey]*domain.VerificationCode

	done      chan struct{}
	closeOnce sync.Once
}

// New creates the store and starts the expiry sweeper.
func New() *Store {
	s := &Store{
		codes: make(map[codeKey]*domain.VerificationCode),
		done:  make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Close stops the expiry sweeper. Safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Put overwrites any outstanding code for the same key.
func (s *Store) Put(_ context.Context, code *domain.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *code
	s.codes[codeKey{code.Identifier, code.Channel}] = &cp
	return nil
}

// Get returns the current code for the key, treating expired entries as absent.
func (s *Store) Get(_ context.Context, identifier string, ch domain.Channel) (*domain.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := codeKey{identifier, ch}
	code, ok := s.codes[k]
	if !ok {
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	if code.Expired(time.Now()) {
		delete(s.codes, k)
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	cp := *code
	return &cp, nil
}

// Consume validates the submitted code against the stored one. On a match
// the entry is deleted so it cannot be reused; on a mismatch it is left
// intact and stays valid until expiry.
func (s *Store) Consume(_ context.Context, identifier string, ch domain.Channel, submitted string) (domain.ConsumeResult, error) {
	k := codeKey{identifier, ch}

	s.mu.Lock()
	code, ok := s.codes[k]
	var snapshot domain.VerificationCode
	if ok {
		snapshot = *code
	}
	s.mu.Unlock()

	if !ok {
		return domain.ConsumeNotFound, nil
	}
	if snapshot.Expired(time.Now()) {
		s.deleteIfHash(k, snapshot.CodeHash)
		return domain.ConsumeExpired, nil
	}
	if !snapshot.Matches(submitted) {
		return domain.ConsumeInvalidCode, nil
	}
	// Only the attempt that removes the entry wins; a concurrent winner or a
	// resend that replaced the code resolves to not-found.
	if !s.deleteIfHash(k, snapshot.CodeHash) {
		return domain.ConsumeNotFound, nil
	}
	return domain.ConsumeValid, nil
}

// deleteIfHash removes the entry only while it still holds the given hash.
func (s *Store) deleteIfHash(k codeKey, hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.codes[k]
	if !ok || cur.CodeHash != hash {
		return false
	}
	delete(s.codes, k)
	return true
}

// sweep removes expired entries every minute until Close.
func (s *Store) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for k, code := range s.codes {
				if code.Expired(now) {
					delete(s.codes, k)
				}
			}
			s.mu.Unlock()
		}
	}
}
