package oauth2

import (
	"sync"
	"time"

	"teamsmcp/pkg/logging"
)

// DefaultPendingTTL is how long a started flow may wait for its callback.
const DefaultPendingTTL = 10 * time.Minute

// PendingAuthorization is the single-use record bridging the two halves of
// an authorization flow. It is the only place flow-scoped secrets persist
// between the start and completion calls.
type PendingAuthorization struct {
	// State is the opaque unguessable key for this record.
	State string

	// CodeVerifier is the PKCE verifier, present iff PKCE is active.
	CodeVerifier string

	// CallbackState is the caller-supplied opaque value, echoed back
	// verbatim and never interpreted.
	CallbackState interface{}

	// CreatedAt and ExpiresAt bound the record's lifetime.
	CreatedAt time.Time
	ExpiresAt time.Time
}

// expired reports whether the record's TTL has elapsed at the given instant.
func (p *PendingAuthorization) expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// PendingStore holds pending authorizations between the two flow
// operations. An in-memory implementation suffices for a single long-lived
// process; multi-instance deployments need a shared backing store with the
// same atomic take semantics.
type PendingStore interface {
	// Put inserts a record, failing with ErrDuplicateState if the state
	// already exists.
	Put(rec *PendingAuthorization) error

	// Take atomically removes and returns the record for state. It fails
	// with ErrUnknownState if absent and ErrExpiredState if present but
	// past its TTL; expired records are removed so they are never
	// reusable.
	Take(state string) (*PendingAuthorization, error)
}

// MemoryPendingStore is a thread-safe in-process PendingStore with TTL
// expiry and an optional background sweep.
type MemoryPendingStore struct {
	mu      sync.Mutex
	pending map[string]*PendingAuthorization

	ttl       time.Duration
	stopSweep chan struct{}
	stopOnce  sync.Once
}

// NewMemoryPendingStore creates a store with the default TTL and starts a
// background sweep for abandoned flows. Call Stop to release it.
func NewMemoryPendingStore() *MemoryPendingStore {
	s := &MemoryPendingStore{
		pending:   make(map[string]*PendingAuthorization),
		ttl:       DefaultPendingTTL,
		stopSweep: make(chan struct{}),
	}

	go s.sweepLoop()

	return s
}

// TTL returns the time-to-live applied to new records.
func (s *MemoryPendingStore) TTL() time.Duration {
	return s.ttl
}

// Put inserts a record. Records without explicit timestamps get CreatedAt
// now and ExpiresAt now+TTL. Expired records are purged opportunistically.
func (s *MemoryPendingStore) Put(rec *PendingAuthorization) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.CreatedAt.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked(now)

	if _, exists := s.pending[rec.State]; exists {
		return ErrDuplicateState
	}
	s.pending[rec.State] = rec
	return nil
}

// Take removes and returns the record for state. Exactly one concurrent
// caller can succeed for a given state; the rest observe ErrUnknownState.
func (s *MemoryPendingStore) Take(state string) (*PendingAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.pending[state]
	if !exists {
		return nil, ErrUnknownState
	}
	delete(s.pending, state)

	if rec.expired(time.Now()) {
		return nil, ErrExpiredState
	}
	return rec, nil
}

// Len returns the number of currently pending records.
func (s *MemoryPendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop stops the background sweep goroutine.
func (s *MemoryPendingStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopSweep)
	})
}

// sweepLoop periodically removes expired records so abandoned flows don't
// accumulate.
func (s *MemoryPendingStore) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			count := s.purgeLocked(time.Now())
			s.mu.Unlock()
			if count > 0 {
				logging.Debug("OAuth", "Purged %d expired pending authorizations", count)
			}
		case <-s.stopSweep:
			return
		}
	}
}

// purgeLocked removes expired records. Caller must hold mu.
func (s *MemoryPendingStore) purgeLocked(now time.Time) int {
	count := 0
	for state, rec := range s.pending {
		if rec.expired(now) {
			delete(s.pending, state)
			count++
		}
	}
	return count
}
