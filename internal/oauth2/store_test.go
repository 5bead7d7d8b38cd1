package oauth2

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryPendingStore_PutAndTake(t *testing.T) {
	s := NewMemoryPendingStore()
	defer s.Stop()

	rec := &PendingAuthorization{
		State:         "state-1",
		CodeVerifier:  "verifier-1",
		CallbackState: map[string]interface{}{"conversation": "42"},
	}

	if err := s.Put(rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Take("state-1")
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}

	if got.CodeVerifier != "verifier-1" {
		t.Errorf("Expected verifier %q, got %q", "verifier-1", got.CodeVerifier)
	}
	if got.CreatedAt.IsZero() || got.ExpiresAt.IsZero() {
		t.Error("Put should fill CreatedAt and ExpiresAt")
	}
	if got.ExpiresAt.Sub(got.CreatedAt) != DefaultPendingTTL {
		t.Errorf("Expected TTL %v, got %v", DefaultPendingTTL, got.ExpiresAt.Sub(got.CreatedAt))
	}
}

func TestMemoryPendingStore_TakeIsSingleUse(t *testing.T) {
	s := NewMemoryPendingStore()
	defer s.Stop()

	if err := s.Put(&PendingAuthorization{State: "once"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, err := s.Take("once"); err != nil {
		t.Fatalf("First take should succeed: %v", err)
	}

	_, err := s.Take("once")
	if !errors.Is(err, ErrUnknownState) {
		t.Errorf("Second take should fail with ErrUnknownState, got %v", err)
	}
}

func TestMemoryPendingStore_TakeUnknown(t *testing.T) {
	s := NewMemoryPendingStore()
	defer s.Stop()

	_, err := s.Take("never-stored")
	if !errors.Is(err, ErrUnknownState) {
		t.Errorf("Expected ErrUnknownState, got %v", err)
	}
}

func TestMemoryPendingStore_TakeExpired(t *testing.T) {
	s := NewMemoryPendingStore()
	defer s.Stop()

	created := time.Now().Add(-11 * time.Minute)
	err := s.Put(&PendingAuthorization{
		State:     "stale",
		CreatedAt: created,
		ExpiresAt: created.Add(DefaultPendingTTL),
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	_, err = s.Take("stale")
	if !errors.Is(err, ErrExpiredState) {
		t.Errorf("Expected ErrExpiredState, got %v", err)
	}

	// Expired records are removed, never reusable.
	_, err = s.Take("stale")
	if !errors.Is(err, ErrUnknownState) {
		t.Errorf("Expected ErrUnknownState after expired take, got %v", err)
	}
}

func TestMemoryPendingStore_TTLBoundary(t *testing.T) {
	s := NewMemoryPendingStore()
	defer s.Stop()

	// Still inside the TTL window: take succeeds.
	created := time.Now().Add(-DefaultPendingTTL + time.Second)
	err := s.Put(&PendingAuthorization{
		State:     "fresh",
		CreatedAt: created,
		ExpiresAt: created.Add(DefaultPendingTTL),
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := s.Take("fresh"); err != nil {
		t.Errorf("Take inside TTL should succeed: %v", err)
	}

	// Just past the TTL window: ExpiredState, not UnknownState.
	created = time.Now().Add(-DefaultPendingTTL - time.Second)
	err = s.Put(&PendingAuthorization{
		State:     "past",
		CreatedAt: created,
		ExpiresAt: created.Add(DefaultPendingTTL),
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := s.Take("past"); !errors.Is(err, ErrExpiredState) {
		t.Errorf("Take past TTL should fail with ErrExpiredState, got %v", err)
	}
}

func TestMemoryPendingStore_DuplicateState(t *testing.T) {
	s := NewMemoryPendingStore()
	defer s.Stop()

	if err := s.Put(&PendingAuthorization{State: "dup"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	err := s.Put(&PendingAuthorization{State: "dup"})
	if !errors.Is(err, ErrDuplicateState) {
		t.Errorf("Expected ErrDuplicateState, got %v", err)
	}
}

func TestMemoryPendingStore_PutPurgesExpired(t *testing.T) {
	s := NewMemoryPendingStore()
	defer s.Stop()

	created := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		err := s.Put(&PendingAuthorization{
			State:     fmt.Sprintf("old-%d", i),
			CreatedAt: created,
			ExpiresAt: created.Add(DefaultPendingTTL),
		})
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	if err := s.Put(&PendingAuthorization{State: "new"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if got := s.Len(); got != 1 {
		t.Errorf("Expected expired records purged on Put, store has %d records", got)
	}
}

func TestMemoryPendingStore_ConcurrentTake(t *testing.T) {
	s := NewMemoryPendingStore()
	defer s.Stop()

	if err := s.Put(&PendingAuthorization{State: "contested"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	const callers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Take("contested"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("Exactly one concurrent take should succeed, got %d", successes)
	}
}
