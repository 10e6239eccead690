package auth

import (
	"context"
	"sync"
	"time"
)

// defaultPendingTTL bounds how long an abandoned connect flow stays
// correlatable. Matches the provider-side authorization code lifetime.
const defaultPendingTTL = 10 * time.Minute

// PendingStore correlates an OAuth state token back to the user who
// started the flow. Entries are single-use: Consume is an atomic
// check-and-remove, so of two concurrent redirects carrying the same
// token exactly one succeeds.
type PendingStore interface {
	// Put records state -> userKey. Any earlier pending entry for the
	// same user is invalidated, so only the most recent connect attempt
	// can complete.
	Put(ctx context.Context, state, userKey string) error

	// Consume atomically resolves and removes state. The second return
	// is false when the state was never issued, already consumed, or
	// expired.
	Consume(ctx context.Context, state string) (string, bool, error)

	Close() error
}

type pendingEntry struct {
	userKey   string
	expiresAt time.Time
}

// MemoryPendingStore is the process-local PendingStore. It is injected
// into the Broker rather than living as a package global so tests get
// isolated instances and a shared external store can replace it without
// touching call sites.
type MemoryPendingStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]pendingEntry
	byUser  map[string]string
	done    chan struct{}
	once    sync.Once
}

// NewMemoryPendingStore creates a pending store with the given entry TTL
// (defaultPendingTTL when zero) and starts the expiry sweep.
func NewMemoryPendingStore(ttl time.Duration) *MemoryPendingStore {
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	s := &MemoryPendingStore{
		ttl:     ttl,
		entries: make(map[string]pendingEntry),
		byUser:  make(map[string]string),
		done:    make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.done:
				return
			}
		}
	}()

	return s
}

// Put records state -> userKey, displacing any earlier entry for the user.
func (s *MemoryPendingStore) Put(ctx context.Context, state, userKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byUser[userKey]; ok {
		delete(s.entries, old)
	}
	s.entries[state] = pendingEntry{userKey: userKey, expiresAt: time.Now().Add(s.ttl)}
	s.byUser[userKey] = state
	return nil
}

// Consume atomically resolves and removes state.
func (s *MemoryPendingStore) Consume(ctx context.Context, state string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok {
		return "", false, nil
	}
	delete(s.entries, state)
	if s.byUser[entry.userKey] == state {
		delete(s.byUser, entry.userKey)
	}
	if time.Now().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.userKey, true, nil
}

// Len reports the number of live entries. Expired but unswept entries
// count until the next sweep.
func (s *MemoryPendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryPendingStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for state, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, state)
			if s.byUser[entry.userKey] == state {
				delete(s.byUser, entry.userKey)
			}
		}
	}
}

// Close stops the expiry sweep.
func (s *MemoryPendingStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
