package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/knowledgemap/pkg/observability"
)

// MemoryStore is an in-memory session store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	factory  Factory
	now      func() time.Time
}

// NewMemoryStore creates a store whose sessions expire after ttl of
// inactivity (DefaultTTL if ttl <= 0). factory builds the controllers of
// every new session.
func NewMemoryStore(ttl time.Duration, factory Factory) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		factory:  factory,
		now:      time.Now,
	}
}

// TTL returns the idle timeout.
func (m *MemoryStore) TTL() time.Duration { return m.ttl }

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Each calls fn for every stored session. fn runs without the store lock
// held and may call Update.
func (m *MemoryStore) Each(fn func(*Session)) {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()
	for _, s := range all {
		fn(s)
	}
}

// Create implements Store.
func (m *MemoryStore) Create(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctrl := m.factory()
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		Viewport:  ctrl.Viewport,
		Selection: ctrl.Selection,
		lastSeen:  now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	active := len(m.sessions)
	m.mu.Unlock()
	observability.Viewer().OnSessionOpen(ctx, active)
	return s, nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	now := m.now()
	if m.expired(s, now) {
		m.remove(ctx, id, "expired")
		return nil, ErrNotFound
	}
	s.touch(now)
	return s, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.remove(ctx, id, "deleted")
	return nil
}

// Cleanup implements Store.
func (m *MemoryStore) Cleanup(ctx context.Context) (int, error) {
	now := m.now()
	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if m.expired(s, now) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		m.remove(ctx, id, "expired")
	}
	return len(stale), nil
}

// Run calls Cleanup every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = m.Cleanup(ctx)
		}
	}
}

// Close ends every session.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	hooks := observability.Viewer()
	for _, s := range all {
		s.Selection.Close()
		hooks.OnSessionClose(context.Background(), "shutdown", 0)
	}
	return nil
}

func (m *MemoryStore) expired(s *Session, now time.Time) bool {
	return now.Sub(s.idleSince()) > m.ttl
}

// remove drops a session and cancels its pending progress fetch.
func (m *MemoryStore) remove(ctx context.Context, id, reason string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	active := len(m.sessions)
	m.mu.Unlock()
	if ok {
		s.Selection.Close()
		observability.Viewer().OnSessionClose(ctx, reason, active)
	}
}

var _ Store = (*MemoryStore)(nil)
