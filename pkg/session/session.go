// Package session keeps per-viewer map state for the HTTP API.
//
// Every viewer gets a [Session] holding its own viewport and selection
// controllers, keyed by a random UUID. Sessions live in memory and are
// discarded once they have been idle for longer than the store's TTL.
//
// # Usage
//
//	store := session.NewMemoryStore(session.DefaultTTL, func() session.Controllers {
//	    return session.Controllers{
//	        Viewport:  viewport.New(800, 600, nil),
//	        Selection: selection.New(client),
//	    }
//	})
//	sess, err := store.Create(ctx)
//
//	snap := sess.Update(func(s *session.Session) {
//	    s.Viewport.ZoomIn()
//	})
//
// Calls on one session are serialized by its mutex; different sessions
// proceed independently.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matzehuels/knowledgemap/pkg/selection"
	"github.com/matzehuels/knowledgemap/pkg/viewport"
)

// Sentinel errors for session operations.
var (
	// ErrNotFound is returned when a session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 30 * time.Minute

// Controllers are the state machines owned by one session.
type Controllers struct {
	Viewport  *viewport.Controller
	Selection *selection.Controller
}

// Factory creates the controllers of a new session.
type Factory func() Controllers

// Session is one viewer's map state.
type Session struct {
	ID        string
	CreatedAt time.Time

	// Viewport and Selection must only be used inside Update.
	Viewport  *viewport.Controller
	Selection *selection.Controller

	mu            sync.Mutex
	lastSeen      time.Time
	handbookOpens int
}

// Snapshot is a serializable copy of a session's state.
type Snapshot struct {
	ID            string             `json:"id"`
	Viewport      viewport.Transform `json:"viewport"`
	ViewportState string             `json:"viewport_state"`
	Width         float64            `json:"width"`
	Height        float64            `json:"height"`
	Selection     selection.State    `json:"selection"`
	Error         string             `json:"error,omitempty"`
	HandbookOpens int                `json:"handbook_opens"`
	CreatedAt     time.Time          `json:"created_at"`
	LastSeen      time.Time          `json:"last_seen"`
}

// Update runs fn with the session locked and returns the resulting state.
func (s *Session) Update(fn func(*Session)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		fn(s)
	}
	return s.snapshot()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot { return s.Update(nil) }

// OpenHandbook records a handbook request and forwards it to the selection
// controller. Call it inside Update.
func (s *Session) OpenHandbook() {
	s.handbookOpens++
	s.Selection.OpenHandbook()
}

func (s *Session) snapshot() Snapshot {
	size := s.Viewport.Size()
	snap := Snapshot{
		ID:            s.ID,
		Viewport:      s.Viewport.Transform(),
		ViewportState: s.Viewport.State().String(),
		Width:         size.W,
		Height:        size.H,
		Selection:     s.Selection.State(),
		HandbookOpens: s.handbookOpens,
		CreatedAt:     s.CreatedAt,
		LastSeen:      s.lastSeen,
	}
	if snap.Selection.Err != nil {
		snap.Error = snap.Selection.Err.Error()
	}
	return snap
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Store is the interface for session storage.
type Store interface {
	// Create starts a new session.
	Create(ctx context.Context) (*Session, error)

	// Get returns a live session and marks it as used.
	// Returns ErrNotFound if it doesn't exist or has expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete ends a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions and returns how many it removed.
	Cleanup(ctx context.Context) (int, error)
}
