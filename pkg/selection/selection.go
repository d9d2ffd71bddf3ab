// Package selection tracks the selected node of a graph view and loads the
// detail shown for it.
//
// Selecting a module starts an asynchronous progress fetch. Each selection
// bumps a generation counter and cancels the previous fetch's context, so a
// slow response for an earlier selection can never overwrite the state of
// the current one. Selecting the root is ignored.
//
//	c := selection.New(client, selection.WithOnNodeClick(navigate))
//	c.Select(ctx, node)
//	st := c.State() // Loading, then Loaded or Failed
package selection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/observability"
)

// ProgressFetcher loads a module's lesson completion.
type ProgressFetcher interface {
	ModuleProgress(ctx context.Context, moduleID string) (graph.Progress, error)
}

// Phase is the lifecycle stage of a selection.
type Phase int

// Selection phases. Non-module selections stay in PhaseSelected.
const (
	PhaseIdle Phase = iota
	PhaseSelected
	PhaseLoading
	PhaseLoaded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelected:
		return "selected"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(b []byte) error {
	for q := PhaseIdle; q <= PhaseFailed; q++ {
		if q.String() == string(b) {
			*p = q
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// State is a snapshot of the selection.
type State struct {
	SelectedID string          `json:"selected_id,omitempty"`
	Kind       graph.Kind      `json:"kind,omitempty"`
	Phase      Phase           `json:"phase"`
	Progress   *graph.Progress `json:"progress,omitempty"`
	Err        error           `json:"-"`
	Generation uint64          `json:"generation"`
}

// Loading reports whether a progress fetch is pending.
func (s State) Loading() bool { return s.Phase == PhaseLoading }

// HasSelection reports whether a node is selected.
func (s State) HasSelection() bool { return s.SelectedID != "" }

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option { return func(c *Controller) { c.logger = l } }

// WithTimeout bounds each progress fetch. Zero means no extra bound.
func WithTimeout(d time.Duration) Option { return func(c *Controller) { c.timeout = d } }

// WithOnNodeClick sets the callback fired for every accepted selection.
func WithOnNodeClick(fn func(id string, kind graph.Kind)) Option {
	return func(c *Controller) { c.onNodeClick = fn }
}

// WithOnOpenHandbook sets the callback fired by [Controller.OpenHandbook].
func WithOnOpenHandbook(fn func()) Option { return func(c *Controller) { c.onOpenHandbook = fn } }

// WithOnChange sets a callback fired after state changes, including fetch
// completions. It runs outside the controller's lock. Calls are serialized
// and arrive in the order the changes happened; a change already superseded
// when its callback would run is skipped, so the last call always carries
// the latest state. The callback must not call back into the controller's
// mutating methods.
func WithOnChange(fn func(State)) Option { return func(c *Controller) { c.onChange = fn } }

// Controller is the selection state machine. It is safe for concurrent use.
type Controller struct {
	fetcher ProgressFetcher
	logger  *log.Logger
	timeout time.Duration

	onNodeClick    func(id string, kind graph.Kind)
	onOpenHandbook func()
	onChange       func(State)

	mu      sync.Mutex
	state   State
	gen     uint64
	version uint64 // bumped on every state change
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	notifyMu  sync.Mutex
	delivered uint64
}

// New creates a controller. A nil fetcher disables progress loading.
func New(fetcher ProgressFetcher, opts ...Option) *Controller {
	c := &Controller{fetcher: fetcher}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c
}

// State returns the current selection.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Select selects n. Root nodes are ignored and report false. Selecting a
// module starts a progress fetch bound to ctx.
func (c *Controller) Select(ctx context.Context, n graph.Node) bool {
	if n.IsRoot() || n.ID == "" {
		return false
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = State{SelectedID: n.ID, Kind: n.Kind, Phase: PhaseSelected, Generation: gen}

	if n.Kind == graph.KindModule && c.fetcher != nil {
		c.state.Phase = PhaseLoading
		var (
			fctx   context.Context
			cancel context.CancelFunc
		)
		if c.timeout > 0 {
			fctx, cancel = context.WithTimeout(ctx, c.timeout)
		} else {
			fctx, cancel = context.WithCancel(ctx)
		}
		c.cancel = cancel
		c.wg.Add(1)
		go c.fetch(fctx, cancel, gen, n)
	}
	c.version++
	st, ver := c.state, c.version
	c.mu.Unlock()

	observability.Viewer().OnSelect(ctx, n.Kind.String())
	if c.onNodeClick != nil {
		c.onNodeClick(n.ID, n.Kind)
	}
	c.notify(st, ver)
	return true
}

func (c *Controller) fetch(ctx context.Context, cancel context.CancelFunc, gen uint64, n graph.Node) {
	defer c.wg.Done()
	defer cancel()

	start := time.Now()
	p, err := c.fetcher.ModuleProgress(ctx, n.ProgressID())
	hooks := observability.Viewer()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("discarding stale progress", "node", n.ID, "generation", gen)
		hooks.OnProgressStale(ctx)
		return
	}
	if err != nil {
		c.state.Phase = PhaseFailed
		c.state.Err = err
	} else {
		c.state.Phase = PhaseLoaded
		c.state.Progress = &p
	}
	c.cancel = nil
	c.version++
	st, ver := c.state, c.version
	c.mu.Unlock()

	hooks.OnProgressComplete(ctx, time.Since(start), err)
	if err != nil {
		c.logger.Warn("progress fetch failed", "node", n.ID, "error", err)
	} else {
		c.logger.Debug("progress loaded", "node", n.ID, "percent", p.Percent, "duration", time.Since(start))
	}
	c.notify(st, ver)
}

// Clear deselects and cancels any pending fetch.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = State{Generation: c.gen}
	c.version++
	st, ver := c.state, c.version
	c.mu.Unlock()
	c.notify(st, ver)
}

// Retry refetches progress for the selected module after a failure.
func (c *Controller) Retry(ctx context.Context, n graph.Node) bool {
	st := c.State()
	if st.SelectedID != n.ID || st.Phase != PhaseFailed {
		return false
	}
	return c.Select(ctx, n)
}

// OpenHandbook fires the handbook callback.
func (c *Controller) OpenHandbook() {
	if c.onOpenHandbook != nil {
		c.onOpenHandbook()
	}
}

// Wait blocks until every started fetch has returned.
func (c *Controller) Wait() { c.wg.Wait() }

// Close cancels any pending fetch and waits for it.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.Wait()
}

// notify delivers st unless a later state has already been delivered.
func (c *Controller) notify(st State, ver uint64) {
	if c.onChange == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if ver <= c.delivered {
		return
	}
	c.delivered = ver
	c.onChange(st)
}
