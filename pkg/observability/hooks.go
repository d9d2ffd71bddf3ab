// Package observability provides hooks for metrics and logging.
//
// Libraries emit events through small hook interfaces; the application
// registers an implementation at startup. Until then every event goes to
// [Noop], and [PrometheusHooks] exports them as Prometheus metrics.
//
// # Usage
//
// Register hooks at application startup:
//
//	h := observability.NewPrometheusHooks(reg)
//	observability.SetAll(h)
//	defer observability.Reset()
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnLayoutStart(ctx, len(g.Nodes))
//	// ... compute positions ...
//	observability.Pipeline().OnLayoutComplete(ctx, len(g.Nodes), exhausted, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Hook Interfaces
// =============================================================================

// PipelineHooks receives events from the map pipeline.
type PipelineHooks interface {
	OnFetchStart(ctx context.Context, source string)
	OnFetchComplete(ctx context.Context, source string, nodeCount int, duration time.Duration, err error)

	OnLayoutStart(ctx context.Context, nodeCount int)
	OnLayoutComplete(ctx context.Context, nodeCount, exhausted int, duration time.Duration, err error)

	OnRenderStart(ctx context.Context, formats []string)
	OnRenderComplete(ctx context.Context, formats []string, duration time.Duration, err error)
}

// CacheHooks receives events from layout and artifact cache lookups.
// keyType is "layout" or "artifact".
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks receives events from requests to the graph service.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	// OnError records a request that failed without a response.
	OnError(ctx context.Context, method, host, path string, err error)
}

// ViewerHooks receives events from interactive viewers: node selections,
// the progress fetches they start, and server-side viewer sessions.
type ViewerHooks interface {
	OnSelect(ctx context.Context, kind string)
	OnProgressComplete(ctx context.Context, duration time.Duration, err error)
	// OnProgressStale records a progress response discarded because a newer
	// selection replaced the one that requested it.
	OnProgressStale(ctx context.Context)

	OnSessionOpen(ctx context.Context, active int)
	// OnSessionClose records a session ending; reason is "deleted",
	// "expired" or "shutdown".
	OnSessionClose(ctx context.Context, reason string, active int)
}

// =============================================================================
// No-op
// =============================================================================

// Noop implements every hook interface and discards all events.
type Noop struct{}

func (Noop) OnFetchStart(context.Context, string)                                   {}
func (Noop) OnFetchComplete(context.Context, string, int, time.Duration, error)     {}
func (Noop) OnLayoutStart(context.Context, int)                                     {}
func (Noop) OnLayoutComplete(context.Context, int, int, time.Duration, error)       {}
func (Noop) OnRenderStart(context.Context, []string)                                {}
func (Noop) OnRenderComplete(context.Context, []string, time.Duration, error)       {}
func (Noop) OnCacheHit(context.Context, string)                                     {}
func (Noop) OnCacheMiss(context.Context, string)                                    {}
func (Noop) OnCacheSet(context.Context, string, int)                                {}
func (Noop) OnRequest(context.Context, string, string, string)                      {}
func (Noop) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (Noop) OnError(context.Context, string, string, string, error)                 {}
func (Noop) OnSelect(context.Context, string)                                       {}
func (Noop) OnProgressComplete(context.Context, time.Duration, error)               {}
func (Noop) OnProgressStale(context.Context)                                        {}
func (Noop) OnSessionOpen(context.Context, int)                                     {}
func (Noop) OnSessionClose(context.Context, string, int)                            {}

// =============================================================================
// Registry
// =============================================================================

// All is implemented by hooks that cover every event family.
type All interface {
	PipelineHooks
	CacheHooks
	HTTPHooks
	ViewerHooks
}

var (
	hooksMu       sync.RWMutex
	pipelineHooks PipelineHooks = Noop{}
	cacheHooks    CacheHooks    = Noop{}
	httpHooks     HTTPHooks     = Noop{}
	viewerHooks   ViewerHooks   = Noop{}
)

// SetPipelineHooks registers pipeline hooks. A nil h is ignored.
func SetPipelineHooks(h PipelineHooks) { set(&pipelineHooks, h) }

// SetCacheHooks registers cache hooks. A nil h is ignored.
func SetCacheHooks(h CacheHooks) { set(&cacheHooks, h) }

// SetHTTPHooks registers HTTP client hooks. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) { set(&httpHooks, h) }

// SetViewerHooks registers viewer hooks. A nil h is ignored.
func SetViewerHooks(h ViewerHooks) { set(&viewerHooks, h) }

// SetAll registers h for every event family.
func SetAll(h All) {
	SetPipelineHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
	SetViewerHooks(h)
}

func set[T comparable](dst *T, h T) {
	var zero T
	if h == zero {
		return
	}
	hooksMu.Lock()
	*dst = h
	hooksMu.Unlock()
}

func get[T any](src *T) T {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return *src
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks { return get(&pipelineHooks) }

// Cache returns the registered cache hooks.
func Cache() CacheHooks { return get(&cacheHooks) }

// HTTP returns the registered HTTP client hooks.
func HTTP() HTTPHooks { return get(&httpHooks) }

// Viewer returns the registered viewer hooks.
func Viewer() ViewerHooks { return get(&viewerHooks) }

// Reset restores every hook to [Noop].
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = Noop{}
	cacheHooks = Noop{}
	httpHooks = Noop{}
	viewerHooks = Noop{}
}
