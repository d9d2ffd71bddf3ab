package observability

import (
	"context"
	"testing"
	"time"
)

type countingViewer struct {
	Noop
	selects, stale int
}

func (c *countingViewer) OnSelect(context.Context, string) { c.selects++ }
func (c *countingViewer) OnProgressStale(context.Context)  { c.stale++ }

func TestRegistryDefaultsToNoop(t *testing.T) {
	Reset()
	for name, h := range map[string]any{
		"pipeline": Pipeline(),
		"cache":    Cache(),
		"http":     HTTP(),
		"viewer":   Viewer(),
	} {
		if _, ok := h.(Noop); !ok {
			t.Errorf("%s hooks = %T, want Noop", name, h)
		}
	}

	// Events on the defaults go nowhere.
	ctx := context.Background()
	Pipeline().OnLayoutComplete(ctx, 7, 0, time.Millisecond, nil)
	Viewer().OnSessionClose(ctx, "expired", 0)
}

func TestSetViewerHooks(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	v := &countingViewer{}
	SetViewerHooks(v)
	SetViewerHooks(nil)

	ctx := context.Background()
	Viewer().OnSelect(ctx, "module")
	Viewer().OnProgressStale(ctx)
	Viewer().OnProgressStale(ctx)
	if v.selects != 1 || v.stale != 2 {
		t.Errorf("selects = %d, stale = %d", v.selects, v.stale)
	}
	if _, ok := Pipeline().(Noop); !ok {
		t.Error("setting viewer hooks changed the pipeline hooks")
	}

	Reset()
	if Viewer() == ViewerHooks(v) {
		t.Error("Reset kept the custom viewer hooks")
	}
}

func TestSetAll(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	h := NewPrometheusHooks(nil)
	SetAll(h)
	if Pipeline() != PipelineHooks(h) || Cache() != CacheHooks(h) || HTTP() != HTTPHooks(h) || Viewer() != ViewerHooks(h) {
		t.Error("SetAll did not register every family")
	}
}
