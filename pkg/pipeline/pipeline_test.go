package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knowledgemap/pkg/cache"
	kmerrors "github.com/matzehuels/knowledgemap/pkg/errors"
	"github.com/matzehuels/knowledgemap/pkg/geom"
	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/layout"
	"github.com/matzehuels/knowledgemap/pkg/observability"
	"github.com/matzehuels/knowledgemap/pkg/viewport"
)

// memCache is an in-memory cache.Cache for tests.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	d, ok := c.data[key]
	return d, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Close() error { return nil }

func (c *memCache) keys(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

func testGraph() graph.Graph {
	return graph.Graph{
		Nodes: []graph.Node{
			{ID: "root", Kind: graph.KindRoot, Title: "Platform"},
			{ID: "c1", Kind: graph.KindCourse, Title: "Algebra", Status: graph.StatusCurrent},
			{ID: "c2", Kind: graph.KindCourse, Title: "Geometry"},
			{ID: "m1", Kind: graph.KindModule, Title: "Groups", EntityID: "101"},
		},
		Edges: []graph.Edge{
			{ID: "e1", SourceID: "root", TargetID: "c1"},
			{ID: "e2", SourceID: "root", TargetID: "c2"},
			{ID: "e3", SourceID: "c1", TargetID: "m1"},
		},
	}
}

func staticLoader(g graph.Graph) Loader {
	return LoaderFunc(func(context.Context) (graph.Graph, graph.Report, error) {
		return g, graph.Report{DanglingEdges: 1}, nil
	})
}

func quietRunner(c cache.Cache) *Runner {
	return NewRunner(c, nil, log.New(io.Discard))
}

func TestExecute(t *testing.T) {
	r := quietRunner(nil)
	res, err := r.Execute(context.Background(), staticLoader(testGraph()), Options{
		Formats: []string{FormatSVG, FormatJSON, FormatDOT},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	for _, f := range []string{FormatSVG, FormatJSON, FormatDOT} {
		if len(res.Artifacts[f]) == 0 {
			t.Errorf("missing %s artifact", f)
		}
	}
	if res.Stats.NodeCount != 4 || res.Stats.EdgeCount != 3 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if res.Report.DanglingEdges != 1 {
		t.Errorf("report = %+v", res.Report)
	}
	if len(res.Paths) != 3 {
		t.Errorf("paths = %d, want 3", len(res.Paths))
	}
	if len(res.Layout.Positions) != 4 {
		t.Errorf("positions = %v", res.Layout.Positions)
	}
	for _, n := range res.Graph.Nodes {
		if n.Pos() != res.Layout.Positions[n.ID] {
			t.Errorf("node %s at %v, layout says %v", n.ID, n.Pos(), res.Layout.Positions[n.ID])
		}
	}
	if res.GraphHash == "" {
		t.Error("missing graph hash")
	}
	if res.CacheInfo.LayoutHit || res.CacheInfo.RenderHit {
		t.Errorf("null cache reported hits: %+v", res.CacheInfo)
	}
}

func TestExecuteIsDeterministic(t *testing.T) {
	r := quietRunner(nil)
	opts := Options{Formats: []string{FormatJSON}}
	a, err := r.Execute(context.Background(), staticLoader(testGraph()), opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Execute(context.Background(), staticLoader(testGraph()), opts)
	if err != nil {
		t.Fatal(err)
	}
	if string(a.Artifacts[FormatJSON]) != string(b.Artifacts[FormatJSON]) {
		t.Error("two runs over the same graph differ")
	}
}

func TestExecuteCaches(t *testing.T) {
	c := newMemCache()
	r := quietRunner(c)
	opts := Options{Formats: []string{FormatSVG}}

	first, err := r.Execute(context.Background(), staticLoader(testGraph()), opts)
	if err != nil {
		t.Fatal(err)
	}
	if c.keys("layout:") != 1 || c.keys("artifact:svg:") != 1 {
		t.Fatalf("cache contents = %v", c.data)
	}

	second, err := r.Execute(context.Background(), staticLoader(testGraph()), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.LayoutHit || !second.CacheInfo.RenderHit {
		t.Errorf("cache info = %+v", second.CacheInfo)
	}
	if string(first.Artifacts[FormatSVG]) != string(second.Artifacts[FormatSVG]) {
		t.Error("cached SVG differs")
	}

	opts.Refresh = true
	third, err := r.Execute(context.Background(), staticLoader(testGraph()), opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.LayoutHit || third.CacheInfo.RenderHit {
		t.Errorf("refresh reported hits: %+v", third.CacheInfo)
	}
}

func TestLayoutSeedChangesKey(t *testing.T) {
	c := newMemCache()
	r := quietRunner(c)
	g := testGraph()

	if _, err := r.Layout(context.Background(), g, Options{Layout: &layout.Options{Seed: 1}}); err != nil {
		t.Fatal(err)
	}
	_, hit, err := r.LayoutWithCacheInfo(context.Background(), g, Options{Layout: &layout.Options{Seed: 2}})
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("different seed hit the cache")
	}
	if c.keys("layout:") != 2 {
		t.Errorf("layout entries = %d, want 2", c.keys("layout:"))
	}
}

func TestLayoutIgnoresBadCacheEntry(t *testing.T) {
	c := newMemCache()
	r := quietRunner(c)
	g := testGraph()
	opts := Options{}

	key := r.Keyer.LayoutKey(GraphHash(g), opts.LayoutKeyOpts())
	c.data[key] = []byte(`{"positions":{"root":{"x":0,"y":0}}}`)

	res, hit, err := r.LayoutWithCacheInfo(context.Background(), g, opts)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("incomplete entry used")
	}
	if len(res.Positions) != len(g.Nodes) {
		t.Errorf("positions = %v", res.Positions)
	}
}

func TestLayoutCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := quietRunner(nil).Layout(ctx, testGraph(), Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestViewportRendersAreNotCached(t *testing.T) {
	c := newMemCache()
	r := quietRunner(c)
	tr := viewport.Transform{Zoom: 1.5, Pan: geom.Pt(100, 50)}

	res, err := r.Execute(context.Background(), staticLoader(testGraph()), Options{
		Viewport: &tr,
		Selected: "m1",
		Progress: &graph.Progress{Completed: 1, Total: 2, Percent: 50},
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.keys("artifact:") != 0 {
		t.Error("viewport render was cached")
	}
	svg := string(res.Artifacts[FormatSVG])
	if !strings.Contains(svg, `width="800" height="600"`) {
		t.Error("default frame size not applied")
	}
	if !strings.Contains(svg, "1/2 lessons") {
		t.Error("progress caption missing")
	}

	highlighted := 0
	for _, p := range res.Paths {
		if p.Highlighted {
			highlighted++
		}
	}
	if highlighted != 1 {
		t.Errorf("highlighted paths = %d, want 1", highlighted)
	}
}

func TestExecuteLoadFailure(t *testing.T) {
	boom := errors.New("connection refused")
	loader := LoaderFunc(func(context.Context) (graph.Graph, graph.Report, error) {
		return graph.Graph{}, graph.Report{}, boom
	})

	res, err := quietRunner(nil).Execute(context.Background(), loader, Options{Source: "api"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if res != nil {
		t.Errorf("partial result returned: %+v", res)
	}
	if !strings.Contains(err.Error(), "load api") {
		t.Errorf("err = %q, want source in message", err)
	}
}

func TestExecuteInvalidFormat(t *testing.T) {
	_, err := quietRunner(nil).Execute(context.Background(), staticLoader(testGraph()), Options{Formats: []string{"pdf"}})
	if !kmerrors.Is(err, kmerrors.ErrCodeInvalidFormat) {
		t.Errorf("err = %v, want INVALID_FORMAT", err)
	}
}

func TestRenderWithoutLabels(t *testing.T) {
	r := quietRunner(nil)
	g := testGraph()
	res, err := r.Layout(context.Background(), g, Options{})
	if err != nil {
		t.Fatal(err)
	}
	pos := g.WithPositions(res.Positions)
	no := false
	out, err := r.Render(context.Background(), pos, r.Route(pos, Options{}), nil, Options{Labels: &no})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out[FormatSVG]), "Algebra") {
		t.Error("labels rendered")
	}
}

type recordingHooks struct {
	observability.Noop
	mu      sync.Mutex
	fetches []string
	layouts int
	renders [][]string
}

func (h *recordingHooks) OnFetchComplete(_ context.Context, source string, _ int, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fetches = append(h.fetches, source)
}

func (h *recordingHooks) OnLayoutComplete(context.Context, int, int, time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.layouts++
}

func (h *recordingHooks) OnRenderComplete(_ context.Context, formats []string, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.renders = append(h.renders, formats)
}

func TestExecuteEmitsHooks(t *testing.T) {
	h := &recordingHooks{}
	observability.SetPipelineHooks(h)
	t.Cleanup(observability.Reset)

	_, err := quietRunner(nil).Execute(context.Background(), staticLoader(testGraph()), Options{
		Source:  "graph.json",
		Formats: []string{FormatJSON},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(h.fetches) != 1 || h.fetches[0] != "graph.json" {
		t.Errorf("fetches = %v", h.fetches)
	}
	if h.layouts != 1 {
		t.Errorf("layouts = %d", h.layouts)
	}
	if len(h.renders) != 1 || h.renders[0][0] != FormatJSON {
		t.Errorf("renders = %v", h.renders)
	}
}

func TestOptionsDefaults(t *testing.T) {
	var o Options
	if err := o.Validate(); err != nil {
		t.Fatal(err)
	}
	if o.Source != DefaultSource || o.Width != DefaultWidth || o.Height != DefaultHeight {
		t.Errorf("defaults = %+v", o)
	}
	if len(o.Formats) != 1 || o.Formats[0] != FormatSVG {
		t.Errorf("formats = %v", o.Formats)
	}
	if !o.ShowLabels() {
		t.Error("labels should default on")
	}
}
