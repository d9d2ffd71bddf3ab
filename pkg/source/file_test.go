package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knowledgemap/pkg/graph"
)

const twoNodes = `{
  "nodes": [
    {"id": 1, "type": "root", "title": "Platform"},
    {"id": 2, "type": "course", "title": "Algebra"}
  ],
  "edges": [
    {"id": "e1", "source_id": 1, "target_id": 2},
    {"id": "e2", "source_id": 2, "target_id": 99}
  ]
}`

const threeNodes = `nodes:
  - {id: r, type: root, title: Platform}
  - {id: c, type: course, title: Algebra}
  - {id: m, type: module, title: Groups}
edges:
  - {id: e1, source_id: r, target_id: c}
  - {id: e2, source_id: c, target_id: m}
`

func quiet() *log.Logger { return log.New(io.Discard) }

func write(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFetchGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	write(t, path, twoNodes)

	f := NewFile(path, quiet())
	if _, _, ok := f.Current(); ok {
		t.Error("graph loaded before FetchGraph")
	}

	g, rep, err := f.FetchGraph(context.Background())
	if err != nil {
		t.Fatalf("FetchGraph: %v", err)
	}
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Errorf("graph = %d nodes, %d edges", len(g.Nodes), len(g.Edges))
	}
	if rep.DanglingEdges != 1 {
		t.Errorf("report = %+v", rep)
	}
	if cur, _, ok := f.Current(); !ok || len(cur.Nodes) != 2 {
		t.Error("Current not updated")
	}
}

func TestFetchGraphYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	write(t, path, threeNodes)

	g, _, err := NewFile(path, quiet()).FetchGraph(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 3 || g.Nodes[2].Kind != graph.KindModule {
		t.Errorf("nodes = %+v", g.Nodes)
	}
}

func TestFetchGraphMissingFile(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "nope.json"), quiet())
	if _, _, err := f.FetchGraph(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestFetchGraphCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewFile("graph.json", quiet()).FetchGraph(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestReloadNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	write(t, path, twoNodes)

	f := NewFile(path, quiet())
	var got []int
	f.OnChange(func(g graph.Graph, _ graph.Report) { got = append(got, len(g.Nodes)) })

	if _, _, err := f.Reload(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("callbacks = %v", got)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	write(t, path, threeNodes)

	f := NewFile(path, quiet())
	f.debounce = 10 * time.Millisecond
	changes := make(chan int, 4)
	f.OnChange(func(g graph.Graph, _ graph.Report) { changes <- len(g.Nodes) })

	stop, err := f.Watch()
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	// Unrelated files in the same directory are ignored.
	write(t, filepath.Join(dir, "other.yaml"), threeNodes)
	write(t, path, threeNodes+"  - {id: e3, source_id: r, target_id: m}\n")

	select {
	case n := <-changes:
		if n != 3 {
			t.Errorf("reloaded graph has %d nodes", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
	stop()
	stop() // idempotent
}

func TestWatchKeepsGraphOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	write(t, path, twoNodes)

	f := NewFile(path, quiet())
	f.debounce = 10 * time.Millisecond
	if _, _, err := f.FetchGraph(context.Background()); err != nil {
		t.Fatal(err)
	}
	changes := make(chan struct{}, 1)
	f.OnChange(func(graph.Graph, graph.Report) { changes <- struct{}{} })

	stop, err := f.Watch()
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	write(t, path, "{not json")
	select {
	case <-changes:
		t.Error("callback fired for an unparsable file")
	case <-time.After(300 * time.Millisecond):
	}
	if g, _, _ := f.Current(); len(g.Nodes) != 2 {
		t.Errorf("current graph replaced: %+v", g)
	}
}

func TestWatchMissingDir(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "missing", "graph.json"), quiet())
	if _, err := f.Watch(); err == nil {
		t.Error("expected error for missing directory")
	}
}
