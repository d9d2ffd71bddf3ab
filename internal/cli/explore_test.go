package cli

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/pipeline"
	"github.com/matzehuels/knowledgemap/pkg/selection"
	"github.com/matzehuels/knowledgemap/pkg/viewport"
)

func exploreGraph() graph.Graph {
	return graph.Graph{
		Nodes: []graph.Node{
			{ID: "root", Kind: graph.KindRoot, Title: "Platform"},
			{ID: "c1", Kind: graph.KindCourse, Title: "Algebra"},
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

type stubProgress struct{}

func (stubProgress) ModuleProgress(context.Context, string) (graph.Progress, error) {
	return graph.Progress{Completed: 3, Total: 10, Percent: 30}, nil
}

func newTestExplorer(t *testing.T, loadErr *error) *exploreModel {
	t.Helper()
	logger := log.New(io.Discard)
	src := &graphSource{
		Label: "test",
		Loader: pipeline.LoaderFunc(func(context.Context) (graph.Graph, graph.Report, error) {
			if loadErr != nil && *loadErr != nil {
				return graph.Graph{}, graph.Report{}, *loadErr
			}
			return exploreGraph(), graph.Report{}, nil
		}),
		Progress: stubProgress{},
	}
	m := newExploreModel(context.Background(), pipeline.NewRunner(nil, nil, logger), src,
		pipeline.Options{Source: "test"}, nil, 0, logger)
	t.Cleanup(m.close)
	return m
}

// run feeds msg to the model and resolves any returned command once.
func run(m *exploreModel, msg tea.Msg) {
	_, cmd := m.Update(msg)
	if cmd != nil {
		if next := cmd(); next != nil {
			m.Update(next)
		}
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func load(t *testing.T, m *exploreModel) {
	t.Helper()
	m.Update(m.Init()())
}

func TestExploreLoadsAndFits(t *testing.T) {
	m := newTestExplorer(t, nil)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	load(t, m)

	if len(m.g.Nodes) != 4 || m.err != nil {
		t.Fatalf("nodes=%d err=%v", len(m.g.Nodes), m.err)
	}
	if len(m.order) != 3 {
		t.Errorf("tab order = %v, want the three non-root nodes", m.order)
	}
	view := m.View()
	for _, want := range []string{"Platform", "Algebra", "Groups"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestExploreZoomAndPanKeys(t *testing.T) {
	m := newTestExplorer(t, nil)
	load(t, m)

	run(m, key("0"))
	if tr := m.vp.Transform(); tr.Zoom != 1 || tr.Pan.X != 0 || tr.Pan.Y != 0 {
		t.Fatalf("after reset: %+v", tr)
	}
	run(m, key("+"))
	if z := m.vp.Transform().Zoom; z < 1.19 || z > 1.21 {
		t.Errorf("zoom after + = %v", z)
	}
	run(m, key("-"))
	if z := m.vp.Transform().Zoom; z < 0.999 || z > 1.001 {
		t.Errorf("zoom after - = %v", z)
	}

	before := m.vp.Transform().Pan
	run(m, tea.KeyMsg{Type: tea.KeyLeft})
	if got := m.vp.Transform().Pan.X - before.X; got != panStep {
		t.Errorf("left pans by %v, want %v", got, panStep)
	}
}

func TestExploreWheelPans(t *testing.T) {
	m := newTestExplorer(t, nil)
	load(t, m)
	run(m, key("0"))

	m.Update(tea.MouseMsg{X: 5, Y: 5, Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress})
	if got := m.vp.Transform().Pan.Y; got != -wheelDelta {
		t.Errorf("pan.y after wheel = %v, want %v", got, -wheelDelta)
	}
	if m.vp.Transform().Zoom != 1 {
		t.Error("plain wheel should not zoom")
	}

	m.Update(tea.MouseMsg{X: 5, Y: 5, Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress, Ctrl: true})
	if m.vp.Transform().Zoom <= 1 {
		t.Error("ctrl+wheel up should zoom in")
	}
	if m.vp.State() != viewport.Idle {
		t.Errorf("state = %v", m.vp.State())
	}
}

func TestExploreTabSelectsModule(t *testing.T) {
	m := newTestExplorer(t, nil)
	load(t, m)

	for range 3 {
		run(m, key("tab"))
	}
	if m.order[m.cursor] != "m1" {
		t.Fatalf("cursor on %s, want m1", m.order[m.cursor])
	}
	run(m, key("enter"))
	m.sel.Wait()

	st := m.sel.State()
	if st.SelectedID != "m1" || st.Phase != selection.PhaseLoaded {
		t.Fatalf("selection = %+v", st)
	}
	if !strings.Contains(m.View(), "3/10 lessons, 30%") {
		t.Error("view does not show module progress")
	}

	run(m, key("h"))
	run(m, key("esc"))
	if m.sel.State().HasSelection() {
		t.Error("esc should clear the selection")
	}
}

func TestExploreLoadErrorAndRetry(t *testing.T) {
	loadErr := errors.New("service unavailable")
	m := newTestExplorer(t, &loadErr)
	load(t, m)

	if m.err == nil || !strings.Contains(m.View(), "Could not load the graph") {
		t.Fatalf("expected error screen, got err=%v", m.err)
	}

	loadErr = nil
	run(m, key("r"))
	if m.err != nil || len(m.g.Nodes) != 4 {
		t.Errorf("after retry: err=%v nodes=%d", m.err, len(m.g.Nodes))
	}
}

func TestExploreReloadDropsMissingSelection(t *testing.T) {
	m := newTestExplorer(t, nil)
	load(t, m)
	m.selectID("c2")

	g := exploreGraph()
	g.Nodes = g.Nodes[:2]
	g.Edges = g.Edges[:1]
	run(m, graphChangedMsg{graph: g})

	if len(m.g.Nodes) != 2 {
		t.Fatalf("nodes after reload = %d", len(m.g.Nodes))
	}
	if m.sel.State().HasSelection() {
		t.Error("selection of a removed node survived the reload")
	}
}

func TestExploreQuit(t *testing.T) {
	m := newTestExplorer(t, nil)
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
