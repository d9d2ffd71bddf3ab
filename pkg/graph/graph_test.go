package graph

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func fp(v float64) *float64 { return &v }

func TestNormalize(t *testing.T) {
	nodes := []WireNode{
		{ID: "root", Type: "track", Title: "Product"},
		{ID: "c1", Type: "course", Title: "Discovery", Status: "in-progress", X: fp(math.NaN()), Y: fp(3)},
		{ID: "m1", Type: "module", Title: "Interviews", Status: "not-started", EntityID: "42"},
		{ID: "l1", Type: "lesson", Title: "Intro"},
		{ID: "x1", Type: "widget", Title: "?"},
		{ID: "", Type: "course", Title: "anonymous"},
		{ID: "c1", Type: "course", Title: "Duplicate"},
		{ID: "r2", Type: "root", Title: "Second root"},
	}
	edges := []WireEdge{
		{ID: "e1", SourceID: "root", TargetID: "c1", Type: "required"},
		{ID: "e2", SourceID: "c1", TargetID: "m1", Type: "bogus"},
		{ID: "e3", SourceID: "c1", TargetID: "missing"},
		{ID: "e4", SourceID: "m1", TargetID: "l1"},
		{SourceID: "root", TargetID: "r2", Type: "alternative"},
	}

	g, rep := Normalize(nodes, edges)

	if len(g.Nodes) != 4 {
		t.Fatalf("nodes = %d, want 4", len(g.Nodes))
	}
	if len(g.Edges) != 3 {
		t.Fatalf("edges = %d, want 3", len(g.Edges))
	}

	want := Report{
		Lessons:        1,
		UnknownKinds:   1,
		MissingIDs:     1,
		DuplicateIDs:   1,
		ExtraRoots:     1,
		CoercedCoords:  4,
		DanglingEdges:  2,
		GeneratedEdges: 1,
	}
	if rep != want {
		t.Errorf("report = %+v, want %+v", rep, want)
	}

	idx := g.Index()
	if idx["root"].Kind != KindRoot {
		t.Errorf("track should map to root, got %v", idx["root"].Kind)
	}
	if idx["r2"].Kind != KindConcept {
		t.Errorf("second root should be demoted, got %v", idx["r2"].Kind)
	}
	if c := idx["c1"]; c.Title != "Discovery" || c.X != 0 || c.Y != 3 || c.Status != StatusCurrent {
		t.Errorf("c1 = %+v", c)
	}
	if m := idx["m1"]; m.Status != StatusAvailable || m.ProgressID() != "42" {
		t.Errorf("m1 = %+v", m)
	}
	if g.Edges[1].Type != EdgeRequired {
		t.Errorf("unknown edge type should default to required, got %q", g.Edges[1].Type)
	}
	if g.Edges[2].ID != "edge-4" || g.Edges[2].Type != EdgeAlternative {
		t.Errorf("generated edge = %+v", g.Edges[2])
	}
}

func TestNormalizeEdgeIDs(t *testing.T) {
	nodes := []WireNode{
		{ID: "root", Type: "root"},
		{ID: "c1", Type: "course"},
		{ID: "c2", Type: "course"},
	}
	edges := []WireEdge{
		{SourceID: "root", TargetID: "c1"},               // would be edge-0, taken below
		{ID: "edge-0", SourceID: "root", TargetID: "c2"}, // explicit
		{ID: "edge-0", SourceID: "c1", TargetID: "c2"},   // duplicate, dropped
		{SourceID: "c2", TargetID: "c1"},                 // edge-3, free
		{ID: "edge-3-x", SourceID: "c1", TargetID: "root"},
	}

	g, rep := Normalize(nodes, edges)

	var ids []string
	unique := map[string]bool{}
	for _, e := range g.Edges {
		ids = append(ids, e.ID)
		unique[e.ID] = true
	}
	if len(unique) != len(ids) {
		t.Errorf("edge ids not unique: %v", ids)
	}
	if want := []string{"edge-0-1", "edge-0", "edge-3", "edge-3-x"}; strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Errorf("edge ids = %v, want %v", ids, want)
	}
	if rep.DuplicateEdges != 1 || rep.GeneratedEdges != 2 {
		t.Errorf("report = %+v", rep)
	}
	if rep.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", rep.Dropped())
	}
	if g.Edges[1].SourceID != "root" || g.Edges[1].TargetID != "c2" {
		t.Errorf("first occurrence of edge-0 not kept: %+v", g.Edges[1])
	}
}

func TestIDAcceptsNumbers(t *testing.T) {
	in := `{"nodes":[{"id":7,"type":"root","title":"r"},{"id":"8","type":"course","title":"c","entity_id":12}],
	        "edges":[{"id":1,"source_id":7,"target_id":"8"}]}`
	g, rep, err := Decode(strings.NewReader(in), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Dropped() != 0 {
		t.Errorf("dropped %d, want 0", rep.Dropped())
	}
	if len(g.Edges) != 1 || g.Edges[0].SourceID != "7" || g.Edges[0].TargetID != "8" {
		t.Errorf("edges = %+v", g.Edges)
	}
	if n, _ := g.Node("8"); n.EntityID != "12" {
		t.Errorf("entity id = %q", n.EntityID)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	if _, _, err := Decode(strings.NewReader(`{"nodes": [`), FormatJSON); err == nil {
		t.Error("expected error for truncated JSON")
	}
	if _, _, err := Decode(strings.NewReader(`{}`), Format("xml")); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestFileRoundTrip(t *testing.T) {
	g := Graph{
		Nodes: []Node{
			{ID: "root", Kind: KindRoot, Title: "Product\nManagement", Status: StatusOpen},
			{ID: "c1", Kind: KindCourse, Title: "Discovery", X: 320, Y: 10, Status: StatusCompleted},
			{ID: "m1", Kind: KindModule, Title: "Interviews", X: 500, Y: 80, Size: 40, Status: StatusLocked},
		},
		Edges: []Edge{
			{ID: "e1", SourceID: "root", TargetID: "c1", Type: EdgeRequired},
			{ID: "e2", SourceID: "c1", TargetID: "m1", Type: EdgeRecommended},
		},
	}

	for _, name := range []string{"graph.json", "graph.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := WriteFile(path, g); err != nil {
				t.Fatal(err)
			}
			got, rep, err := ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if rep != (Report{}) {
				t.Errorf("report = %+v, want empty", rep)
			}
			a, _ := json.Marshal(g)
			b, _ := json.Marshal(got)
			if !bytes.Equal(a, b) {
				t.Errorf("round trip mismatch:\n got %s\nwant %s", b, a)
			}
		})
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, _, err := ReadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error")
	}
}

func TestKindText(t *testing.T) {
	var k Kind
	if err := k.UnmarshalText([]byte("module")); err != nil || k != KindModule {
		t.Errorf("UnmarshalText(module) = %v, %v", k, err)
	}
	if err := k.UnmarshalText([]byte("lesson")); err == nil {
		t.Error("lesson should not be a kind")
	}
	b, _ := KindCourse.MarshalText()
	if string(b) != "course" {
		t.Errorf("MarshalText = %q", b)
	}
}

func TestPositionsApplyCopies(t *testing.T) {
	nodes := []Node{{ID: "a", X: 1, Y: 1}, {ID: "b", X: 2, Y: 2}}
	out := Positions{"a": {X: 10, Y: 20}}.Apply(nodes)
	if out[0].X != 10 || out[0].Y != 20 {
		t.Errorf("a = %+v", out[0])
	}
	if out[1].X != 2 {
		t.Errorf("b should keep its coordinates, got %+v", out[1])
	}
	if nodes[0].X != 1 {
		t.Error("Apply mutated its input")
	}
}

func TestWireProgress(t *testing.T) {
	p := WireProgress{CompletedLessons: 1, TotalLessons: 3}.ToProgress()
	if p.Percent != 33 {
		t.Errorf("percent = %v, want 33", p.Percent)
	}
	p = WireProgress{CompletedLessons: 1, TotalLessons: 4, Progress: 25}.ToProgress()
	if p.Percent != 25 {
		t.Errorf("percent = %v, want 25", p.Percent)
	}
}
