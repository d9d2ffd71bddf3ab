package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/matzehuels/knowledgemap/pkg/graph"
)

func TestConsoleReport(t *testing.T) {
	var buf bytes.Buffer
	out := console{w: &buf}

	out.report(graph.Report{})
	if buf.Len() != 0 {
		t.Errorf("clean report printed %q", buf.String())
	}

	out.report(graph.Report{Lessons: 3, DanglingEdges: 1})
	got := buf.String()
	for _, want := range []string{"3 lessons skipped", "1 dangling edges dropped"} {
		if !strings.Contains(got, want) {
			t.Errorf("report %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "duplicate ids") {
		t.Errorf("report mentions zero counts: %q", got)
	}
}

func TestConsoleStats(t *testing.T) {
	tests := []struct {
		cached bool
		want   string
	}{
		{false, "layout computed"},
		{true, "layout cached"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		console{w: &buf}.stats(7, 6, tt.cached)
		got := buf.String()
		if !strings.Contains(got, "7 nodes") || !strings.Contains(got, "6 edges") || !strings.Contains(got, tt.want) {
			t.Errorf("stats(cached=%v) = %q", tt.cached, got)
		}
	}
}
