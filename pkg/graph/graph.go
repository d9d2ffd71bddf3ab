package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a graph file encoding.
type Format string

// Supported file formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf infers the format from a file extension. Unknown extensions
// default to JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode reads a wire graph from r and normalizes it.
//
// The input must be an object with "nodes" and "edges" arrays in the
// backend wire format. Malformed input is an error; invalid nodes or edges
// inside well-formed input are not (see [Normalize]).
//
// Decode does not close r.
func Decode(r io.Reader, format Format) (Graph, Report, error) {
	var wg WireGraph
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&wg); err != nil && err != io.EOF {
			return Graph{}, Report{}, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&wg); err != nil {
			return Graph{}, Report{}, fmt.Errorf("decode json: %w", err)
		}
	default:
		return Graph{}, Report{}, fmt.Errorf("unsupported format %q", format)
	}
	g, rep := Normalize(wg.Nodes, wg.Edges)
	return g, rep, nil
}

// ReadFile reads and normalizes the graph file at path. The format is
// chosen by extension.
func ReadFile(path string) (Graph, Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Graph{}, Report{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	g, rep, err := Decode(f, FormatOf(path))
	if err != nil {
		return Graph{}, Report{}, fmt.Errorf("%s: %w", path, err)
	}
	return g, rep, nil
}

// Encode writes g to w in the wire format. Positions are included, so a
// laid-out graph can be re-read with its coordinates.
func Encode(w io.Writer, g Graph, format Format) error {
	wg := ToWire(g)
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(wg); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(wg); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// WriteFile writes g to path, choosing the format by extension.
func WriteFile(path string, g Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Encode(f, g, FormatOf(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
