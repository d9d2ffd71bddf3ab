package render

import (
	"math"
	"strings"

	"github.com/matzehuels/knowledgemap/pkg/geom"
	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/route"
	"github.com/matzehuels/knowledgemap/pkg/viewport"
)

// Size of one terminal cell in screen units.
const (
	CellWidth  = 8.0
	CellHeight = 16.0
)

// Cell is one character of a [Canvas]. Color is empty for default text.
type Cell struct {
	Rune  rune
	Color string
	Bold  bool
}

// Canvas is a grid of character cells.
type Canvas struct {
	w, h  int
	cells []Cell
}

// NewCanvas creates a blank canvas.
func NewCanvas(cols, rows int) *Canvas {
	cols, rows = max(cols, 0), max(rows, 0)
	c := &Canvas{w: cols, h: rows, cells: make([]Cell, cols*rows)}
	for i := range c.cells {
		c.cells[i].Rune = ' '
	}
	return c
}

// Width returns the number of columns.
func (c *Canvas) Width() int { return c.w }

// Height returns the number of rows.
func (c *Canvas) Height() int { return c.h }

// At returns the cell at (col, row). Out-of-range positions are blank.
func (c *Canvas) At(col, row int) Cell {
	if col < 0 || row < 0 || col >= c.w || row >= c.h {
		return Cell{Rune: ' '}
	}
	return c.cells[row*c.w+col]
}

// Set writes a cell; out-of-range positions are ignored.
func (c *Canvas) Set(col, row int, cell Cell) {
	if col < 0 || row < 0 || col >= c.w || row >= c.h {
		return
	}
	c.cells[row*c.w+col] = cell
}

// Row returns the cells of one row.
func (c *Canvas) Row(row int) []Cell {
	if row < 0 || row >= c.h {
		return nil
	}
	return c.cells[row*c.w : (row+1)*c.w]
}

// String returns the canvas as plain text, one line per row.
func (c *Canvas) String() string {
	var b strings.Builder
	for y := range c.h {
		for _, cell := range c.Row(y) {
			b.WriteRune(cell.Rune)
		}
		if y < c.h-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// CellOf maps a screen point to the cell containing it.
func CellOf(p geom.Point) (col, row int) {
	return int(math.Floor(p.X / CellWidth)), int(math.Floor(p.Y / CellHeight))
}

func glyph(n graph.Node) rune {
	switch n.Kind {
	case graph.KindRoot:
		return '◉'
	case graph.KindCourse:
		return '●'
	case graph.KindModule:
		return '◆'
	default:
		return '·'
	}
}

// DrawTerminal rasterises g and its paths as seen through the view
// transform t onto a cols×rows canvas. Edges are drawn first so node
// glyphs and labels stay readable.
func DrawTerminal(g graph.Graph, paths []route.Path, t viewport.Transform, cols, rows int, selected string) *Canvas {
	c := NewCanvas(cols, rows)
	screen := func(w geom.Point) geom.Point { return w.Scale(t.Zoom).Add(t.Pan) }

	for _, p := range paths {
		length := screen(p.Start).Dist(screen(p.Control)) + screen(p.Control).Dist(screen(p.End))
		steps := max(int(length/(CellWidth/2)), 1)
		color := EdgeColor(p.Highlighted)
		for i := 0; i <= steps; i++ {
			if p.Dashed && (i/2)%2 == 1 {
				continue
			}
			col, row := CellOf(screen(p.At(float64(i) / float64(steps))))
			r := '·'
			if i == steps {
				r = '•'
			}
			c.Set(col, row, Cell{Rune: r, Color: color, Bold: p.Highlighted})
		}
	}

	for _, n := range g.Nodes {
		col, row := CellOf(screen(n.Pos()))
		sel := n.ID == selected
		color := NodeColor(n)
		if n.IsRoot() {
			color = ""
		}
		c.Set(col, row, Cell{Rune: glyph(n), Color: color, Bold: true})
		label := strings.Join(n.Lines(), " ")
		if sel {
			c.Set(col-1, row, Cell{Rune: '[', Bold: true})
			label = "] " + label
		} else {
			label = " " + label
		}
		x := col + 1
		for _, r := range label {
			c.Set(x, row, Cell{Rune: r, Bold: sel})
			x++
		}
	}
	return c
}
