package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/knowledgemap/pkg/graph"
)

// =============================================================================
// Palette
// =============================================================================

var (
	colorTeal  = lipgloss.Color("36")
	colorGreen = lipgloss.Color("35")
	colorAmber = lipgloss.Color("220")
	colorRed   = lipgloss.Color("167")
	colorBlue  = lipgloss.Color("75")
	colorWhite = lipgloss.Color("255")
	colorGray  = lipgloss.Color("245")
	colorDim   = lipgloss.Color("240")
)

// Styles shared by the status output and the explorer.
var (
	StyleTitle     = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	StyleHighlight = lipgloss.NewStyle().Foreground(colorTeal)
	StyleLink      = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)
	StyleDim       = lipgloss.NewStyle().Foreground(colorDim)
	StyleSuccess   = lipgloss.NewStyle().Foreground(colorGreen)
	StyleWarning   = lipgloss.NewStyle().Foreground(colorAmber)

	styleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	styleKey     = lipgloss.NewStyle().Foreground(colorGray).Width(12)
	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
	styleFailed  = lipgloss.NewStyle().Foreground(colorRed)
	styleInfo    = lipgloss.NewStyle().Foreground(colorGray)
)

const (
	markOK    = "✓"
	markFail  = "✗"
	markWarn  = "!"
	markInfo  = "›"
	markArrow = "→"
	separator = " · "
)

// =============================================================================
// Console
// =============================================================================

// console writes human-facing status lines. Diagnostics go to the logger,
// results of a command go here.
type console struct {
	w io.Writer
}

func (c console) line(s string) { fmt.Fprintln(c.w, s) }

func (c console) success(format string, args ...any) {
	c.line(StyleSuccess.Render(markOK) + " " + fmt.Sprintf(format, args...))
}

func (c console) failure(format string, args ...any) {
	c.line(styleFailed.Render(markFail) + " " + fmt.Sprintf(format, args...))
}

func (c console) warn(format string, args ...any) {
	c.line(StyleWarning.Render(markWarn) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func (c console) info(format string, args ...any) {
	c.line(styleInfo.Render(markInfo) + " " + fmt.Sprintf(format, args...))
}

func (c console) detail(format string, args ...any) {
	c.line("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// file prints an output path written by a command.
func (c console) file(path string) {
	c.line("  " + StyleDim.Render(markArrow) + " " + styleValue.Render(path))
}

func (c console) keyValue(key, value string) {
	c.line(styleKey.Render(key) + " " + styleValue.Render(value))
}

// stats prints node and edge counts and whether the layout came from cache.
func (c console) stats(nodes, edges int, cached bool) {
	parts := []string{
		StyleDim.Render(fmt.Sprintf("%d nodes", nodes)),
		StyleDim.Render(fmt.Sprintf("%d edges", edges)),
	}
	if cached {
		parts = append(parts, StyleSuccess.Render("layout cached"))
	} else {
		parts = append(parts, styleInfo.Render("layout computed"))
	}
	c.line("  " + strings.Join(parts, StyleDim.Render(separator)))
}

// report prints what ingestion dropped or coerced. A clean report prints
// nothing.
func (c console) report(rep graph.Report) {
	var parts []string
	for _, item := range []struct {
		n    int
		what string
	}{
		{rep.Lessons, "lessons skipped"},
		{rep.UnknownKinds, "unknown kinds"},
		{rep.MissingIDs, "missing ids"},
		{rep.DuplicateIDs, "duplicate ids"},
		{rep.ExtraRoots, "extra roots"},
		{rep.CoercedCoords, "coords coerced"},
		{rep.DanglingEdges, "dangling edges dropped"},
		{rep.DuplicateEdges, "duplicate edge ids"},
		{rep.GeneratedEdges, "edge ids generated"},
	} {
		if item.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", item.n, item.what))
		}
	}
	if len(parts) > 0 {
		c.line("  " + StyleDim.Render(strings.Join(parts, separator)))
	}
}

// nextStep suggests a follow-up command.
func (c console) nextStep(description, cmd string) {
	c.line("")
	c.line(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}
