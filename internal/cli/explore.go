package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/knowledgemap/pkg/geom"
	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/pipeline"
	"github.com/matzehuels/knowledgemap/pkg/render"
	"github.com/matzehuels/knowledgemap/pkg/selection"
	"github.com/matzehuels/knowledgemap/pkg/viewport"
)

// chromeRows is the number of terminal rows used by the title and status
// lines around the map.
const chromeRows = 3

// Keyboard pan step and wheel delta, in screen units.
const (
	panStep    = 4 * render.CellWidth
	wheelDelta = 3 * render.CellHeight
)

// exploreCommand creates the interactive terminal viewer.
func (c *CLI) exploreCommand() *cobra.Command {
	var (
		useAPI  bool
		noCache bool
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "explore [graph.json]",
		Short: "Explore a knowledge map in the terminal",
		Long: `Explore a knowledge map in the terminal.

Keys:
  + / -        zoom in / out
  arrows       pan (or drag with the mouse; the wheel pans, ctrl+wheel zooms)
  0            reset the view
  f            fit the whole map
  tab          move the cursor to the next node
  enter        select the node under the cursor (modules load their progress)
  esc          clear the selection
  h            open the handbook
  r            retry a failed load
  q            quit

A graph file is watched and reloaded when it changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExplore(cmd.Context(), args, useAPI, noCache, logFile)
		},
	}

	cmd.Flags().BoolVar(&useAPI, "api", false, "read the graph from the graph service")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file while the viewer runs")

	return cmd
}

func (c *CLI) runExplore(ctx context.Context, args []string, useAPI, noCache bool, logFile string) error {
	// The terminal belongs to the viewer; logs go to a file or nowhere.
	var w io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	c.Logger = newLogger(w, c.Logger.GetLevel())

	src, err := c.newSource(args, useAPI)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	cfg := c.config()
	m := newExploreModel(ctx, runner, src, c.pipelineOptions(src.Label), cfg.ViewportOptions(), cfg.Server.ProgressTimeout.Duration, c.Logger)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen(), tea.WithMouseCellMotion())
	m.send = p.Send
	defer m.close()

	if src.File != nil {
		src.File.OnChange(func(g graph.Graph, rep graph.Report) {
			p.Send(graphChangedMsg{graph: g, report: rep})
		})
		stop, err := src.File.Watch()
		if err != nil {
			c.Logger.Warn("file watch unavailable", "err", err)
		} else {
			defer stop()
		}
	}

	_, err = p.Run()
	return err
}

// =============================================================================
// Messages
// =============================================================================

// graphLoadedMsg carries a positioned graph, or the load error.
type graphLoadedMsg struct {
	graph  graph.Graph
	report graph.Report
	err    error
}

// graphChangedMsg carries a graph reloaded from a watched file.
type graphChangedMsg struct {
	graph  graph.Graph
	report graph.Report
}

// selectionChangedMsg asks for a redraw after the selection state moved.
type selectionChangedMsg struct{}

type statusMsg string

// =============================================================================
// Model
// =============================================================================

// exploreModel is the bubbletea model of the terminal viewer. The viewport
// and selection controllers are only touched from Update.
type exploreModel struct {
	ctx     context.Context
	runner  *pipeline.Runner
	src     *graphSource
	opts    pipeline.Options
	logger  *log.Logger
	send    func(tea.Msg)
	vp      *viewport.Controller
	sel     *selection.Controller
	loading bool

	g      graph.Graph
	report graph.Report
	order  []string // tab order of selectable nodes
	cursor int      // index into order, -1 for none
	err    error
	status string

	cols, rows int
}

func newExploreModel(ctx context.Context, runner *pipeline.Runner, src *graphSource, opts pipeline.Options, vpOpts *viewport.Options, timeout time.Duration, logger *log.Logger) *exploreModel {
	m := &exploreModel{
		ctx:     ctx,
		runner:  runner,
		src:     src,
		opts:    opts,
		logger:  logger,
		cursor:  -1,
		cols:    80,
		rows:    24 - chromeRows,
		loading: true,
	}
	w, h := m.screenSize()
	m.vp = viewport.New(w, h, vpOpts)
	m.sel = selection.New(src.Progress,
		selection.WithLogger(logger),
		selection.WithTimeout(timeout),
		selection.WithOnChange(func(selection.State) { m.notify(selectionChangedMsg{}) }),
		selection.WithOnOpenHandbook(func() { m.notify(statusMsg("Handbook opened")) }),
	)
	return m
}

// notify delivers msg to the program without blocking the caller, which
// may be Update itself.
func (m *exploreModel) notify(msg tea.Msg) {
	if m.send != nil {
		go m.send(msg)
	}
}

func (m *exploreModel) close() { m.sel.Close() }

// screenSize is the map area in screen units.
func (m *exploreModel) screenSize() (w, h float64) {
	return float64(m.cols) * render.CellWidth, float64(m.rows) * render.CellHeight
}

func (m *exploreModel) Init() tea.Cmd { return m.load() }

// load fetches and lays out the graph off the event loop.
func (m *exploreModel) load() tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		g, rep, err := m.runner.Load(m.ctx, m.src.Loader, m.opts)
		if err != nil {
			return graphLoadedMsg{err: err}
		}
		return m.layout(g, rep)
	}
}

func (m *exploreModel) layout(g graph.Graph, rep graph.Report) graphLoadedMsg {
	res, err := m.runner.Layout(m.ctx, g, m.opts)
	if err != nil {
		return graphLoadedMsg{err: err}
	}
	return graphLoadedMsg{graph: g.WithPositions(res.Positions), report: rep}
}

func (m *exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.cols, m.rows = msg.Width, max(msg.Height-chromeRows, 1)
		w, h := m.screenSize()
		m.vp.Resize(w, h)

	case graphLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.logger.Error("graph load failed", "err", msg.err)
			return m, nil
		}
		m.setGraph(msg.graph, msg.report)

	case graphChangedMsg:
		g, rep := msg.graph, msg.report
		return m, func() tea.Msg { return m.layout(g, rep) }

	case selectionChangedMsg:
		// State is read fresh in View.

	case statusMsg:
		m.status = string(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.handleMouse(msg)
	}
	return m, nil
}

// setGraph installs a (re)loaded graph and resets the view to fit it.
func (m *exploreModel) setGraph(g graph.Graph, rep graph.Report) {
	m.g, m.report, m.err = g, rep, nil

	m.order = m.order[:0]
	for _, n := range g.Nodes {
		if !n.IsRoot() {
			m.order = append(m.order, n.ID)
		}
	}
	m.cursor = -1

	if id := m.sel.State().SelectedID; id != "" {
		if _, ok := g.Node(id); !ok {
			m.sel.Clear()
		}
	}
	m.vp.Reset()
	m.fit()
	m.status = fmt.Sprintf("Loaded %d nodes", len(g.Nodes))
}

func (m *exploreModel) fit() {
	pts := make([]geom.Point, len(m.g.Nodes))
	for i, n := range m.g.Nodes {
		pts[i] = n.Pos()
	}
	m.vp.Fit(pts, 2*render.CellHeight)
}

func (m *exploreModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		if m.err != nil && !m.loading {
			m.err = nil
			return m, m.load()
		}
		if n, ok := m.selectedNode(); ok {
			m.sel.Retry(m.ctx, n)
		}
	}
	if m.err != nil || m.loading {
		return m, nil
	}

	switch msg.String() {
	case "+", "=":
		m.vp.ZoomIn()
	case "-", "_":
		m.vp.ZoomOut()
	case "0":
		m.vp.Reset()
	case "f":
		m.fit()
	case "left":
		m.vp.PanBy(geom.Pt(panStep, 0))
	case "right":
		m.vp.PanBy(geom.Pt(-panStep, 0))
	case "up":
		m.vp.PanBy(geom.Pt(0, panStep/2))
	case "down":
		m.vp.PanBy(geom.Pt(0, -panStep/2))
	case "tab":
		m.moveCursor(1)
	case "shift+tab":
		m.moveCursor(-1)
	case "enter":
		if m.cursor >= 0 {
			m.selectID(m.order[m.cursor])
		}
	case "esc":
		m.sel.Clear()
	case "h":
		if m.sel.State().HasSelection() {
			m.sel.OpenHandbook()
		}
	}
	return m, nil
}

func (m *exploreModel) moveCursor(d int) {
	if len(m.order) == 0 {
		return
	}
	m.cursor = ((m.cursor+d)%len(m.order) + len(m.order)) % len(m.order)
	if n, ok := m.g.Node(m.order[m.cursor]); ok {
		m.vp.Focus(n.Pos())
	}
}

func (m *exploreModel) selectID(id string) {
	if n, ok := m.g.Node(id); ok && m.sel.Select(m.ctx, n) {
		m.status = ""
	}
}

func (m *exploreModel) selectedNode() (graph.Node, bool) {
	id := m.sel.State().SelectedID
	if id == "" {
		return graph.Node{}, false
	}
	return m.g.Node(id)
}

// screenPoint is the centre of a terminal cell in screen units.
func (m *exploreModel) screenPoint(x, y int) geom.Point {
	return geom.Pt((float64(x)+0.5)*render.CellWidth, (float64(y-1)+0.5)*render.CellHeight)
}

// nodeAt returns the node drawn at or next to the cell containing p.
func (m *exploreModel) nodeAt(p geom.Point) (graph.Node, bool) {
	col, row := render.CellOf(p)
	for _, n := range m.g.Nodes {
		nc, nr := render.CellOf(m.vp.ToScreen(n.Pos()))
		if nr == row && col >= nc-1 && col <= nc+1 {
			return n, true
		}
	}
	return graph.Node{}, false
}

func (m *exploreModel) handleMouse(msg tea.MouseMsg) {
	if m.err != nil || m.loading {
		return
	}
	p := m.screenPoint(msg.X, msg.Y)
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.vp.Wheel(viewport.WheelEvent{DY: -wheelDelta, At: p, Modifier: msg.Ctrl})
	case msg.Button == tea.MouseButtonWheelDown:
		m.vp.Wheel(viewport.WheelEvent{DY: wheelDelta, At: p, Modifier: msg.Ctrl})
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		n, over := m.nodeAt(p)
		if over {
			m.selectID(n.ID)
			return
		}
		m.vp.PointerDown(p, false)
	case msg.Action == tea.MouseActionMotion:
		m.vp.PointerMove(p)
	case msg.Action == tea.MouseActionRelease:
		m.vp.PointerUp()
	}
}

// =============================================================================
// View
// =============================================================================

var (
	exploreTitleStyle = StyleTitle.Padding(0, 1)
	exploreErrorStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorRed).
				Padding(1, 2)
)

func (m *exploreModel) View() string {
	var b strings.Builder

	t := m.vp.Transform()
	b.WriteString(exploreTitleStyle.Render(appName))
	b.WriteString(StyleDim.Render(fmt.Sprintf("%s · zoom %.0f%%", m.src.Label, t.Zoom*100)))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		msg := fmt.Sprintf("Could not load the graph\n\n%s\n\n%s", m.err, StyleDim.Render("r retry · q quit"))
		b.WriteString(exploreErrorStyle.Render(msg))
		return b.String()
	case m.loading && len(m.g.Nodes) == 0:
		b.WriteString(StyleDim.Render("Loading graph..."))
		return b.String()
	}

	st := m.sel.State()
	mark := st.SelectedID
	if m.cursor >= 0 {
		mark = m.order[m.cursor]
	}
	opts := m.opts
	opts.Selected = st.SelectedID
	paths := m.runner.Route(m.g, opts)
	canvas := render.DrawTerminal(m.g, paths, t, m.cols, m.rows, mark)
	b.WriteString(styleCanvas(canvas))
	b.WriteString("\n")

	b.WriteString(m.statusLine(st))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("+/- zoom · arrows pan · tab/enter select · h handbook · r retry · q quit"))
	return b.String()
}

func (m *exploreModel) statusLine(st selection.State) string {
	if !st.HasSelection() {
		return StyleDim.Render(m.status)
	}
	n, _ := m.g.Node(st.SelectedID)
	name := StyleHighlight.Render(strings.Join(n.Lines(), " ")) + StyleDim.Render(" ("+n.Kind.String()+")")
	switch st.Phase {
	case selection.PhaseLoading:
		return name + StyleDim.Render(" · loading progress...")
	case selection.PhaseLoaded:
		p := st.Progress
		return name + " " + StyleSuccess.Render(fmt.Sprintf("%d/%d lessons, %.0f%%", p.Completed, p.Total, p.Percent))
	case selection.PhaseFailed:
		return name + " " + StyleWarning.Render(fmt.Sprintf("progress failed: %v (r to retry)", st.Err))
	}
	if m.status != "" {
		return name + StyleDim.Render(" · "+m.status)
	}
	return name
}

// styleCanvas renders canvas rows, grouping runs of equally styled cells.
func styleCanvas(c *render.Canvas) string {
	var b strings.Builder
	for y := range c.Height() {
		row := c.Row(y)
		for i := 0; i < len(row); {
			j := i
			var run strings.Builder
			for j < len(row) && row[j].Color == row[i].Color && row[j].Bold == row[i].Bold {
				run.WriteRune(row[j].Rune)
				j++
			}
			style := lipgloss.NewStyle().Bold(row[i].Bold)
			if row[i].Color != "" {
				style = style.Foreground(lipgloss.Color(row[i].Color))
			}
			b.WriteString(style.Render(run.String()))
			i = j
		}
		if y < c.Height()-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
