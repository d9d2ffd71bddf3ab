// Package api serves knowledge maps over HTTP.
//
// The server loads the graph through a [pipeline.Runner], keeps the
// positioned result for a short while, and gives every viewer a session
// with its own viewport and selection:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /api/graph                       positioned graph as JSON
//	GET    /api/graph.svg                   whole map (also .dot, .png)
//	POST   /api/sessions                    new viewer session
//	GET    /api/sessions/{id}               session state
//	POST   /api/sessions/{id}/viewport      pan, zoom, drag, pinch, fit
//	POST   /api/sessions/{id}/select        select a node (loads progress)
//	POST   /api/sessions/{id}/retry         retry a failed progress load
//	POST   /api/sessions/{id}/handbook      open the handbook
//	GET    /api/sessions/{id}/view.svg      the session's current frame
//	DELETE /api/sessions/{id}
//
// Errors are answered with a JSON body {"error": {"code", "message"}} and
// the status from [kmerrors.HTTPStatus].
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	kmerrors "github.com/matzehuels/knowledgemap/pkg/errors"
	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/layout"
	"github.com/matzehuels/knowledgemap/pkg/pipeline"
	"github.com/matzehuels/knowledgemap/pkg/selection"
	"github.com/matzehuels/knowledgemap/pkg/session"
	"github.com/matzehuels/knowledgemap/pkg/viewport"
)

// Options configures a Server. Zero values take defaults.
type Options struct {
	// Pipeline carries the layout and routing settings and the source label.
	Pipeline pipeline.Options

	// Viewport settings for new sessions.
	Viewport *viewport.Options
	Width    float64
	Height   float64

	// GraphTTL is how long a loaded graph is reused. Zero keeps it until
	// Invalidate is called.
	GraphTTL time.Duration

	SessionTTL      time.Duration
	ProgressTimeout time.Duration

	// Metrics serves /metrics; nil uses promhttp.Handler().
	Metrics http.Handler

	Logger *log.Logger
}

// Server is the HTTP viewer API.
type Server struct {
	runner   *pipeline.Runner
	loader   pipeline.Loader
	sessions *session.MemoryStore
	opts     Options
	logger   *log.Logger
	router   chi.Router

	// baseCtx bounds progress fetches, which outlive the request that
	// started them.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu   sync.Mutex
	cur  *graphMap
	hash string // hash of the last loaded graph, kept across Invalidate
}

// graphMap is a loaded and positioned graph.
type graphMap struct {
	Graph    graph.Graph
	Report   graph.Report
	Hash     string
	Layout   layout.Result
	index    map[string]graph.Node
	loadedAt time.Time
}

// New creates a server. progress may be nil when module progress is not
// available (file sources).
func New(runner *pipeline.Runner, loader pipeline.Loader, progress selection.ProgressFetcher, opts Options) *Server {
	if opts.Width <= 0 {
		opts.Width = pipeline.DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = pipeline.DefaultHeight
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	opts.Pipeline.Logger = opts.Logger
	opts.Pipeline.SetDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		runner:  runner,
		loader:  loader,
		opts:    opts,
		logger:  opts.Logger,
		baseCtx: ctx,
		cancel:  cancel,
	}
	s.sessions = session.NewMemoryStore(opts.SessionTTL, func() session.Controllers {
		return session.Controllers{
			Viewport:  viewport.New(opts.Width, opts.Height, opts.Viewport),
			Selection: s.newSelection(progress),
		}
	})
	s.router = s.routes()
	return s
}

func (s *Server) newSelection(progress selection.ProgressFetcher) *selection.Controller {
	return selection.New(progress,
		selection.WithLogger(s.logger),
		selection.WithTimeout(s.opts.ProgressTimeout),
		selection.WithOnNodeClick(func(id string, kind graph.Kind) {
			s.logger.Debug("node selected", "node", id, "kind", kind)
		}),
		selection.WithOnOpenHandbook(func() {
			s.logger.Info("handbook requested")
		}),
	)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", s.opts.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/graph", s.getGraph)
		r.Get("/graph.svg", s.renderGraph(pipeline.FormatSVG))
		r.Get("/graph.dot", s.renderGraph(pipeline.FormatDOT))
		r.Get("/graph.png", s.renderGraph(pipeline.FormatPNG))

		r.Post("/sessions", s.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/viewport", s.updateViewport)
			r.Post("/select", s.selectNode)
			r.Post("/retry", s.retry)
			r.Post("/handbook", s.openHandbook)
			r.Get("/view.svg", s.renderView)
		})
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Sessions returns the session store.
func (s *Server) Sessions() *session.MemoryStore { return s.sessions }

// Invalidate drops the loaded graph so the next request reloads it. When
// the reloaded graph differs, every session is refitted and deselected.
func (s *Server) Invalidate() {
	s.mu.Lock()
	s.cur = nil
	s.mu.Unlock()
}

// Close cancels pending progress fetches and ends every session.
func (s *Server) Close() error {
	s.cancel()
	return s.sessions.Close()
}

// current returns the positioned graph, loading it when missing or stale.
// Concurrent callers wait for a single load.
func (s *Server) current(ctx context.Context) (*graphMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil && (s.opts.GraphTTL <= 0 || time.Since(s.cur.loadedAt) < s.opts.GraphTTL) {
		return s.cur, nil
	}

	opts := s.opts.Pipeline
	g, rep, err := s.runner.Load(ctx, s.loader, opts)
	if err != nil {
		if kmerrors.GetCode(err) == "" {
			err = kmerrors.Wrap(kmerrors.ErrCodeNetwork, err, "graph unavailable")
		}
		return nil, err
	}
	res, err := s.runner.Layout(ctx, g, opts)
	if err != nil {
		return nil, err
	}

	m := &graphMap{
		Graph:    g.WithPositions(res.Positions),
		Report:   rep,
		Hash:     pipeline.GraphHash(g),
		Layout:   res,
		loadedAt: time.Now(),
	}
	m.index = m.Graph.Index()
	s.cur = m
	if s.hash != "" && s.hash != m.Hash {
		s.resetSessions(m)
	}
	s.hash = m.Hash
	return m, nil
}

// resetSessions refits every session's viewport to m and clears its
// selection, cancelling progress loads for nodes of the previous graph.
func (s *Server) resetSessions(m *graphMap) {
	pts := positions(m.Graph)
	n := 0
	s.sessions.Each(func(sess *session.Session) {
		sess.Update(func(sess *session.Session) {
			sess.Viewport.Reset()
			sess.Viewport.Fit(pts, fitPadding)
			sess.Selection.Clear()
		})
		n++
	})
	s.logger.Info("graph changed, sessions reset", "hash", m.Hash, "sessions", n)
}
