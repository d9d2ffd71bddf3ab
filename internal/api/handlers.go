package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	kmerrors "github.com/matzehuels/knowledgemap/pkg/errors"
	"github.com/matzehuels/knowledgemap/pkg/geom"
	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/pipeline"
	"github.com/matzehuels/knowledgemap/pkg/render"
	"github.com/matzehuels/knowledgemap/pkg/session"
	"github.com/matzehuels/knowledgemap/pkg/viewport"
)

// fitPadding is the margin kept around the map when a view is fitted.
const fitPadding = 40

var contentTypes = map[string]string{
	pipeline.FormatSVG:  "image/svg+xml",
	pipeline.FormatDOT:  "text/vnd.graphviz; charset=utf-8",
	pipeline.FormatPNG:  "image/png",
	pipeline.FormatJSON: "application/json",
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

// =============================================================================
// Whole map
// =============================================================================

type graphResponse struct {
	Source    string       `json:"source"`
	GraphHash string       `json:"graph_hash"`
	Report    graph.Report `json:"report"`
	render.Document
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	m, err := s.current(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	paths := s.runner.Route(m.Graph, s.opts.Pipeline)
	writeJSON(w, http.StatusOK, graphResponse{
		Source:    s.opts.Pipeline.Source,
		GraphHash: m.Hash,
		Report:    m.Report,
		Document:  render.NewDocument(m.Graph, paths, m.Layout.Exhausted),
	})
}

func (s *Server) renderGraph(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := s.current(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		opts := s.opts.Pipeline
		opts.Formats = []string{format}
		if sel := r.URL.Query().Get("selected"); sel != "" {
			if _, ok := m.index[sel]; !ok {
				s.writeError(w, r, kmerrors.New(kmerrors.ErrCodeNotFound, "node %q not found", sel))
				return
			}
			opts.Selected = sel
		}

		paths := s.runner.Route(m.Graph, opts)
		artifacts, err := s.runner.Render(r.Context(), m.Graph, paths, m.Layout.Exhausted, opts)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeArtifact(w, contentTypes[format], artifacts[format])
	}
}

// =============================================================================
// Sessions
// =============================================================================

type createSessionRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.current(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap := sess.Update(func(sess *session.Session) {
		if req.Width > 0 && req.Height > 0 {
			sess.Viewport.Resize(req.Width, req.Height)
		}
		sess.Viewport.Fit(positions(m.Graph), fitPadding)
	})
	s.logger.Debug("session created", "session", snap.ID)
	writeJSON(w, http.StatusCreated, snap)
}

// session resolves the {id} URL parameter.
func (s *Server) session(r *http.Request) (*session.Session, error) {
	id := chi.URLParam(r, "id")
	if err := kmerrors.ValidateSessionID(id); err != nil {
		return nil, err
	}
	return s.sessions.Get(r.Context(), id)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.sessions.Delete(r.Context(), sess.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// viewportRequest is one input event for a session's viewport. Points are
// in screen coordinates.
type viewportRequest struct {
	Action   string       `json:"action"`
	DX       float64      `json:"dx"`
	DY       float64      `json:"dy"`
	X        float64      `json:"x"`
	Y        float64      `json:"y"`
	Modifier bool         `json:"modifier"`
	OverNode bool         `json:"over_node"`
	Touches  []geom.Point `json:"touches"`
	Width    float64      `json:"width"`
	Height   float64      `json:"height"`
	NodeID   string       `json:"node_id"`
}

func (s *Server) updateViewport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req viewportRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	// Fit and focus need the map; load it before taking the session lock.
	var m *graphMap
	if req.Action == "fit" || req.Action == "focus" {
		if m, err = s.current(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	var target graph.Node
	if req.Action == "focus" {
		if target, err = m.lookup(req.NodeID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	at := geom.Pt(req.X, req.Y)
	var actionErr error
	snap := sess.Update(func(sess *session.Session) {
		vp := sess.Viewport
		switch req.Action {
		case "zoom_in":
			vp.ZoomIn()
		case "zoom_out":
			vp.ZoomOut()
		case "reset":
			vp.Reset()
		case "pan":
			vp.PanBy(geom.Pt(req.DX, req.DY))
		case "wheel":
			vp.Wheel(viewport.WheelEvent{DX: req.DX, DY: req.DY, At: at, Modifier: req.Modifier})
		case "pointer_down":
			vp.PointerDown(at, req.OverNode)
		case "pointer_move":
			vp.PointerMove(at)
		case "pointer_up":
			vp.PointerUp()
		case "touch_start":
			vp.TouchStart(req.Touches)
		case "touch_move":
			vp.TouchMove(req.Touches)
		case "touch_end":
			vp.TouchEnd(req.Touches)
		case "resize":
			if req.Width <= 0 || req.Height <= 0 {
				actionErr = kmerrors.New(kmerrors.ErrCodeInvalidInput, "resize needs a positive width and height")
				return
			}
			vp.Resize(req.Width, req.Height)
		case "fit":
			vp.Fit(positions(m.Graph), fitPadding)
		case "focus":
			vp.Focus(target.Pos())
		default:
			actionErr = kmerrors.New(kmerrors.ErrCodeInvalidInput, "unknown viewport action %q", req.Action)
		}
	})
	if actionErr != nil {
		s.writeError(w, r, actionErr)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type selectRequest struct {
	NodeID string `json:"node_id"`
}

// selectNode selects a node, or clears the selection for an empty id.
// Progress for modules loads in the background; ?wait=true blocks until
// it has settled.
func (s *Server) selectNode(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.NodeID == "" {
		writeJSON(w, http.StatusOK, sess.Update(func(sess *session.Session) { sess.Selection.Clear() }))
		return
	}

	m, err := s.current(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := m.lookup(req.NodeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess.Update(func(sess *session.Session) { sess.Selection.Select(s.baseCtx, n) })
	s.respondSelection(w, r, sess)
}

// retry reloads progress for the selected node after a failure.
func (s *Server) retry(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	selected := sess.Snapshot().Selection.SelectedID
	if selected == "" {
		s.writeError(w, r, kmerrors.New(kmerrors.ErrCodeInvalidInput, "nothing selected"))
		return
	}
	m, err := s.current(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := m.lookup(selected)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess.Update(func(sess *session.Session) { sess.Selection.Retry(s.baseCtx, n) })
	s.respondSelection(w, r, sess)
}

func (s *Server) respondSelection(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.URL.Query().Get("wait") == "true" {
		sess.Selection.Wait()
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) openHandbook(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Update(func(sess *session.Session) { sess.OpenHandbook() }))
}

// renderView renders the session's current frame: its viewport, selection
// and loaded progress.
func (s *Server) renderView(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.current(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap := sess.Snapshot()

	opts := s.opts.Pipeline
	opts.Formats = []string{pipeline.FormatSVG}
	opts.Viewport = &snap.Viewport
	opts.Width, opts.Height = snap.Width, snap.Height
	opts.Selected = snap.Selection.SelectedID
	opts.Progress = snap.Selection.Progress

	paths := s.runner.Route(m.Graph, opts)
	artifacts, err := s.runner.Render(r.Context(), m.Graph, paths, m.Layout.Exhausted, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeArtifact(w, contentTypes[pipeline.FormatSVG], artifacts[pipeline.FormatSVG])
}

// =============================================================================
// Helpers
// =============================================================================

func (m *graphMap) lookup(id string) (graph.Node, error) {
	if err := kmerrors.ValidateNodeID(id); err != nil {
		return graph.Node{}, err
	}
	n, ok := m.index[id]
	if !ok {
		return graph.Node{}, kmerrors.New(kmerrors.ErrCodeNotFound, "node %q not found", id)
	}
	return n, nil
}

func positions(g graph.Graph) []geom.Point {
	out := make([]geom.Point, len(g.Nodes))
	for i, n := range g.Nodes {
		out[i] = n.Pos()
	}
	return out
}
