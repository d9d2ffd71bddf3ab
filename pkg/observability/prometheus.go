package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusHooks implements every hook interface with Prometheus metrics.
type PrometheusHooks struct {
	fetches        *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	layoutDuration prometheus.Histogram
	layoutNodes    prometheus.Gauge
	exhausted      prometheus.Counter
	renders        *prometheus.CounterVec
	renderDuration prometheus.Histogram
	cacheOps       *prometheus.CounterVec
	cacheBytes     *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	httpErrors     *prometheus.CounterVec

	selections       *prometheus.CounterVec
	progressFetches  *prometheus.CounterVec
	progressDuration prometheus.Histogram
	progressStale    prometheus.Counter
	sessionsActive   prometheus.Gauge
	sessionsClosed   *prometheus.CounterVec
}

var msBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// NewPrometheusHooks creates the metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewPrometheusHooks(reg prometheus.Registerer) *PrometheusHooks {
	h := &PrometheusHooks{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgemap_graph_fetches_total",
			Help: "Graph loads, labelled by source and status.",
		}, []string{"source", "status"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "knowledgemap_graph_fetch_duration_ms",
			Help:    "Graph load latency in milliseconds.",
			Buckets: msBuckets,
		}),
		layoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "knowledgemap_layout_duration_ms",
			Help:    "Layout computation time in milliseconds.",
			Buckets: msBuckets,
		}),
		layoutNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "knowledgemap_layout_nodes",
			Help: "Number of nodes in the most recent layout.",
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knowledgemap_layout_exhausted_total",
			Help: "Nodes placed at their desired position after the collision search gave up.",
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgemap_renders_total",
			Help: "Render runs, labelled by format and status.",
		}, []string{"format", "status"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "knowledgemap_render_duration_ms",
			Help:    "Render time in milliseconds.",
			Buckets: msBuckets,
		}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgemap_cache_operations_total",
			Help: "Cache lookups and writes, labelled by key type and result.",
		}, []string{"key_type", "result"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgemap_cache_written_bytes_total",
			Help: "Bytes written to the cache, labelled by key type.",
		}, []string{"key_type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgemap_http_client_requests_total",
			Help: "Requests to the graph service, labelled by method, path and status code.",
		}, []string{"method", "path", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "knowledgemap_http_client_duration_ms",
			Help:    "Graph service response latency in milliseconds.",
			Buckets: msBuckets,
		}, []string{"method"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgemap_http_client_errors_total",
			Help: "Requests to the graph service that failed without a response.",
		}, []string{"method"}),

		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgemap_selections_total",
			Help: "Accepted node selections, labelled by node kind.",
		}, []string{"kind"}),
		progressFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgemap_progress_fetches_total",
			Help: "Module progress fetches applied to a selection, labelled by status.",
		}, []string{"status"}),
		progressDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "knowledgemap_progress_fetch_duration_ms",
			Help:    "Module progress fetch latency in milliseconds.",
			Buckets: msBuckets,
		}),
		progressStale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knowledgemap_progress_stale_total",
			Help: "Progress responses discarded because a newer selection replaced theirs.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "knowledgemap_sessions_active",
			Help: "Viewer sessions currently held by the server.",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgemap_sessions_closed_total",
			Help: "Viewer sessions ended, labelled by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(h.Collectors()...)
	}
	return h
}

// Collectors returns every metric for registration.
func (h *PrometheusHooks) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		h.fetches, h.fetchDuration, h.layoutDuration, h.layoutNodes, h.exhausted,
		h.renders, h.renderDuration, h.cacheOps, h.cacheBytes,
		h.httpRequests, h.httpDuration, h.httpErrors,
		h.selections, h.progressFetches, h.progressDuration, h.progressStale,
		h.sessionsActive, h.sessionsClosed,
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func (h *PrometheusHooks) OnFetchStart(context.Context, string) {}

func (h *PrometheusHooks) OnFetchComplete(_ context.Context, source string, _ int, d time.Duration, err error) {
	h.fetches.WithLabelValues(source, status(err)).Inc()
	h.fetchDuration.Observe(ms(d))
}

func (h *PrometheusHooks) OnLayoutStart(_ context.Context, nodeCount int) {
	h.layoutNodes.Set(float64(nodeCount))
}

func (h *PrometheusHooks) OnLayoutComplete(_ context.Context, _ int, exhausted int, d time.Duration, _ error) {
	h.layoutDuration.Observe(ms(d))
	h.exhausted.Add(float64(exhausted))
}

func (h *PrometheusHooks) OnRenderStart(context.Context, []string) {}

func (h *PrometheusHooks) OnRenderComplete(_ context.Context, formats []string, d time.Duration, err error) {
	for _, f := range formats {
		h.renders.WithLabelValues(f, status(err)).Inc()
	}
	h.renderDuration.Observe(ms(d))
}

func (h *PrometheusHooks) OnCacheHit(_ context.Context, keyType string) {
	h.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (h *PrometheusHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (h *PrometheusHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.cacheOps.WithLabelValues(keyType, "set").Inc()
	h.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (h *PrometheusHooks) OnRequest(context.Context, string, string, string) {}

func (h *PrometheusHooks) OnResponse(_ context.Context, method, _, path string, code int, d time.Duration) {
	h.httpRequests.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	h.httpDuration.WithLabelValues(method).Observe(ms(d))
}

func (h *PrometheusHooks) OnError(_ context.Context, method, _, _ string, _ error) {
	h.httpErrors.WithLabelValues(method).Inc()
}

func (h *PrometheusHooks) OnSelect(_ context.Context, kind string) {
	h.selections.WithLabelValues(kind).Inc()
}

func (h *PrometheusHooks) OnProgressComplete(_ context.Context, d time.Duration, err error) {
	h.progressFetches.WithLabelValues(status(err)).Inc()
	h.progressDuration.Observe(ms(d))
}

func (h *PrometheusHooks) OnProgressStale(context.Context) { h.progressStale.Inc() }

func (h *PrometheusHooks) OnSessionOpen(_ context.Context, active int) {
	h.sessionsActive.Set(float64(active))
}

func (h *PrometheusHooks) OnSessionClose(_ context.Context, reason string, active int) {
	h.sessionsClosed.WithLabelValues(reason).Inc()
	h.sessionsActive.Set(float64(active))
}

var _ All = (*PrometheusHooks)(nil)
