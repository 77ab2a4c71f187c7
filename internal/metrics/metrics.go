package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "barkwrapped"

// Metrics holds the Prometheus collectors of the service
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	ImagesRendered   *prometheus.CounterVec
	MentionsTotal    *prometheus.CounterVec
	StreamReconnects prometheus.Counter

	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
}

// New creates and registers all collectors on the given registry
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wrapped",
			Name:      "runs_total",
			Help:      "Wrapped runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "wrapped",
			Name:      "run_duration_seconds",
			Help:      "Duration of Wrapped runs in seconds.",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		ImagesRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wrapped",
			Name:      "images_rendered_total",
			Help:      "Rendered images by kind.",
		}, []string{"kind"}),
		MentionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "mentions_total",
			Help:      "Mentions received from the stream by action (triggered/ignored).",
		}, []string{"action"}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "reconnects_total",
			Help:      "Event stream reconnect attempts.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
	}

	reg.MustRegister(
		m.RunsTotal, m.RunDuration, m.ImagesRendered,
		m.MentionsTotal, m.StreamReconnects,
		m.RequestDuration, m.RequestsTotal,
	)
	return m
}

// RunFinished records the outcome and duration of a Wrapped run
func (m *Metrics) RunFinished(outcome string, d time.Duration) {
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
}

// ImageRendered counts one rendered image
func (m *Metrics) ImageRendered(kind string) {
	m.ImagesRendered.WithLabelValues(kind).Inc()
}

// MentionReceived counts a stream mention
func (m *Metrics) MentionReceived(triggered bool) {
	action := "ignored"
	if triggered {
		action = "triggered"
	}
	m.MentionsTotal.WithLabelValues(action).Inc()
}

// Reconnected counts a stream reconnect
func (m *Metrics) Reconnected() {
	m.StreamReconnects.Inc()
}

// Middleware records request metrics. It skips /metrics and the health probes.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/metrics", "/healthz", "/readyz":
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, route, strconv.Itoa(status)}

		m.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		m.RequestsTotal.WithLabelValues(labels...).Inc()
	})
}
