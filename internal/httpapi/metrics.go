package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"navagent/internal/assistant"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navagent",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "navagent",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "navagent",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
	)

	askRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navagent",
			Subsystem: "http",
			Name:      "ask_rejected_total",
			Help:      "Questions rejected before resolution",
		},
		[]string{"reason"},
	)

	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navagent",
			Subsystem: "assistant",
			Name:      "state_transitions_total",
			Help:      "Lifecycle transitions by target phase",
		},
		[]string{"to"},
	)

	phaseGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "navagent",
			Subsystem: "assistant",
			Name:      "phase",
			Help:      "1 for the current lifecycle phase, 0 otherwise",
		},
		[]string{"phase"},
	)

	answersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navagent",
			Subsystem: "assistant",
			Name:      "answers_total",
			Help:      "Resolved questions by answer source",
		},
		[]string{"source", "truncated", "timed_out"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "navagent",
			Subsystem: "assistant",
			Name:      "stage_duration_seconds",
			Help:      "Duration of probe, download, load and resolve stages",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5, 8, 15, 30, 60, 300},
		},
		[]string{"stage", "outcome"},
	)

	cacheSweepRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "navagent",
			Subsystem: "assistant",
			Name:      "cache_dirs_removed_total",
			Help:      "Cache directories removed at startup",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight, askRejectedTotal,
		stateTransitions, phaseGauge, answersTotal, stageDuration, cacheSweepRemoved)
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

// MetricsMiddleware instruments requests for Prometheus.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInflight.Inc()
		defer httpInflight.Dec()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		path := routePatternOrPath(r)
		status := strconv.Itoa(sr.status)
		httpRequestsTotal.WithLabelValues(path, r.Method, status).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, status).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// IncrementAskRejected is called when a question is refused.
func IncrementAskRejected(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	askRejectedTotal.WithLabelValues(reason).Inc()
}

var allPhases = []assistant.Phase{
	assistant.PhaseIdle, assistant.PhaseCheckingModel, assistant.PhaseNeedDownload,
	assistant.PhaseDownloading, assistant.PhaseLoadingModel, assistant.PhaseReady,
	assistant.PhaseThinking, assistant.PhaseError,
}

// MetricsPublisher turns controller events into Prometheus series.
type MetricsPublisher struct{}

var _ assistant.EventPublisher = MetricsPublisher{}

func (MetricsPublisher) Publish(e assistant.Event) {
	switch e.Name {
	case assistant.EventStateChange:
		to, _ := e.Fields["to"].(string)
		stateTransitions.WithLabelValues(to).Inc()
		for _, p := range allPhases {
			v := 0.0
			if string(p) == to {
				v = 1
			}
			phaseGauge.WithLabelValues(string(p)).Set(v)
		}
	case assistant.EventProbeDone:
		observeStage("probe", e)
	case assistant.EventDownloadDone:
		observeStage("download", e)
	case assistant.EventLoadDone:
		observeStage("load", e)
	case assistant.EventResolveDone:
		observeStage("resolve", e)
		source, _ := e.Fields["source"].(string)
		truncated, _ := e.Fields["truncated"].(bool)
		timedOut, _ := e.Fields["timed_out"].(bool)
		answersTotal.WithLabelValues(source, strconv.FormatBool(truncated), strconv.FormatBool(timedOut)).Inc()
	case assistant.EventCacheSweep:
		if n, ok := e.Fields["removed"].(int); ok {
			cacheSweepRemoved.Add(float64(n))
		}
	}
}

func observeStage(stage string, e assistant.Event) {
	ms, ok := e.Fields["duration_ms"].(int64)
	if !ok {
		return
	}
	outcome := "ok"
	if _, failed := e.Fields["error"]; failed {
		outcome = "error"
	}
	if loaded, ok := e.Fields["loaded"].(bool); ok && !loaded {
		outcome = "error"
	}
	stageDuration.WithLabelValues(stage, outcome).Observe(float64(ms) / 1000)
}
