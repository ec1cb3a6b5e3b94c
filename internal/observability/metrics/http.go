package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wastewise/disposal-assistant/internal/core/usecase"
)

// APIMetrics is the api process registry: HTTP server metrics plus the
// per-turn pipeline signals. It implements usecase.PipelineObserver.
type APIMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	turnStateDuration  *prometheus.HistogramVec
	sourceFailureTotal *prometheus.CounterVec
	webTriggerTotal    *prometheus.CounterVec
	fusedDocuments     prometheus.Histogram
	degradedTurnTotal  *prometheus.CounterVec
}

func NewAPIMetrics(service string) *APIMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wastewise",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wastewise",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wastewise",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	turnStateDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wastewise",
			Subsystem: "turn",
			Name:      "state_duration_seconds",
			Help:      "Time spent in each turn pipeline state.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"state", "outcome"},
	)
	sourceFailureTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wastewise",
			Subsystem: "retrieval",
			Name:      "source_failures_total",
			Help:      "Retrieval lookups absorbed as empty lists, by source and kind.",
		},
		[]string{"source", "kind"},
	)
	webTriggerTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wastewise",
			Subsystem: "retrieval",
			Name:      "web_triggers_total",
			Help:      "Turns that included the live web search path, by mode.",
		},
		[]string{"mode"},
	)
	fusedDocuments := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wastewise",
			Subsystem: "fusion",
			Name:      "fused_documents",
			Help:      "Distribution of fused result sizes per turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)
	degradedTurnTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wastewise",
			Subsystem: "turn",
			Name:      "degraded_total",
			Help:      "Turns that responded with a degraded answer, by reason.",
		},
		[]string{"reason"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		turnStateDuration,
		sourceFailureTotal,
		webTriggerTotal,
		fusedDocuments,
		degradedTurnTotal,
	)

	return &APIMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		turnStateDuration:  turnStateDuration,
		sourceFailureTotal: sourceFailureTotal,
		webTriggerTotal:    webTriggerTotal,
		fusedDocuments:     fusedDocuments,
		degradedTurnTotal:  degradedTurnTotal,
	}
}

func (m *APIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *APIMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	if strings.HasPrefix(path, "/v1/sessions/") {
		return "/v1/sessions/{session_id}/turns"
	}
	return path
}

func (m *APIMetrics) ObserveTransition(state usecase.TurnState, duration time.Duration, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.turnStateDuration.WithLabelValues(string(state), outcome).Observe(duration.Seconds())
}

func (m *APIMetrics) RecordSourceFailure(sourceID, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.sourceFailureTotal.WithLabelValues(sourceLabel(sourceID), kind).Inc()
}

// sourceLabel caps cardinality: every sub-query list shares one label.
func sourceLabel(sourceID string) string {
	if strings.HasPrefix(sourceID, "sq:") {
		return "semantic_index"
	}
	return sourceID
}

func (m *APIMetrics) RecordWebTrigger(mode string) {
	if mode == "" {
		mode = "unknown"
	}
	m.webTriggerTotal.WithLabelValues(mode).Inc()
}

func (m *APIMetrics) ObserveFusedSize(size int) {
	m.fusedDocuments.Observe(float64(size))
}

func (m *APIMetrics) RecordDegradedTurn(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.degradedTurnTotal.WithLabelValues(reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
