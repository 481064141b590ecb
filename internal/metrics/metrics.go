// Package metrics registers the Prometheus collectors shared by the HTTP
// layer, the services and the LLM client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "studymate"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics is created once per process (or per test) against an explicit
// registerer so tests never touch the default registry.
type Metrics struct {
	ingestTotal       *prometheus.CounterVec
	ingestChunks      prometheus.Histogram
	quizTotal         *prometheus.CounterVec
	gradeTotal        *prometheus.CounterVec
	llmDuration       *prometheus.HistogramVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ingestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Document ingestions, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestChunks: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "chunks_per_document",
			Help:      "Number of chunks produced per successfully ingested document.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		quizTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "generations_total",
			Help:      "Quiz generations, partitioned by outcome.",
		}, []string{"outcome"}),

		gradeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "gradings_total",
			Help:      "Quiz submissions graded, partitioned by outcome.",
		}, []string{"outcome"}),

		llmDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Latency of calls to the completion and embedding provider.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"op", "outcome"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled, partitioned by method, route and status code.",
		}, []string{"method", "route", "code"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

func (m *Metrics) ObserveIngest(chunks int, err error) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.ingestChunks.Observe(float64(chunks))
	}
}

func (m *Metrics) ObserveQuiz(err error) {
	if m == nil {
		return
	}
	m.quizTotal.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ObserveGrade(err error) {
	if m == nil {
		return
	}
	m.gradeTotal.WithLabelValues(outcome(err)).Inc()
}

// ObserveLLMCall matches the ai.CallObserver signature.
func (m *Metrics) ObserveLLMCall(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.llmDuration.WithLabelValues(op, outcome(err)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
