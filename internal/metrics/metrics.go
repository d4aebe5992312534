package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Chat request outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeBadRequest    = "bad_request"
	OutcomeRateLimited   = "rate_limited"
	OutcomeUpstreamError = "upstream_error"
	OutcomeStreamError   = "stream_error"
	OutcomeCanceled      = "canceled"
)

// Metrics bundles the collectors exported on /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	ChatRequests     *prometheus.CounterVec
	StreamDuration   prometheus.Histogram
	Fragments        prometheus.Counter
	KnowledgeMatches *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, so tests can build as many
// instances as they like.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ChatRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medbot_chat_requests_total",
				Help: "Total number of chat requests by outcome",
			},
			[]string{"outcome"},
		),
		StreamDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "medbot_chat_stream_duration_seconds",
				Help:    "Time from opening the model stream to its end",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
		),
		Fragments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "medbot_chat_fragments_total",
				Help: "Total number of response fragments relayed to clients",
			},
		),
		KnowledgeMatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medbot_knowledge_matches_total",
				Help: "Knowledge entries spliced into prompts by kind",
			},
			[]string{"kind"},
		),
	}
	m.Registry.MustRegister(
		m.ChatRequests,
		m.StreamDuration,
		m.Fragments,
		m.KnowledgeMatches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveMatches counts matched knowledge entries.
func (m *Metrics) ObserveMatches(symptoms, drugs int, tips bool) {
	if m == nil {
		return
	}
	if symptoms > 0 {
		m.KnowledgeMatches.WithLabelValues("symptom").Add(float64(symptoms))
	}
	if drugs > 0 {
		m.KnowledgeMatches.WithLabelValues("drug").Add(float64(drugs))
	}
	if tips {
		m.KnowledgeMatches.WithLabelValues("tips").Inc()
	}
}

// ObserveOutcome counts one finished chat request.
func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(outcome).Inc()
}
