package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the quiz counters exported on /metrics.
type Metrics struct {
	SessionsStarted    *prometheus.CounterVec
	SessionsCompleted  prometheus.Counter
	IllegalTransitions *prometheus.CounterVec
	Generations        *prometheus.CounterVec
	ResultPercentage   prometheus.Histogram
	ActiveSessions     prometheus.GaugeFunc
}

// New creates the quiz metrics and registers them on reg.
// activeSessions may be nil.
func New(reg prometheus.Registerer, activeSessions func() float64) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_sessions_started_total",
				Help: "Number of quiz sessions started, by question source",
			},
			[]string{"source"},
		),
		SessionsCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quiz_sessions_completed_total",
				Help: "Number of quiz sessions completed",
			},
		),
		IllegalTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_illegal_transitions_total",
				Help: "Number of rejected quiz actions",
			},
			[]string{"action"},
		),
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_generations_total",
				Help: "Number of AI question generations, by outcome",
			},
			[]string{"outcome"},
		),
		ResultPercentage: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quiz_result_percentage",
				Help:    "Final percentage of completed quiz sessions",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),
	}

	reg.MustRegister(
		m.SessionsStarted,
		m.SessionsCompleted,
		m.IllegalTransitions,
		m.Generations,
		m.ResultPercentage,
	)

	if activeSessions != nil {
		m.ActiveSessions = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "quiz_active_sessions",
				Help: "Number of quiz sessions held in memory",
			},
			activeSessions,
		)
		reg.MustRegister(m.ActiveSessions)
	}

	return m
}
