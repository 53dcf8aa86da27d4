package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records credit-scoring outcomes. A nil *Metrics records nothing.
type Metrics struct {
	calculations    *prometheus.CounterVec
	scoringDuration *prometheus.HistogramVec
	eventsPublished *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credible",
			Subsystem: "credit_score",
			Name:      "calculations_total",
			Help:      "Credit score calculations by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		scoringDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "credible",
			Subsystem: "credit_score",
			Name:      "scoring_request_duration_seconds",
			Help:      "Latency of calls to the scoring gateway.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"outcome"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credible",
			Subsystem: "credit_score",
			Name:      "events_published_total",
			Help:      "credit_score.calculated publish attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.calculations, m.scoringDuration, m.eventsPublished)
	return m
}

func (m *Metrics) observeCalculation(trigger string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = ErrorKind(err)
	}
	m.calculations.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) observeScoring(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = ErrorKind(err)
	}
	m.scoringDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) observePublish(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsPublished.WithLabelValues(result).Inc()
}
