package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	SubmissionsTotal    *prometheus.CounterVec
	StepDuration        *prometheus.HistogramVec
	StepFailuresTotal   *prometheus.CounterVec
	DuplicateSimilarity prometheus.Histogram
	UrgencyScore        prometheus.Histogram
	ClassifierFallbacks prometheus.Counter
	EventsEmitted       *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_submissions_total",
			Help: "Total processed submissions by outcome.",
		}, []string{"outcome"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "beacon_triage_step_duration_seconds",
			Help:    "Duration of individual pipeline steps in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}, []string{"step"}),
		StepFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_triage_step_failures_total",
			Help: "Recovered dependency failures by pipeline step.",
		}, []string{"step"}),
		DuplicateSimilarity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_duplicate_similarity",
			Help:    "Jaccard similarity of merge decisions.",
			Buckets: prometheus.LinearBuckets(0.35, 0.05, 13), // 0.35 .. 0.95
		}),
		UrgencyScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_urgency_score",
			Help:    "Urgency score assigned to created incidents.",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 .. 100
		}),
		ClassifierFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_classifier_fallbacks_total",
			Help: "Classifications served by the keyword fallback path.",
		}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_events_emitted_total",
			Help: "Notification events published by name.",
		}, []string{"event"}),
	}

	reg.MustRegister(
		m.SubmissionsTotal,
		m.StepDuration,
		m.StepFailuresTotal,
		m.DuplicateSimilarity,
		m.UrgencyScore,
		m.ClassifierFallbacks,
		m.EventsEmitted,
	)

	return m
}

// Hooks returns EngineHooks that record the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnStep: func(step StepName, duration float64, failed bool) {
			m.StepDuration.WithLabelValues(string(step)).Observe(duration)
			if failed {
				m.StepFailuresTotal.WithLabelValues(string(step)).Inc()
			}
		},
		OnOutcome: func(merged bool, similarity float64, urgency int, fallback bool) {
			if merged {
				m.DuplicateSimilarity.Observe(similarity)
				return
			}
			m.UrgencyScore.Observe(float64(urgency))
			if fallback {
				m.ClassifierFallbacks.Inc()
			}
		},
	}
}

type countingEmitter struct {
	next    Emitter
	metrics *Metrics
}

func (c countingEmitter) Emit(ev Event) {
	c.metrics.EventsEmitted.WithLabelValues(string(ev.Name)).Inc()
	if c.next != nil {
		c.next.Emit(ev)
	}
}

// InstrumentEmitter wraps an Emitter so every published event is counted.
func (m *Metrics) InstrumentEmitter(next Emitter) Emitter {
	return countingEmitter{next: next, metrics: m}
}
