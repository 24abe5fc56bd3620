package metrics

import "github.com/prometheus/client_golang/prometheus"

// RetentionMetrics exposes counters/histograms for the no-show engine.
type RetentionMetrics struct {
	predictionsTotal   *prometheus.CounterVec
	interventionsTotal *prometheus.CounterVec
	scoreEventsTotal   *prometheus.CounterVec
	dispatchLatency    *prometheus.HistogramVec
}

func NewRetentionMetrics(reg prometheus.Registerer) *RetentionMetrics {
	m := &RetentionMetrics{
		predictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noshow",
			Subsystem: "prediction",
			Name:      "total",
			Help:      "Total predictions computed, by risk level",
		}, []string{"risk_level"}),
		interventionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noshow",
			Subsystem: "intervention",
			Name:      "executions_total",
			Help:      "Total intervention plan executions, by rule and result",
		}, []string{"rule_id", "result"}),
		scoreEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noshow",
			Subsystem: "risk",
			Name:      "score_events_total",
			Help:      "Total score lifecycle events applied",
		}, []string{"event"}),
		dispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "noshow",
			Subsystem: "intervention",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency of channel sends during plan execution",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.predictionsTotal, m.interventionsTotal, m.scoreEventsTotal, m.dispatchLatency)
	return m
}

func (m *RetentionMetrics) ObservePrediction(riskLevel string) {
	if m == nil {
		return
	}
	m.predictionsTotal.WithLabelValues(riskLevel).Inc()
}

func (m *RetentionMetrics) ObserveIntervention(ruleID, result string) {
	if m == nil {
		return
	}
	m.interventionsTotal.WithLabelValues(ruleID, result).Inc()
}

func (m *RetentionMetrics) ObserveScoreEvent(event string) {
	if m == nil {
		return
	}
	m.scoreEventsTotal.WithLabelValues(event).Inc()
}

func (m *RetentionMetrics) ObserveDispatchLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.dispatchLatency.WithLabelValues(channel).Observe(seconds)
}
