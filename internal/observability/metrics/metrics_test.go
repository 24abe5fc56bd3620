package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNilReceiverObservesAreSafe(t *testing.T) {
	var m *RetentionMetrics
	assert.NotPanics(t, func() {
		m.ObservePrediction("HIGH")
		m.ObserveIntervention("rule", "SUCCESS")
		m.ObserveScoreEvent("NO_SHOW")
		m.ObserveDispatchLatency("SMS", 0.2)
	})
}

func TestRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRetentionMetrics(reg)

	m.ObservePrediction("HIGH")
	m.ObservePrediction("HIGH")
	m.ObserveIntervention("critical_confirmation", "PARTIAL")
	m.ObserveDispatchLatency("SMS", 0.05)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
