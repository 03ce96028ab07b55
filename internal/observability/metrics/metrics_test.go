package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestQueueMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewQueueMetrics(reg)
	m.ObserveAssigned("WALK_IN", 25)
	m.ObserveRejected("capacity_exceeded")
	m.ObserveTransition("call")
}

func TestQueueMetricsNilSafe(t *testing.T) {
	var m *QueueMetrics
	m.ObserveAssigned("WALK_IN", 5)
	m.ObserveRejected("duplicate")
	m.ObserveTransition("cancel")
}
