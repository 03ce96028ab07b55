package metrics

import "github.com/prometheus/client_golang/prometheus"

// QueueMetrics exposes counters/histograms for the patient queue.
type QueueMetrics struct {
	assignedTotal    *prometheus.CounterVec
	rejectedTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	waitEstimate     prometheus.Histogram
}

func NewQueueMetrics(reg prometheus.Registerer) *QueueMetrics {
	m := &QueueMetrics{
		assignedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patientflow",
			Subsystem: "queue",
			Name:      "assigned_total",
			Help:      "Total queue entries assigned",
		}, []string{"queue_type"}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patientflow",
			Subsystem: "queue",
			Name:      "rejected_total",
			Help:      "Assignments rejected by a guard",
		}, []string{"reason"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patientflow",
			Subsystem: "queue",
			Name:      "transitions_total",
			Help:      "Queue entry status transitions",
		}, []string{"action"}),
		waitEstimate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "patientflow",
			Subsystem: "queue",
			Name:      "wait_estimate_minutes",
			Help:      "Estimated wait handed to patients at intake",
			Buckets:   []float64{0, 5, 10, 20, 30, 45, 60, 90, 120, 180},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.assignedTotal, m.rejectedTotal, m.transitionsTotal, m.waitEstimate)
	return m
}

func (m *QueueMetrics) ObserveAssigned(queueType string, waitMinutes int) {
	if m == nil {
		return
	}
	m.assignedTotal.WithLabelValues(queueType).Inc()
	m.waitEstimate.Observe(float64(waitMinutes))
}

func (m *QueueMetrics) ObserveRejected(reason string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(reason).Inc()
}

func (m *QueueMetrics) ObserveTransition(action string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action).Inc()
}
