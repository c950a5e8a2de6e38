package metrics

import "github.com/prometheus/client_golang/prometheus"

// FlowMetrics exposes counters/histograms for the booking conversation flow.
type FlowMetrics struct {
	transitionsTotal *prometheus.CounterVec
	commitsTotal     *prometheus.CounterVec
	handleLatency    *prometheus.HistogramVec
}

func NewFlowMetrics(reg prometheus.Registerer) *FlowMetrics {
	m := &FlowMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "flow",
			Name:      "state_transitions_total",
			Help:      "Total conversation state transitions",
		}, []string{"from", "to"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "flow",
			Name:      "booking_commits_total",
			Help:      "Total booking commit attempts",
		}, []string{"outcome"}),
		handleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "flow",
			Name:      "handle_latency_seconds",
			Help:      "Latency of inbound message handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.commitsTotal, m.handleLatency)
	return m
}

func (m *FlowMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *FlowMetrics) ObserveCommit(outcome string) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(outcome).Inc()
}

func (m *FlowMetrics) ObserveHandleLatency(state string, seconds float64) {
	if m == nil {
		return
	}
	m.handleLatency.WithLabelValues(state).Observe(seconds)
}
