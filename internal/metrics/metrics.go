package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type FlowMetrics struct {
	Transitions  *prometheus.CounterVec
	PollAttempts *prometheus.HistogramVec
	BackendCalls *prometheus.CounterVec
	LatencyMS    *prometheus.HistogramVec
	CartOps      *prometheus.CounterVec
}

// NewFlowMetrics registers collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewFlowMetrics(reg prometheus.Registerer) *FlowMetrics {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout_client",
		Name:      "flow_transitions_total",
		Help:      "Checkout flow state transitions.",
	}, []string{"from", "to"})
	pollAttempts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "checkout_client",
		Name:      "poll_attempts",
		Help:      "Attempts used by a poll before it finished.",
		Buckets:   []float64{1, 2, 3, 4, 5, 6, 10, 20, 30, 45, 60},
	}, []string{"poll", "outcome"})
	backendCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout_client",
		Name:      "backend_requests_total",
		Help:      "Requests sent to the shop backend.",
	}, []string{"route", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "checkout_client",
		Name:      "backend_request_duration_ms",
		Help:      "Shop backend latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})
	cartOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout_client",
		Name:      "cart_operations_total",
		Help:      "Cart mutations by result.",
	}, []string{"op", "result"})

	reg.MustRegister(transitions, pollAttempts, backendCalls, latency, cartOps)
	return &FlowMetrics{
		Transitions:  transitions,
		PollAttempts: pollAttempts,
		BackendCalls: backendCalls,
		LatencyMS:    latency,
		CartOps:      cartOps,
	}
}

func (m *FlowMetrics) ObserveTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *FlowMetrics) ObservePoll(poll, outcome string, attempts int) {
	m.PollAttempts.WithLabelValues(poll, outcome).Observe(float64(attempts))
}

func (m *FlowMetrics) ObserveBackendCall(route, outcome string, elapsed time.Duration) {
	m.BackendCalls.WithLabelValues(route, outcome).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(float64(elapsed.Microseconds()) / 1000)
}

func (m *FlowMetrics) ObserveCartOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CartOps.WithLabelValues(op, result).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
