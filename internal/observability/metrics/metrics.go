package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Session event labels.
const (
	EventSignIn            = "signin"
	EventSignUp            = "signup"
	EventSignOut           = "signout"
	EventForcedSignOut     = "forced_signout"
	EventBootstrapRestored = "bootstrap_restored"
	EventBootstrapEmpty    = "bootstrap_empty"
	EventShopSelected      = "shop_selected"
)

// ClientMetrics exposes counters/histograms for API calls and session changes.
type ClientMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sessionEvents   *prometheus.CounterVec
	staleSlots      prometheus.Counter
}

func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barbershop",
			Subsystem: "client",
			Name:      "api_requests_total",
			Help:      "Total barbershop API requests by operation and HTTP status",
		}, []string{"operation", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "barbershop",
			Subsystem: "client",
			Name:      "api_request_duration_seconds",
			Help:      "Latency of barbershop API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barbershop",
			Subsystem: "client",
			Name:      "session_events_total",
			Help:      "Session lifecycle transitions",
		}, []string{"event"}),
		staleSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barbershop",
			Subsystem: "client",
			Name:      "stale_slot_responses_total",
			Help:      "Slot responses discarded because the booking draft changed while in flight",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.sessionEvents, m.staleSlots)
	return m
}

// ObserveRequest records one API call. status 0 means no response arrived.
func (m *ClientMetrics) ObserveRequest(operation string, status int, seconds float64) {
	if m == nil {
		return
	}
	label := "network_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(operation, label).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *ClientMetrics) ObserveSessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(event).Inc()
}

func (m *ClientMetrics) ObserveStaleSlots() {
	if m == nil {
		return
	}
	m.staleSlots.Inc()
}
