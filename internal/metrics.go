package internal

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	refreshSkippedNoToken = "skipped_no_token"
	refreshFailed         = "failed"
	refreshSucceeded      = "succeeded"
)

// Metrics holds the client's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	refresh  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpsvc_requests_total",
			Help: "Outbound HTTP calls by method and status (0 = transport failure).",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "httpsvc_request_duration_seconds",
			Help:    "Outbound HTTP call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpsvc_refresh_total",
			Help: "Session refresh attempts triggered by 401 responses, by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration, m.refresh} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) observeRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refresh.WithLabelValues(outcome).Inc()
}
