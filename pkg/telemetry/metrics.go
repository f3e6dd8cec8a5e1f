package telemetry

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus request metrics scraped from /metrics.
type Metrics struct {
	apiRequests *prometheus.CounterVec
	apiDuration *prometheus.HistogramVec
}

// NewMetrics registers request metrics on the default Prometheus registry.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer registers request metrics on reg.
func NewMetricsWithRegisterer(reg prometheus.Registerer) (*Metrics, error) {
	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_api_requests_total",
		Help: "Counts API requests by method, route and status.",
	}, []string{"method", "route", "status"})

	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_api_duration_seconds",
		Help:    "API request latency per method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	for _, c := range []prometheus.Collector{apiRequests, apiDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &Metrics{
		apiRequests: apiRequests,
		apiDuration: apiDuration,
	}, nil
}

// ObserveAPIRequest records an API request and latency.
func (m *Metrics) ObserveAPIRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	methodLabel := sanitizeLabel(method)
	routeLabel := sanitizeLabel(route)
	m.apiRequests.WithLabelValues(methodLabel, routeLabel, status).Inc()
	m.apiDuration.WithLabelValues(methodLabel, routeLabel).Observe(duration.Seconds())
}

func sanitizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
