// ABOUTME: Prometheus counters for security events and request outcomes.
// ABOUTME: Exposes a security.EventSink implementation plus the /metrics handler.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/madfam-io/ai-portfolio-builder-sub004/internal/security"
)

var (
	securityEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_security_events_total",
		Help: "Security denials recorded by the pipeline, by event type.",
	}, []string{"event"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Requests seen by the gateway, by response status class.",
	}, []string{"class"})
)

// Sink increments the per-event counter. Registered alongside the slog sink
// so dashboards and logs see the same denials.
type Sink struct{}

// Record implements security.EventSink.
func (Sink) Record(_ context.Context, e security.Event) {
	securityEventsTotal.WithLabelValues(string(e.Type)).Inc()
}

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CountRequest records one finished request by status class ("2xx" etc.).
func CountRequest(status int) {
	var class string
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	default:
		class = "2xx"
	}
	requestsTotal.WithLabelValues(class).Inc()
}
