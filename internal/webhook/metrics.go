package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision outcomes recorded per inbound webhook.
const (
	outcomeForwarded     = "forwarded"
	outcomeUnknownPlugin = "unknown_plugin"
	outcomeForbidden     = "forbidden_source"
	outcomeUnauthorized  = "unauthorized"
	outcomeTooLarge      = "too_large"
	outcomeUpstreamError = "upstream_error"
)

var (
	webhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "porter",
		Subsystem: "gateway",
		Name:      "webhooks_total",
		Help:      "Inbound webhooks by plugin and decision outcome.",
	}, []string{"plugin", "outcome"})

	forwardDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "porter",
		Subsystem: "gateway",
		Name:      "forward_duration_seconds",
		Help:      "Time spent forwarding accepted webhooks to plugin destinations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"plugin"})
)

// recordOutcome counts a gateway decision. Unknown plugin names are
// collapsed into a single empty label to keep cardinality bounded.
func recordOutcome(plugin, outcome string) {
	if outcome == outcomeUnknownPlugin {
		plugin = ""
	}
	webhooksTotal.WithLabelValues(plugin, outcome).Inc()
}
