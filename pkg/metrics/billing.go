package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookEventsTotal counts provider webhook events by type and outcome
// (processed, duplicate, ignored, failed).
var WebhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Provider webhook events partitioned by event type and processing outcome.",
	},
	[]string{"type", "outcome"},
)

func init() {
	prometheus.MustRegister(WebhookEventsTotal)
}
