package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the marketplace backend.
type Metrics struct {
	SignupsTotal         *prometheus.CounterVec
	ActivationsTotal     *prometheus.CounterVec
	ProvisioningFailures prometheus.Counter
	NotificationsTotal   *prometheus.CounterVec
	WebhooksTotal        *prometheus.CounterVec
}

// New initializes and registers the metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		SignupsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickline",
			Subsystem: "accounts",
			Name:      "signups_total",
			Help:      "Total signup attempts by kind and status.",
		}, []string{"kind", "status"}), // status: created, duplicate, invalid, notification_failed
		ActivationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickline",
			Subsystem: "accounts",
			Name:      "activations_total",
			Help:      "Total activation attempts by path and status.",
		}, []string{"path", "status"}), // path: code, link
		ProvisioningFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "brickline",
			Subsystem: "tenants",
			Name:      "provisioning_failures_total",
			Help:      "Total tenant provisioning attempts that were rolled back.",
		}),
		NotificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickline",
			Subsystem: "notify",
			Name:      "dispatches_total",
			Help:      "Total notification dispatches by channel and status.",
		}, []string{"channel", "status"}), // status: sent, retried, dropped
		WebhooksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickline",
			Subsystem: "billing",
			Name:      "webhooks_total",
			Help:      "Total payment webhook deliveries by outcome.",
		}, []string{"outcome"}), // outcome: processed, ignored, rejected
	}
}
