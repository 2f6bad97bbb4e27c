// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEvents counts inbound webhook requests by outcome:
	// dispatched, ignored_action, ignored_repo, rejected_signature,
	// rejected_payload.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starnotify_webhook_events_total",
		Help: "Inbound GitHub webhook requests by outcome.",
	}, []string{"outcome"})

	// Deliveries counts per-subscription push delivery attempts by result:
	// success, failed, removed.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starnotify_push_deliveries_total",
		Help: "Push delivery attempts by result.",
	}, []string{"result"})

	// Subscriptions tracks the number of stored push subscriptions.
	Subscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "starnotify_subscriptions",
		Help: "Currently stored push subscriptions.",
	})
)
