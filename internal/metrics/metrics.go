// Package metrics defines the Prometheus collectors for the notification
// pipeline. Collectors register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "contractorhub"

// NotificationsCreatedTotal counts delivery rows inserted, by action.
var NotificationsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_created_total",
		Help:      "Total notification delivery rows inserted.",
	},
	[]string{"action"},
)

// NotificationsCoalescedTotal counts recipients skipped because an unread
// row for the same object already existed.
var NotificationsCoalescedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_coalesced_total",
		Help:      "Total notify calls skipped due to an existing unread notification.",
	},
	[]string{"action"},
)

// DeliveriesTotal counts best-effort delivery attempts.
// Labels:
//   - channel: "push", "push_enqueue", "webhook" or "discord"
//   - result: "ok" or "error"
var DeliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Total best-effort delivery attempts by channel and result.",
	},
	[]string{"channel", "result"},
)

// DispatchDuration measures the in-request part of a dispatch: recipient
// resolution, the object/change/notify writes and enqueueing deliveries.
var DispatchDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of notification dispatch per event kind.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"event"},
)

// RoleCacheLookupsTotal counts role snapshot cache lookups.
// Label result: "hit", "miss" or "error".
var RoleCacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_cache_lookups_total",
		Help:      "Role snapshot cache lookups by result.",
	},
	[]string{"result"},
)

const (
	ChannelPush    = "push"
	ChannelWebhook = "webhook"
	ChannelDiscord = "discord"

	// ChannelPushEnqueue counts push tasks handed to the queue, one per
	// recipient. ChannelPush counts device publishes made by the worker.
	ChannelPushEnqueue = "push_enqueue"
)

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
