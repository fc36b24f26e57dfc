package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reviewgo",
			Name:      "notifications_total",
			Help:      "Notification deliveries by sink, event type and result",
		},
		[]string{"sink", "type", "result"},
	)

	droppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reviewgo",
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped because the dispatch queue was full or closed",
		},
		[]string{"type"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "reviewgo",
			Name:      "notification_queue_depth",
			Help:      "Events waiting in the notification dispatch queue",
		},
	)
)
