package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Queue request results
const (
	ResultQueued  = "queued"  // slot gained a new pending entry
	ResultMerged  = "merged"  // slot already had the entry pending
	ResultRefused = "refused" // indication refused while the slot awaits confirmation
)

var (
	registerOnce sync.Once

	queueRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatt_dispatch",
			Subsystem: "queue",
			Name:      "requests_total",
			Help:      "Notification and indication requests by result.",
		},
		[]string{"kind", "result"},
	)
	dispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatt_dispatch",
			Subsystem: "link",
			Name:      "dispatched_total",
			Help:      "Handle value PDUs sent by kind and priority tier.",
		},
		[]string{"kind", "tier"},
	)
	retransmissions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatt_dispatch",
			Subsystem: "link",
			Name:      "retransmissions_total",
			Help:      "Link layer frames sent again after a missed acknowledgement.",
		},
	)
	confirmations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatt_dispatch",
			Subsystem: "att",
			Name:      "confirmations_total",
			Help:      "Handle value confirmations received.",
		},
	)
	confirmationTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatt_dispatch",
			Subsystem: "att",
			Name:      "confirmation_timeouts_total",
			Help:      "Indications that were never confirmed.",
		},
	)
	confirmationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gatt_dispatch",
			Subsystem: "att",
			Name:      "confirmation_latency_seconds",
			Help:      "Time from sending an indication to its confirmation.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)
	disconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatt_dispatch",
			Subsystem: "link",
			Name:      "disconnects_total",
			Help:      "Connections closed by reason.",
		},
		[]string{"reason"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			queueRequests,
			dispatched,
			retransmissions,
			confirmations,
			confirmationTimeouts,
			confirmationLatency,
			disconnects,
		)
	})
}

func RecordQueueRequest(kind, result string) {
	RegisterMetrics()
	queueRequests.WithLabelValues(kind, result).Inc()
}

func RecordDispatch(kind string, tier int) {
	RegisterMetrics()
	dispatched.WithLabelValues(kind, strconv.Itoa(tier)).Inc()
}

func RecordRetransmission() {
	RegisterMetrics()
	retransmissions.Inc()
}

func RecordConfirmation(latency time.Duration) {
	RegisterMetrics()
	confirmations.Inc()
	confirmationLatency.Observe(latency.Seconds())
}

func RecordConfirmationTimeout() {
	RegisterMetrics()
	confirmationTimeouts.Inc()
}

func RecordDisconnect(reason string) {
	RegisterMetrics()
	disconnects.WithLabelValues(reason).Inc()
}
