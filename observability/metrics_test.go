package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordQueueRequest(t *testing.T) {
	before := testutil.ToFloat64(queueRequests.WithLabelValues("indication", ResultRefused))

	RecordQueueRequest("indication", ResultRefused)
	RecordQueueRequest("indication", ResultRefused)
	RecordQueueRequest("notification", ResultQueued)

	got := testutil.ToFloat64(queueRequests.WithLabelValues("indication", ResultRefused))
	if got-before != 2 {
		t.Errorf("Expected 2 refused indications, got %v", got-before)
	}
}

func TestRecordDispatchLabelsTier(t *testing.T) {
	before := testutil.ToFloat64(dispatched.WithLabelValues("notification", "2"))
	RecordDispatch("notification", 2)
	if got := testutil.ToFloat64(dispatched.WithLabelValues("notification", "2")); got-before != 1 {
		t.Errorf("Expected one dispatch on tier 2, got %v", got-before)
	}
}

func TestRecordConfirmation(t *testing.T) {
	before := testutil.ToFloat64(confirmations)
	RecordConfirmation(20 * time.Millisecond)
	if got := testutil.ToFloat64(confirmations); got-before != 1 {
		t.Errorf("Expected one confirmation, got %v", got-before)
	}
	if testutil.CollectAndCount(confirmationLatency) != 1 {
		t.Error("Expected latency histogram to be collected")
	}
}

func TestRegisterMetricsIdempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	if err := prometheus.Register(disconnects); err == nil {
		t.Fatal("Expected disconnects to already be registered")
	}

	RecordDisconnect("supervision_timeout")
	RecordConfirmationTimeout()
	RecordRetransmission()
	if testutil.ToFloat64(disconnects.WithLabelValues("supervision_timeout")) < 1 {
		t.Error("Expected disconnect to be counted")
	}
}
