package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSyncCounters(t *testing.T) {
	before := testutil.ToFloat64(SyncProducts.WithLabelValues("upserted"))
	SyncProducts.WithLabelValues("upserted").Add(3)
	after := testutil.ToFloat64(SyncProducts.WithLabelValues("upserted"))

	if after-before != 3 {
		t.Errorf("expected counter to grow by 3, got %f", after-before)
	}
}

func TestCircuitBreakerStateGauge(t *testing.T) {
	CircuitBreakerState.WithLabelValues("test").Set(2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test")); got != 2 {
		t.Errorf("expected gauge 2, got %f", got)
	}
}
