package obs

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"robotrading/internal/resilient"
)

func TestOnCircuitStateDrivesGauge(t *testing.T) {
	r := NewReporter()

	r.OnCircuitState("feed", resilient.StateOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(CircuitOpen.WithLabelValues("feed")))

	r.OnCircuitState("feed", resilient.StateHalfOpen)
	assert.Equal(t, 0.0, testutil.ToFloat64(CircuitOpen.WithLabelValues("feed")))

	r.OnCircuitState("feed", resilient.StateClosed)
	assert.Equal(t, 0.0, testutil.ToFloat64(CircuitOpen.WithLabelValues("feed")))
}

func TestCacheEventsDriveCounters(t *testing.T) {
	r := NewReporter()

	hitsBefore := testutil.ToFloat64(CacheHits.WithLabelValues("prices"))
	missesBefore := testutil.ToFloat64(CacheMisses.WithLabelValues("prices"))

	r.OnCacheHit("prices")
	r.OnCacheHit("prices")
	r.OnCacheMiss("prices")

	assert.Equal(t, hitsBefore+2, testutil.ToFloat64(CacheHits.WithLabelValues("prices")))
	assert.Equal(t, missesBefore+1, testutil.ToFloat64(CacheMisses.WithLabelValues("prices")))
}

func TestOnAttemptCountsByOutcome(t *testing.T) {
	r := NewReporter()

	before := testutil.ToFloat64(CallAttempts.WithLabelValues("broker", "failure"))
	r.OnAttempt(resilient.Attempt{Service: "broker", Outcome: resilient.OutcomeFailure, Latency: 20 * time.Millisecond})
	assert.Equal(t, before+1, testutil.ToFloat64(CallAttempts.WithLabelValues("broker", "failure")))
}
