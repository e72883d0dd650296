package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Counts(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.ObserveStrategy("generic", "api", "skipped", time.Millisecond)
	c.ObserveStrategy("generic", "api", "skipped", time.Millisecond)
	c.AddCandidates("generic", 3)
	c.AddDropped("generic", "too_small", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.StrategyAttempts.WithLabelValues("generic", "api", "skipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.CandidatesTotal.WithLabelValues("generic")))
	assert.Equal(t, 0, testutil.CollectAndCount(c.DroppedTotal))
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveStrategy("s", "api", "failed", time.Second)
		c.AddCandidates("s", 1)
		c.ObserveRun("s", "completed")
		c.ObserveConvergence("s", 4)
		c.AddQueued("s", 2)
	})
}
