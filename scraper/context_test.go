package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media_scrooper/logging"
	"media_scrooper/models"
)

func pacedContext(delay time.Duration) *ExtractionContext {
	opts := testOptions()
	opts.PageDelay = delay
	return newExtractionContext("example", testTarget, models.SiteProfile{}, opts, models.StrategyStatic, 1, logging.NewNop(), nil)
}

func TestPace_FirstCallDoesNotWait(t *testing.T) {
	ec := pacedContext(200 * time.Millisecond)

	start := time.Now()
	require.NoError(t, ec.Pace(t.Context()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	start = time.Now()
	require.NoError(t, ec.Pace(t.Context()))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestPace_NoDelayOnlyChecksContext(t *testing.T) {
	ec := pacedContext(0)
	require.NoError(t, ec.Pace(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, ec.Pace(ctx), context.Canceled)
}

func TestPace_CancelledWhileWaiting(t *testing.T) {
	ec := pacedContext(time.Hour)
	require.NoError(t, ec.Pace(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, ec.Pace(ctx))
}
