package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"media_scrooper/logging"
	"media_scrooper/metrics"
	"media_scrooper/models"
	"media_scrooper/scroll"
)

// ExtractionContext is the per-attempt state handed to a strategy. A fresh
// one is built for every attempt; only the orchestrator's seen set and the
// items already accumulated carry over between retries.
type ExtractionContext struct {
	Site      string
	TargetURL string
	Profile   models.SiteProfile
	Options   Options
	Strategy  models.StrategyKind
	Attempt   int
	Log       logging.Logger

	metrics *metrics.Collector
	resume  string
	limiter *rate.Limiter
	// have is how many candidates earlier attempts already accumulated.
	have int

	mu        sync.Mutex
	state     models.StrategyState
	position  string
	collected []models.RawMedia
	notes     []string
	sealed    bool
	paced     bool
}

func newExtractionContext(site, target string, profile models.SiteProfile, opts Options, kind models.StrategyKind, attempt int, log logging.Logger, m *metrics.Collector) *ExtractionContext {
	ec := &ExtractionContext{
		Site:      site,
		TargetURL: target,
		Profile:   profile,
		Options:   opts,
		Strategy:  kind,
		Attempt:   attempt,
		Log:       log.With(logging.String("strategy", string(kind)), logging.Int("attempt", attempt)),
		metrics:   m,
		resume:    opts.Cursor.PositionFor(kind),
		state:     models.StatePending,
	}
	if opts.PageDelay > 0 {
		ec.limiter = rate.NewLimiter(rate.Every(opts.PageDelay), 1)
	}
	return ec
}

// ResumePosition is the position from the caller's cursor if it was
// produced by this strategy, else "".
func (ec *ExtractionContext) ResumePosition() string {
	return ec.resume
}

// SetPosition records pagination progress. The last position set becomes
// the run's cursor.
func (ec *ExtractionContext) SetPosition(pos string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.sealed {
		return
	}
	ec.position = pos
}

func (ec *ExtractionContext) Cursor() models.Cursor {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return models.EncodeCursor(ec.Strategy, ec.position)
}

// Collect hands items to the orchestrator before TryExtract returns.
// Calls after the attempt has finished are ignored.
func (ec *ExtractionContext) Collect(raws ...models.RawMedia) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.sealed {
		return
	}
	ec.collected = append(ec.collected, raws...)
}

// Enough reports whether MaxFiles items are already in hand, counting
// earlier attempts. Paginating strategies stop early when it is true.
func (ec *ExtractionContext) Enough() bool {
	if ec.Options.MaxFiles <= 0 {
		return false
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.have+len(ec.collected) >= ec.Options.MaxFiles
}

// Note records a locally absorbed problem for the report.
func (ec *ExtractionContext) Note(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	ec.mu.Lock()
	if !ec.sealed {
		ec.notes = append(ec.notes, fmt.Sprintf("%s#%d: %s", ec.Strategy, ec.Attempt, msg))
	}
	ec.mu.Unlock()
	ec.Log.Debug("note", logging.String("detail", msg))
}

// Pace waits out the politeness delay between pagination steps. The first
// call returns immediately; later ones wait PageDelay plus up to half of it
// again as jitter.
func (ec *ExtractionContext) Pace(ctx context.Context) error {
	if ec.limiter == nil {
		return ctx.Err()
	}
	if err := ec.limiter.Wait(ctx); err != nil {
		return err
	}

	ec.mu.Lock()
	first := !ec.paced
	ec.paced = true
	ec.mu.Unlock()
	if first {
		return nil
	}

	jitter := time.Duration(rand.Int63n(int64(ec.Options.PageDelay)/2 + 1))
	t := time.NewTimer(jitter)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Converged records a convergence result for diagnostics.
func (ec *ExtractionContext) Converged(res scroll.Result) {
	ec.metrics.ObserveConvergence(ec.Site, res.ActionsTaken)
	if res.RevealErrors > 0 {
		ec.Note("%d reveal actions failed during convergence", res.RevealErrors)
	}
	ec.Log.Debug("convergence finished",
		logging.Int("actions", res.ActionsTaken),
		logging.Int("items", res.FinalItemCount),
		logging.String("reason", string(res.Reason)))
}

func (ec *ExtractionContext) State() models.StrategyState {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.state
}

func (ec *ExtractionContext) setState(s models.StrategyState) {
	ec.mu.Lock()
	ec.state = s
	ec.mu.Unlock()
}

// seal stops accepting items and returns what was gathered.
func (ec *ExtractionContext) seal() (collected []models.RawMedia, notes []string, position string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.sealed = true
	return ec.collected, ec.notes, ec.position
}
