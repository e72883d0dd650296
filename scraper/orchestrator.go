package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"media_scrooper/dedup"
	"media_scrooper/logging"
	"media_scrooper/metrics"
	"media_scrooper/models"
	"media_scrooper/retry"
)

// ErrAllStrategiesFailed is returned when every strategy was skipped or
// failed and none came back empty. Partial results are still returned.
var ErrAllStrategiesFailed = errors.New("all strategies failed")

// abandonGrace is how long a timed-out attempt gets to notice its
// cancelled context before the next attempt starts.
const abandonGrace = 5 * time.Second

// Orchestrator tries a site's strategies in preference order and returns
// the first non-empty result. It keeps no state between calls.
type Orchestrator struct {
	canon   dedup.Canonicalizer
	retry   *retry.Manager
	log     logging.Logger
	metrics *metrics.Collector
}

type Option func(*Orchestrator)

func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithRetry(m *retry.Manager) Option {
	return func(o *Orchestrator) { o.retry = m }
}

func NewOrchestrator(c dedup.Canonicalizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		canon: c,
		retry: retry.NewManager(retry.DefaultConfig()),
		log:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type strategyRun struct {
	attempt models.StrategyAttempt
	items   []*models.MediaCandidate
	cursor  models.Cursor
	err     error
}

// Extract produces the media list for one target. The report is always
// non-nil. Errors are returned only for malformed input, cancellation and
// the all-strategies-failed case; candidates gathered before any of those
// are returned alongside the error.
func (o *Orchestrator) Extract(ctx context.Context, targetURL string, h SiteHandler, opts Options) ([]*models.MediaCandidate, *models.ExtractionReport, error) {
	opts = opts.normalized()
	report := models.NewReport(h.ID(), targetURL)
	log := o.log.With(logging.String("site", h.ID()), logging.String("run_id", report.RunID.String()))

	finish := func(items []*models.MediaCandidate, err error) ([]*models.MediaCandidate, *models.ExtractionReport, error) {
		report.FinishedAt = time.Now()
		report.Candidates = len(items)
		if err != nil {
			report.Error = err.Error()
		}
		o.metrics.AddCandidates(h.ID(), len(items))
		log.Info("extraction finished",
			logging.String("target", targetURL),
			logging.Int("candidates", len(items)),
			logging.String("winner", string(report.Winner)),
			logging.Bool("partial", report.Partial),
			logging.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
		return items, report, err
	}

	target, err := validateTarget(targetURL)
	if err != nil {
		return finish(nil, err)
	}
	if _, _, err := models.DecodeCursor(opts.Cursor); err != nil {
		return finish(nil, err)
	}

	profile := h.Profile()
	acc := dedup.New(o.canon, profile, dedup.Filter{
		MinWidth:       opts.MinWidth,
		MinHeight:      opts.MinHeight,
		SameDomainOnly: opts.SameDomainOnly,
		TargetHost:     target.Hostname(),
	})
	acc.Limit = opts.MaxFiles

	var (
		partial  *strategyRun
		anyEmpty bool
	)
	for _, kind := range profile.Order() {
		if ctx.Err() != nil {
			break
		}

		strat, ok := h.Strategy(kind)
		if !ok {
			report.Strategies = append(report.Strategies, models.StrategyAttempt{
				Kind:    kind,
				Outcome: models.OutcomeSkipped,
				Errors:  []string{"no implementation for this site"},
			})
			continue
		}

		run := o.runStrategy(ctx, log, h.ID(), targetURL, profile, opts, strat, acc, report)
		report.Strategies = append(report.Strategies, run.attempt)

		switch run.attempt.Outcome {
		case models.OutcomeSucceeded:
			report.Winner = kind
			report.Cursor = run.cursor
			return finish(run.items, nil)
		case models.OutcomeEmpty:
			anyEmpty = true
		case models.OutcomeCancelled:
			if len(run.items) > 0 {
				partial = &run
			}
		case models.OutcomeFailed:
			if models.KindOf(run.err) == models.ErrorKindMalformed {
				if len(run.items) > 0 {
					report.Partial = true
					report.Cursor = run.cursor
				}
				return finish(run.items, run.err)
			}
		}

		if len(run.items) > 0 && partial == nil {
			partial = &run
		}
	}

	var items []*models.MediaCandidate
	if partial != nil {
		items = partial.items
		report.Partial = true
		report.Cursor = partial.cursor
	}

	if err := ctx.Err(); err != nil {
		return finish(items, err)
	}
	if anyEmpty {
		return finish(items, nil)
	}
	return finish(items, ErrAllStrategiesFailed)
}

func (o *Orchestrator) runStrategy(
	ctx context.Context,
	log logging.Logger,
	site, target string,
	profile models.SiteProfile,
	opts Options,
	s Strategy,
	acc *dedup.Accumulator,
	report *models.ExtractionReport,
) strategyRun {
	start := time.Now()
	kind := s.Kind()
	run := strategyRun{attempt: models.StrategyAttempt{Kind: kind}}
	seen := dedup.NewSeen()

	for attempt := 1; ; attempt++ {
		run.attempt.Attempts = attempt
		ec := newExtractionContext(site, target, profile, opts, kind, attempt, log, o.metrics)
		ec.have = len(run.items)

		raws, err := o.attempt(ctx, s, ec, opts.PerStrategyTimeout)

		collected, notes, pos := ec.seal()
		report.Notes = append(report.Notes, notes...)
		run.cursor = models.EncodeCursor(kind, pos)

		var stats dedup.Stats
		run.items, stats = acc.AccumulateRaw(run.items, append(collected, raws...), seen)
		o.recordStats(site, report, stats)

		if err != nil && ctx.Err() == nil && acc.Full(run.items) {
			report.Notes = append(report.Notes, fmt.Sprintf("%s#%d: stopped at max files after: %v", kind, attempt, err))
			err = nil
		}

		if err == nil {
			if len(run.items) > 0 {
				run.attempt.Outcome = models.OutcomeSucceeded
			} else {
				run.attempt.Outcome = models.OutcomeEmpty
			}
			break
		}

		run.attempt.Errors = append(run.attempt.Errors, err.Error())
		if ctx.Err() != nil {
			run.attempt.Outcome = models.OutcomeCancelled
			run.err = ctx.Err()
			break
		}

		errKind := models.KindOf(err)
		log.Warn("strategy attempt failed",
			logging.String("strategy", string(kind)),
			logging.Int("attempt", attempt),
			logging.String("kind", string(errKind)),
			logging.Error(err))

		if errKind == models.ErrorKindCapability {
			run.attempt.Outcome = models.OutcomeSkipped
			run.err = err
			break
		}
		if !o.retry.ShouldRetry(attempt, opts.MaxRetries, errKind) {
			run.attempt.Outcome = models.OutcomeFailed
			run.err = err
			break
		}

		run.attempt.Retries++
		if err := o.retry.Wait(ctx, attempt); err != nil {
			run.attempt.Outcome = models.OutcomeCancelled
			run.err = err
			break
		}
	}

	run.attempt.Candidates = len(run.items)
	run.attempt.Duration = time.Since(start)
	o.metrics.ObserveStrategy(site, string(kind), string(run.attempt.Outcome), run.attempt.Duration)
	log.Info("strategy finished",
		logging.String("strategy", string(kind)),
		logging.String("outcome", string(run.attempt.Outcome)),
		logging.Int("attempts", run.attempt.Attempts),
		logging.Int("candidates", run.attempt.Candidates))
	return run
}

// attempt runs one TryExtract under its own timeout. The orchestrator
// waits for it; the goroutine exists only so a strategy that ignores its
// context cannot hold the run past the timeout.
func (o *Orchestrator) attempt(ctx context.Context, s Strategy, ec *ExtractionContext, timeout time.Duration) ([]models.RawMedia, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		raws []models.RawMedia
		err  error
	}
	done := make(chan result, 1)

	ec.setState(models.StateRunning)
	go func() {
		raws, err := s.TryExtract(actx, ec)
		done <- result{raws: raws, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			ec.setState(models.StateFailed)
			if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
				return r.raws, models.Transient(s.Kind(), fmt.Errorf("attempt timed out after %s: %w", timeout, r.err))
			}
			return r.raws, r.err
		}
		ec.setState(models.StateSucceeded)
		return r.raws, nil
	case <-actx.Done():
		cancel()
		ec.setState(models.StateFailed)
		var late []models.RawMedia
		select {
		case r := <-done:
			late = r.raws
		case <-time.After(abandonGrace):
			ec.Log.Warn("strategy did not stop after its context ended")
		}
		if err := ctx.Err(); err != nil {
			return late, err
		}
		return late, models.Transient(s.Kind(), fmt.Errorf("attempt timed out after %s", timeout))
	}
}

func (o *Orchestrator) recordStats(site string, report *models.ExtractionReport, stats dedup.Stats) {
	report.Rejected += stats.Rejected
	report.Filtered += stats.Filtered
	report.Duplicates += stats.Duplicates
	report.Capped += stats.Capped
	for reason, n := range stats.Drops {
		o.metrics.AddDropped(site, string(reason), n)
	}
	o.metrics.AddDropped(site, "rejected", stats.Rejected)
	o.metrics.AddDropped(site, "invalid", stats.Invalid)
	o.metrics.AddDropped(site, "capped", stats.Capped)
}

func validateTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty target url", models.ErrMalformedInput)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedInput, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: target %q is not an absolute http(s) url", models.ErrMalformedInput, raw)
	}
	return u, nil
}
