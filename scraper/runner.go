package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"media_scrooper/logging"
	"media_scrooper/metrics"
	"media_scrooper/models"
)

// Resolver maps a target URL to the handler for its site.
type Resolver interface {
	Resolve(targetURL string) (SiteHandler, error)
}

// RunStore persists run records, run logs and resume cursors.
type RunStore interface {
	CreateRun(run *models.ExtractionRun) (int64, error)
	UpdateRun(run *models.ExtractionRun) error
	Log(runID *int64, level models.LogLevel, message, siteID string) error
	UpdateSiteStats(siteID string) error
	GetCursor(siteID, targetURL string) (models.Cursor, error)
	SetCursor(siteID, targetURL string, c models.Cursor) error
	ClearCursor(siteID, targetURL string) error
	TouchCursor(siteID, targetURL string) error
}

// MediaQueue receives the candidates of a run for downloading.
type MediaQueue interface {
	Enqueue(ctx context.Context, runID uuid.UUID, siteID string, items []*models.MediaCandidate) (int, error)
}

// Target is a configured URL the runner visits on every scheduled pass.
type Target struct {
	Site    string
	URL     string
	Options Options
}

type Result struct {
	Candidates []*models.MediaCandidate `json:"candidates"`
	Report     *models.ExtractionReport `json:"report"`
}

type RunnerConfig struct {
	Orchestrator *Orchestrator
	Resolver     Resolver
	Store        RunStore
	Queue        MediaQueue
	Log          logging.Logger
	Metrics      *metrics.Collector
	Targets      []Target
	// Resume loads the saved cursor when the caller did not pass one.
	Resume bool
}

// Runner wraps the orchestrator with handler resolution, persistence and
// the download queue hand-off. Store and Queue are optional.
type Runner struct {
	orch     *Orchestrator
	resolver Resolver
	store    RunStore
	queue    MediaQueue
	log      logging.Logger
	metrics  *metrics.Collector
	targets  []Target
	resume   bool

	mu     sync.Mutex
	paused bool
}

func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Log == nil {
		cfg.Log = logging.NewNop()
	}
	if cfg.Orchestrator == nil {
		panic("scraper: runner needs an orchestrator")
	}
	return &Runner{
		orch:     cfg.Orchestrator,
		resolver: cfg.Resolver,
		store:    cfg.Store,
		queue:    cfg.Queue,
		log:      cfg.Log,
		metrics:  cfg.Metrics,
		targets:  cfg.Targets,
		resume:   cfg.Resume,
	}
}

// Extract runs one target end to end. The result is non-nil whenever the
// orchestrator ran, including on error.
func (r *Runner) Extract(ctx context.Context, targetURL string, opts Options) (*Result, error) {
	h, err := r.resolver.Resolve(targetURL)
	if err != nil {
		return nil, err
	}
	site := h.ID()

	if opts.Cursor == "" && r.resume && r.store != nil {
		c, err := r.store.GetCursor(site, targetURL)
		if err != nil {
			r.log.Warn("load cursor failed", logging.String("site", site), logging.Error(err))
		} else {
			opts.Cursor = c
		}
	}

	run := &models.ExtractionRun{
		SiteID:    site,
		TargetURL: targetURL,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if r.store != nil {
		id, err := r.store.CreateRun(run)
		if err != nil {
			r.log.Warn("create run record failed", logging.String("site", site), logging.Error(err))
		} else {
			run.ID = id
		}
	}
	r.logRun(run, models.LogLevelInfo, fmt.Sprintf("Extracting %s", targetURL))

	items, report, extractErr := r.orch.Extract(ctx, targetURL, h, opts)

	r.finishRun(run, report)
	r.saveCursor(site, targetURL, report, extractErr)

	if len(items) > 0 && r.queue != nil {
		// Detached so a cancelled run still hands off what it gathered.
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		n, err := r.queue.Enqueue(qctx, report.RunID, site, items)
		cancel()
		if err != nil {
			r.logRun(run, models.LogLevelError, fmt.Sprintf("Enqueue failed: %v", err))
		} else {
			r.metrics.AddQueued(site, n)
		}
	}

	if extractErr != nil {
		r.logRun(run, models.LogLevelError, fmt.Sprintf("Extraction error: %v", extractErr))
	} else {
		r.logRun(run, models.LogLevelInfo,
			fmt.Sprintf("Completed: %d candidates via %s, %d duplicates, %d filtered",
				report.Candidates, report.Winner, report.Duplicates, report.Filtered))
	}

	return &Result{Candidates: items, Report: report}, extractErr
}

func (r *Runner) finishRun(run *models.ExtractionRun, report *models.ExtractionReport) {
	finished := report.FinishedAt
	run.RunID = report.RunID.String()
	run.FinishedAt = &finished
	run.Status = report.Status()
	run.Winner = string(report.Winner)
	run.Candidates = report.Candidates
	for _, a := range report.Strategies {
		if a.Outcome != models.OutcomeSkipped {
			run.ErrorsCount += len(a.Errors)
		}
	}
	if data, err := json.Marshal(report); err == nil {
		run.Report = data
	}

	r.metrics.ObserveRun(run.SiteID, string(run.Status))
	if r.store == nil || run.ID == 0 {
		return
	}
	if err := r.store.UpdateRun(run); err != nil {
		r.log.Warn("update run record failed", logging.Error(err))
	}
	if err := r.store.UpdateSiteStats(run.SiteID); err != nil {
		r.log.Warn("update site stats failed", logging.Error(err))
	}
}

// saveCursor keeps the resume point for the next run. A run that ends
// cleanly without a new cursor has nothing left to resume, so the old one is
// dropped. A failed run keeps the previous cursor but restarts its rest
// period.
func (r *Runner) saveCursor(site, target string, report *models.ExtractionReport, extractErr error) {
	if r.store == nil {
		return
	}
	var err error
	switch {
	case report.Cursor != "":
		err = r.store.SetCursor(site, target, report.Cursor)
	case extractErr == nil:
		err = r.store.ClearCursor(site, target)
	default:
		err = r.store.TouchCursor(site, target)
	}
	if err != nil {
		r.log.Warn("save cursor failed", logging.String("site", site), logging.Error(err))
	}
}

// RunTargets visits every configured target in order. Per-target errors
// are logged, not returned.
func (r *Runner) RunTargets(ctx context.Context) error {
	if r.IsPaused() {
		r.log.Info("runner is paused, skipping run")
		return nil
	}
	for _, t := range r.targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.runTarget(ctx, t)
	}
	return nil
}

func (r *Runner) RunSite(ctx context.Context, siteID string) error {
	found := false
	for _, t := range r.targets {
		if t.Site != siteID {
			continue
		}
		found = true
		if err := ctx.Err(); err != nil {
			return err
		}
		r.runTarget(ctx, t)
	}
	if !found {
		return fmt.Errorf("no targets configured for site: %s", siteID)
	}
	return nil
}

// RunTarget runs url with its configured options, or the defaults when it
// is not a configured target.
func (r *Runner) RunTarget(ctx context.Context, url string) error {
	for _, t := range r.targets {
		if t.URL == url {
			return r.runTarget(ctx, t)
		}
	}
	return r.runTarget(ctx, Target{URL: url, Options: DefaultOptions()})
}

func (r *Runner) runTarget(ctx context.Context, t Target) error {
	_, err := r.Extract(ctx, t.URL, t.Options)
	if err != nil && !errors.Is(err, context.Canceled) {
		r.log.Error("target failed", logging.String("site", t.Site), logging.String("target", t.URL), logging.Error(err))
	}
	return err
}

func (r *Runner) HandleCommand(ctx context.Context, cmd *models.Command) error {
	var params models.CommandParams
	if len(cmd.Params) > 0 && string(cmd.Params) != "null" {
		if err := json.Unmarshal(cmd.Params, &params); err != nil {
			return fmt.Errorf("parse params for %s: %w", cmd.Command, err)
		}
	}

	switch cmd.Command {
	case models.CmdExtractAll:
		return r.RunTargets(ctx)
	case models.CmdExtractSite:
		if params.Site != "" {
			return r.RunSite(ctx, params.Site)
		}
		return r.RunTargets(ctx)
	case models.CmdExtractTarget:
		if params.Target == "" {
			return fmt.Errorf("%s needs a target", cmd.Command)
		}
		return r.RunTarget(ctx, params.Target)
	case models.CmdResetCursor:
		if r.store == nil {
			return nil
		}
		return r.store.ClearCursor(params.Site, params.Target)
	case models.CmdPause:
		r.setPaused(true)
		r.log.Info("runner paused")
	case models.CmdResume:
		r.setPaused(false)
		r.log.Info("runner resumed")
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
	return nil
}

func (r *Runner) IsPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

func (r *Runner) setPaused(p bool) {
	r.mu.Lock()
	r.paused = p
	r.mu.Unlock()
}

func (r *Runner) Targets() []Target {
	return r.targets
}

// Status is the runner state served on /status.
type Status struct {
	Paused  bool     `json:"paused"`
	Targets []string `json:"targets"`
}

func (r *Runner) Status() Status {
	st := Status{Paused: r.IsPaused()}
	for _, t := range r.targets {
		st.Targets = append(st.Targets, t.URL)
	}
	return st
}

func (r *Runner) logRun(run *models.ExtractionRun, level models.LogLevel, message string) {
	fields := []logging.Field{logging.String("site", run.SiteID), logging.String("target", run.TargetURL)}
	switch level {
	case models.LogLevelError:
		r.log.Error(message, fields...)
	case models.LogLevelWarn:
		r.log.Warn(message, fields...)
	default:
		r.log.Info(message, fields...)
	}
	if r.store == nil {
		return
	}
	var runID *int64
	if run.ID != 0 {
		runID = &run.ID
	}
	if err := r.store.Log(runID, level, message, run.SiteID); err != nil {
		r.log.Debug("persist log failed", logging.Error(err))
	}
}
