package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"media_scrooper/config"
	"media_scrooper/logging"
	"media_scrooper/models"
	"media_scrooper/storage"
)

// Runner is the part of scraper.Runner the scheduler drives.
type Runner interface {
	RunTargets(ctx context.Context) error
	RunTarget(ctx context.Context, url string) error
	HandleCommand(ctx context.Context, cmd *models.Command) error
}

// Store is the command inbox and cursor table.
type Store interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
	TargetsWithCursor() ([]storage.CursorTarget, error)
}

const (
	defaultCommandPoll = 2 * time.Second
	defaultResumePoll  = time.Minute
	// defaultResumeDelay is how long an interrupted target rests before the
	// scheduler picks it up again from its cursor.
	defaultResumeDelay = 15 * time.Minute
)

type Scheduler struct {
	cfg    config.SchedulerConfig
	runner Runner
	store  Store
	log    logging.Logger
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
	stop   sync.Once

	commandPoll time.Duration
	resumePoll  time.Duration
	resumeDelay time.Duration

	// busy serialises scheduled, resumed and commanded runs.
	busy sync.Mutex

	// resumed records when each cursor was last picked up, so a target
	// whose run cannot move its cursor still waits out resumeDelay.
	resumed map[string]time.Time
}

func New(cfg config.SchedulerConfig, runner Runner, store Store, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Scheduler{
		cfg:         cfg,
		runner:      runner,
		store:       store,
		log:         log,
		cron:        cron.New(),
		stopCh:      make(chan struct{}),
		commandPoll: defaultCommandPoll,
		resumePoll:  defaultResumePoll,
		resumeDelay: defaultResumeDelay,
		resumed:     make(map[string]time.Time),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.store != nil {
		go s.pollCommands(ctx)
		go s.pollResumes(ctx)
	}

	if s.cfg.Cron != "" {
		s.log.Info("starting scheduler", logging.String("cron", s.cfg.Cron))
		_, err := s.cron.AddFunc(s.cfg.Cron, func() { s.runScheduled(ctx) })
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		s.log.Info("starting scheduler", logging.Duration("interval", s.cfg.Interval))
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runScheduled(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		s.log.Info("no schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	s.stop.Do(func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}

// TriggerNow runs every target immediately, waiting for any run in
// progress.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	s.busy.Lock()
	defer s.busy.Unlock()
	return s.runner.RunTargets(ctx)
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	if !s.busy.TryLock() {
		s.log.Warn("previous run still in progress, skipping tick")
		return
	}
	defer s.busy.Unlock()
	if err := s.runner.RunTargets(ctx); err != nil {
		s.log.Error("scheduled run error", logging.Error(err))
	}
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(s.commandPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) processCommands(ctx context.Context) {
	cmds, err := s.store.GetPendingCommands()
	if err != nil {
		s.log.Error("error getting commands", logging.Error(err))
		return
	}

	for _, cmd := range cmds {
		s.log.Info("processing command", logging.String("command", string(cmd.Command)))
		if err := s.handleCommand(ctx, &cmd); err != nil {
			s.log.Error("command error", logging.String("command", string(cmd.Command)), logging.Error(err))
		}
		if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
			s.log.Error("error marking command processed", logging.Error(err))
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdPause, models.CmdResume, models.CmdResetCursor:
		return s.runner.HandleCommand(ctx, cmd)
	default:
		s.busy.Lock()
		defer s.busy.Unlock()
		return s.runner.HandleCommand(ctx, cmd)
	}
}

func (s *Scheduler) pollResumes(ctx context.Context) {
	ticker := time.NewTicker(s.resumePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.resumeDue(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// resumeDue reruns targets whose cursor has rested for resumeDelay. The
// runner loads the saved cursor itself.
func (s *Scheduler) resumeDue(ctx context.Context) {
	targets, err := s.store.TargetsWithCursor()
	if err != nil {
		s.log.Error("error checking cursors", logging.Error(err))
		return
	}

	for _, t := range targets {
		key := t.SiteID + " " + t.TargetURL
		if time.Since(t.UpdatedAt) < s.resumeDelay || time.Since(s.resumed[key]) < s.resumeDelay {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if !s.busy.TryLock() {
			return
		}
		s.resumed[key] = time.Now()
		s.log.Info("resuming target", logging.String("site", t.SiteID), logging.String("target", t.TargetURL))
		if err := s.runner.RunTarget(ctx, t.TargetURL); err != nil {
			s.log.Warn("resume error", logging.String("target", t.TargetURL), logging.Error(err))
		}
		s.busy.Unlock()
	}
}
