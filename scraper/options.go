package scraper

import (
	"time"

	"media_scrooper/models"
	"media_scrooper/scroll"
)

const (
	DefaultMaxPages           = 1
	DefaultMaxRetries         = 2
	DefaultPerStrategyTimeout = 90 * time.Second
)

// Options are the per-call tunables. Start from DefaultOptions: the zero
// value means zero retries.
type Options struct {
	MaxPages           int
	MaxRetries         int
	PerStrategyTimeout time.Duration
	MinWidth           int
	MinHeight          int
	// PageDelay is the politeness wait between pagination steps; jitter of
	// up to half of it is added.
	PageDelay      time.Duration
	SameDomainOnly bool
	// MaxFiles caps the candidates one run returns. Zero means unlimited.
	MaxFiles int
	// CaptureNetwork adds image and video responses seen by the browser
	// to the rendered strategy's results.
	CaptureNetwork bool
	Convergence    scroll.Options
	// Cursor resumes a previous run.
	Cursor models.Cursor
}

func DefaultOptions() Options {
	return Options{
		MaxPages:           DefaultMaxPages,
		MaxRetries:         DefaultMaxRetries,
		PerStrategyTimeout: DefaultPerStrategyTimeout,
		PageDelay:          time.Second,
		Convergence:        scroll.DefaultOptions(),
	}
}

func (o Options) normalized() Options {
	if o.MaxPages < 1 {
		o.MaxPages = 1
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.PerStrategyTimeout <= 0 {
		o.PerStrategyTimeout = DefaultPerStrategyTimeout
	}
	if o.PageDelay < 0 {
		o.PageDelay = 0
	}
	if o.MinWidth < 0 {
		o.MinWidth = 0
	}
	if o.MinHeight < 0 {
		o.MinHeight = 0
	}
	if o.MaxFiles < 0 {
		o.MaxFiles = 0
	}
	return o
}
