// Package browser drives a real Chromium through playwright for the
// rendered-DOM strategy.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"media_scrooper/logging"
	"media_scrooper/models"
	"media_scrooper/retry"
)

// ErrDisabled is returned by Open when the browser is turned off in
// configuration. Strategies treat it as a missing capability.
var ErrDisabled = errors.New("browser disabled")

type Config struct {
	Enabled     bool
	Headless    bool
	UserDataDir string
	ProxyURL    string
	// NavigationTimeout bounds a single page load.
	NavigationTimeout time.Duration
	// NavigationRetries is how many times a failed first load is retried.
	NavigationRetries int
}

// Launcher owns one persistent browser context and hands out pages on it.
// The browser starts lazily on the first Open.
type Launcher struct {
	cfg   Config
	log   logging.Logger
	retry *retry.Manager

	mu          sync.Mutex
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	initialized bool
}

func NewLauncher(cfg Config, log logging.Logger) *Launcher {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 60 * time.Second
	}
	if cfg.UserDataDir == "" {
		cwd, _ := os.Getwd()
		cfg.UserDataDir = filepath.Join(cwd, "browser_data")
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Launcher{
		cfg:   cfg,
		log:   log.With(logging.String("component", "browser")),
		retry: retry.NewManager(retry.DefaultConfig()),
	}
}

func (l *Launcher) ensureBrowser() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	var err error
	l.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(l.cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if l.cfg.ProxyURL != "" {
		opts.Proxy = &playwright.Proxy{Server: l.cfg.ProxyURL}
	}

	l.context, err = l.pw.Chromium.LaunchPersistentContext(l.cfg.UserDataDir, opts)
	if err != nil {
		l.pw.Stop()
		l.pw = nil
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	l.initialized = true
	l.log.Info("browser started", logging.Bool("headless", l.cfg.Headless))
	return nil
}

// Open creates a page and navigates it to target. A browser that cannot
// start is a missing capability, a failed navigation is transient.
func (l *Launcher) Open(ctx context.Context, target, itemSelector string) (PageDriver, error) {
	if !l.cfg.Enabled {
		return nil, models.Capability(models.StrategyRendered, "%v", ErrDisabled)
	}
	if err := l.ensureBrowser(); err != nil {
		return nil, models.Capability(models.StrategyRendered, "%v", err)
	}

	l.mu.Lock()
	bctx := l.context
	l.mu.Unlock()

	pg, err := bctx.NewPage()
	if err != nil {
		return nil, models.Transient(models.StrategyRendered, fmt.Errorf("failed to create page: %w", err))
	}

	p := &Page{
		page:         pg,
		itemSelector: itemSelector,
		log:          l.log.With(logging.String("url", target)),
		retry:        l.retry,
		navTimeout:   l.cfg.NavigationTimeout,
	}
	p.listen()
	if err := p.Navigate(ctx, target, l.cfg.NavigationRetries); err != nil {
		pg.Close()
		return nil, err
	}
	return p, nil
}

func (l *Launcher) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.context != nil {
		l.context.Close()
		l.context = nil
	}
	if l.pw != nil {
		l.pw.Stop()
		l.pw = nil
	}
	l.initialized = false
}

func resolveHref(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	h, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(h).String(), nil
}
