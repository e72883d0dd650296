package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"media_scrooper/browser"
	"media_scrooper/canon"
	"media_scrooper/config"
	"media_scrooper/handlers"
	"media_scrooper/httputil"
	"media_scrooper/logging"
	"media_scrooper/metrics"
	"media_scrooper/retry"
	"media_scrooper/scraper"
	"media_scrooper/services"
	"media_scrooper/storage"
)

var (
	logLevel string
	sitesDir string
)

var rootCmd = &cobra.Command{
	Use:          "media_scrooper",
	Short:        "media_scrooper extracts full-resolution media URLs from gallery and listing pages.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&sitesDir, "sites", "", "Directory of site YAML files (overrides SITES_DIR)")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type appOptions struct {
	// persist opens the SQLite run store and, when configured, the
	// Postgres download queue.
	persist   bool
	noBrowser bool
	// console logs human-readable lines to stderr.
	console bool
}

// app is everything a command needs, built from configuration.
type app struct {
	cfg      *config.Config
	log      logging.Logger
	registry *handlers.Registry
	runner   *scraper.Runner
	metrics  *metrics.Collector
	sqlite   *storage.SQLiteStore
	pg       *storage.PostgresStore

	closers []func()
}

func loadConfig() (*config.Config, error) {
	if sitesDir != "" {
		os.Setenv("SITES_DIR", sitesDir)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile, Console: opts.console, Stderr: opts.console})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func() {
		log.Sync()
		closeLog()
	})

	log.Info("loaded site configs", logging.Strings("sites", cfg.SiteIDs()))

	a.metrics = metrics.New(prometheus.DefaultRegisterer)
	clients := httputil.NewClients(httputil.Config{ProxyURL: cfg.HTTP.ProxyURL, UserAgent: cfg.HTTP.UserAgent}, log)

	launcher := browser.NewLauncher(browser.Config{
		Enabled:           cfg.Browser.Enabled && !opts.noBrowser,
		Headless:          cfg.Browser.Headless,
		UserDataDir:       cfg.Browser.UserDataDir,
		ProxyURL:          cfg.HTTP.ProxyURL,
		NavigationRetries: cfg.Browser.NavigationRetries,
	}, log)
	a.closers = append(a.closers, launcher.Close)

	a.registry, err = handlers.NewRegistry(handlers.Deps{
		Clients: clients,
		Browser: launcher,
		Reddit: handlers.RedditConfig{
			ClientID:     cfg.Reddit.ClientID,
			ClientSecret: cfg.Reddit.ClientSecret,
			UserAgent:    cfg.Reddit.UserAgent,
		},
		Log: log,
	}, cfg.Sites)
	if err != nil {
		a.Close()
		return nil, err
	}

	rc := scraper.RunnerConfig{
		Orchestrator: scraper.NewOrchestrator(canon.New(),
			scraper.WithLogger(log),
			scraper.WithMetrics(a.metrics),
			scraper.WithRetry(retry.NewManager(retry.DefaultConfig())),
		),
		Resolver: a.registry,
		Log:      log,
		Metrics:  a.metrics,
		Targets:  a.registry.Targets(),
	}

	if opts.persist {
		a.sqlite, err = storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		a.closers = append(a.closers, func() { a.sqlite.Close() })
		log.Info("sqlite database", logging.String("path", cfg.DBPath))
		rc.Store = a.sqlite
		rc.Resume = true

		if cfg.DatabaseURL != "" {
			a.pg, err = storage.NewPostgresStore(ctx, cfg.DatabaseURL)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
			}
			a.closers = append(a.closers, a.pg.Close)
			log.Info("download queue connected", logging.String("db", maskConnectionString(cfg.DatabaseURL)))
			rc.Queue = services.NewMediaService(a.pg, log)
		}
	}

	a.runner = scraper.NewRunner(rc)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// maskConnectionString hides the password of a database URL for logging.
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	return u.Redacted()
}
