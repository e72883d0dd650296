package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"media_scrooper/canon"
	"media_scrooper/models"
	"media_scrooper/scraper"
)

type Config struct {
	Scheduler   SchedulerConfig
	Browser     BrowserConfig
	Reddit      RedditConfig
	HTTP        HTTPConfig
	MetricsAddr string
	DBPath      string
	DatabaseURL string
	LogLevel    string
	LogFile     string
	SitesDir    string
	Sites       map[string]*SiteConfig
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type BrowserConfig struct {
	Enabled           bool
	Headless          bool
	UserDataDir       string
	NavigationRetries int
}

type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
}

type HTTPConfig struct {
	ProxyURL  string
	UserAgent string
}

type SiteConfig struct {
	ID                string      `yaml:"id"`
	Name              string      `yaml:"name"`
	Hosts             []string    `yaml:"hosts"`
	Handler           string      `yaml:"handler"`
	Strategies        []string    `yaml:"strategies"`
	TrustedDomains    []string    `yaml:"trusted_domains"`
	BlockedSegments   []string    `yaml:"blocked_segments"`
	IdentityQueryKeys []string    `yaml:"identity_query_keys"`
	Rules             []RuleGroup `yaml:"rules"`
	Targets           []string    `yaml:"targets"`
	ItemSelector      string      `yaml:"item_selector"`
	Options           SiteOptions `yaml:"options"`
}

// RuleGroup is a named set of regex rules applied to media on Hosts.
type RuleGroup struct {
	Name      string     `yaml:"name"`
	Hosts     []string   `yaml:"hosts"`
	KeepQuery []string   `yaml:"keep_query"`
	Patterns  []RuleSpec `yaml:"patterns"`
}

type RuleSpec struct {
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
	Reject  bool `yaml:"reject"`
}

// SiteOptions override scraper defaults. Zero values keep the default,
// except MaxRetries which is a pointer so 0 can be set explicitly.
type SiteOptions struct {
	MaxPages             int  `yaml:"max_pages"`
	MaxRetries           *int `yaml:"max_retries"`
	PerStrategyTimeoutMS int  `yaml:"per_strategy_timeout_ms"`
	MinWidth             int  `yaml:"min_width"`
	MinHeight            int  `yaml:"min_height"`
	PageDelayMS          int  `yaml:"page_delay_ms"`
	MaxActions           int  `yaml:"max_actions"`
	ActionDelayMS        int  `yaml:"action_delay_ms"`
	StabilityThreshold   int  `yaml:"stability_threshold"`
	SameDomainOnly       bool `yaml:"same_domain_only"`
	MaxFiles             int  `yaml:"max_files"`
	CaptureNetwork       bool `yaml:"capture_network"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SCRAPE_CRON"),
			Interval: getEnvDuration("SCRAPE_INTERVAL", 0),
		},
		Browser: BrowserConfig{
			Enabled:           getEnvBool("BROWSER_ENABLED", true),
			Headless:          getEnvBool("BROWSER_HEADLESS", true),
			UserDataDir:       os.Getenv("BROWSER_DATA_DIR"),
			NavigationRetries: getEnvInt("BROWSER_NAV_RETRIES", 2),
		},
		Reddit: RedditConfig{
			ClientID:     os.Getenv("REDDIT_CLIENT_ID"),
			ClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
			UserAgent:    getEnv("REDDIT_USER_AGENT", "media_scrooper/1.0"),
		},
		HTTP: HTTPConfig{
			ProxyURL:  os.Getenv("HTTP_PROXY_URL"),
			UserAgent: os.Getenv("HTTP_USER_AGENT"),
		},
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		DBPath:      getEnv("DB_PATH", "scraper.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     os.Getenv("LOG_FILE"),
		SitesDir:    getEnv("SITES_DIR", "config/sites"),
	}

	sites, err := LoadSites(cfg.SitesDir)
	if err != nil {
		return nil, err
	}
	cfg.Sites = sites
	return cfg, nil
}

// LoadSites reads every *.yaml / *.yml file in dir. A missing directory
// yields no sites.
func LoadSites(dir string) (map[string]*SiteConfig, error) {
	sites := make(map[string]*SiteConfig)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return sites, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if site.ID == "" {
			return nil, fmt.Errorf("%s: site id is required", path)
		}
		if _, dup := sites[site.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate site id %q", path, site.ID)
		}
		if _, err := site.Profile(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		sites[site.ID] = &site
	}

	return sites, nil
}

// SiteIDs returns the configured site IDs sorted.
func (c *Config) SiteIDs() []string {
	ids := make([]string, 0, len(c.Sites))
	for id := range c.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Profile compiles the site's declarative settings.
func (s *SiteConfig) Profile() (models.SiteProfile, error) {
	p := models.SiteProfile{
		Name:              s.Name,
		TrustedDomains:    s.TrustedDomains,
		IdentityQueryKeys: s.IdentityQueryKeys,
		BlockedSegments:   s.BlockedSegments,
	}
	if p.Name == "" {
		p.Name = s.ID
	}

	for _, name := range s.Strategies {
		kind, err := models.ParseStrategyKind(name)
		if err != nil {
			return models.SiteProfile{}, err
		}
		p.StrategyOrder = append(p.StrategyOrder, kind)
	}

	for i, g := range s.Rules {
		group := models.RuleGroup{Name: g.Name, Hosts: g.Hosts, KeepQuery: g.KeepQuery}
		if group.Name == "" {
			group.Name = fmt.Sprintf("%s-rules-%d", s.ID, i)
		}
		for j, spec := range g.Patterns {
			name := fmt.Sprintf("%s#%d", group.Name, j)
			var (
				rule models.Rule
				err  error
			)
			if spec.Reject {
				rule, err = canon.CompileReject(name, spec.Pattern)
			} else {
				rule, err = canon.CompileRegex(name, spec.Pattern, spec.Replace)
			}
			if err != nil {
				return models.SiteProfile{}, fmt.Errorf("rule %s: %w", name, err)
			}
			group.Rules = append(group.Rules, rule)
		}
		p.RuleGroups = append(p.RuleGroups, group)
	}
	return p, nil
}

// ScraperOptions applies the site's overrides to the scraper defaults.
func (s *SiteConfig) ScraperOptions() scraper.Options {
	o := scraper.DefaultOptions()
	so := s.Options
	if so.MaxPages > 0 {
		o.MaxPages = so.MaxPages
	}
	if so.MaxRetries != nil {
		o.MaxRetries = *so.MaxRetries
	}
	if so.PerStrategyTimeoutMS > 0 {
		o.PerStrategyTimeout = time.Duration(so.PerStrategyTimeoutMS) * time.Millisecond
	}
	if so.PageDelayMS > 0 {
		o.PageDelay = time.Duration(so.PageDelayMS) * time.Millisecond
	}
	if so.MaxActions > 0 {
		o.Convergence.MaxActions = so.MaxActions
	}
	if so.ActionDelayMS > 0 {
		o.Convergence.ActionDelay = time.Duration(so.ActionDelayMS) * time.Millisecond
	}
	if so.StabilityThreshold > 0 {
		o.Convergence.StabilityThreshold = so.StabilityThreshold
	}
	o.MinWidth = so.MinWidth
	o.MinHeight = so.MinHeight
	o.SameDomainOnly = so.SameDomainOnly
	o.MaxFiles = so.MaxFiles
	o.CaptureNetwork = so.CaptureNetwork
	return o
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
