// Package handlers holds the extraction strategies and the registry that
// assembles them into per-site handlers from configuration.
package handlers

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"media_scrooper/browser"
	"media_scrooper/config"
	"media_scrooper/httputil"
	"media_scrooper/logging"
	"media_scrooper/models"
	"media_scrooper/scraper"
)

const genericSiteID = "generic"

// Deps are the shared resources strategies are built on. Browser may be
// nil, in which case rendered strategies report a missing capability.
type Deps struct {
	Clients *httputil.Clients
	Browser browser.Opener
	Reddit  RedditConfig
	Log     logging.Logger
}

type site struct {
	hosts   []string
	handler *scraper.StaticHandler
	config  *config.SiteConfig
}

// Registry resolves target URLs to site handlers by host. URLs on no
// configured host go to the generic handler.
type Registry struct {
	sites    []*site
	byID     map[string]*site
	fallback *site
	log      logging.Logger
}

func NewRegistry(deps Deps, sites map[string]*config.SiteConfig) (*Registry, error) {
	if deps.Log == nil {
		deps.Log = logging.NewNop()
	}
	if deps.Clients == nil {
		deps.Clients = httputil.NewClients(httputil.Config{}, deps.Log)
	}

	r := &Registry{byID: make(map[string]*site), log: deps.Log}

	all := make(map[string]*config.SiteConfig, len(sites)+2)
	for id, sc := range sites {
		all[id] = sc
	}
	if _, ok := all["reddit"]; !ok {
		all["reddit"] = &config.SiteConfig{
			ID:      "reddit",
			Name:    "Reddit",
			Handler: "reddit",
			Hosts:   []string{"reddit.com", "redd.it"},
		}
	}
	if _, ok := all[genericSiteID]; !ok {
		all[genericSiteID] = &config.SiteConfig{ID: genericSiteID, Name: "Generic", Handler: "generic"}
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		sc := all[id]
		h, err := buildHandler(deps, sc)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", id, err)
		}
		s := &site{hosts: sc.Hosts, handler: h, config: sc}
		r.sites = append(r.sites, s)
		r.byID[id] = s
		deps.Log.Debug("site registered",
			logging.String("site", id),
			logging.String("handler", sc.Handler),
			logging.Strings("hosts", sc.Hosts))
	}
	r.fallback = r.byID[genericSiteID]
	return r, nil
}

func buildHandler(deps Deps, sc *config.SiteConfig) (*scraper.StaticHandler, error) {
	profile, err := sc.Profile()
	if err != nil {
		return nil, err
	}

	static := NewStaticStrategy(deps.Clients.Scraping)
	rendered := NewRenderedStrategy(deps.Browser, sc.ItemSelector)

	var strategies []scraper.Strategy
	switch strings.ToLower(sc.Handler) {
	case "", "generic":
		strategies = []scraper.Strategy{rendered, static}
	case "reddit":
		strategies = []scraper.Strategy{NewRedditStrategy(deps.Clients.API, deps.Reddit), rendered, static}
	case "static":
		strategies = []scraper.Strategy{static}
	case "browser", "rendered":
		strategies = []scraper.Strategy{rendered}
	default:
		return nil, fmt.Errorf("unknown handler %q", sc.Handler)
	}
	return scraper.NewStaticHandler(sc.ID, profile, strategies...), nil
}

// Resolve implements scraper.Resolver.
func (r *Registry) Resolve(targetURL string) (scraper.SiteHandler, error) {
	u, err := url.Parse(strings.TrimSpace(targetURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: not an http(s) url: %q", models.ErrMalformedInput, targetURL)
	}

	host := u.Hostname()
	for _, s := range r.sites {
		for _, h := range s.hosts {
			if models.HostMatches(host, h) {
				return s.handler, nil
			}
		}
	}
	return r.fallback.handler, nil
}

// Site returns the handler registered under id.
func (r *Registry) Site(id string) (scraper.SiteHandler, bool) {
	s, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return s.handler, true
}

// Sites lists the registered site IDs in order.
func (r *Registry) Sites() []string {
	ids := make([]string, 0, len(r.sites))
	for _, s := range r.sites {
		ids = append(ids, s.handler.ID())
	}
	return ids
}

// Hosts returns the hosts a site claims.
func (r *Registry) Hosts(id string) []string {
	if s, ok := r.byID[id]; ok {
		return s.hosts
	}
	return nil
}

// Targets returns every configured target with its site's options.
func (r *Registry) Targets() []scraper.Target {
	var out []scraper.Target
	for _, s := range r.sites {
		for _, t := range s.config.Targets {
			out = append(out, scraper.Target{
				Site:    s.handler.ID(),
				URL:     t,
				Options: s.config.ScraperOptions(),
			})
		}
	}
	return out
}

// Options returns the scraper options for the site that would handle
// targetURL, or the defaults.
func (r *Registry) Options(targetURL string) scraper.Options {
	h, err := r.Resolve(targetURL)
	if err != nil {
		return scraper.DefaultOptions()
	}
	return r.byID[h.ID()].config.ScraperOptions()
}
