package httputil

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"

	"media_scrooper/logging"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Config struct {
	ProxyURL  string
	UserAgent string
}

type Clients struct {
	Scraping *resty.Client // proxied, for target sites
	API      *resty.Client // direct, for site APIs
}

func NewClients(cfg Config, log logging.Logger) *Clients {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if log == nil {
		log = logging.NewNop()
	}

	scraping := resty.New()
	scraping.SetTransport(&http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	})
	if cfg.ProxyURL != "" {
		scraping.SetProxy(cfg.ProxyURL)
	}
	if jar, err := cookiejar.New(nil); err == nil {
		scraping.SetCookieJar(jar)
	}
	scraping.SetTimeout(15 * time.Second)
	scraping.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	scraping.SetHeaders(map[string]string{
		"User-Agent":      cfg.UserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	})
	instrument(scraping, log.With(logging.String("client", "scraping")))

	api := resty.New()
	api.SetTimeout(30 * time.Second)
	api.SetHeader("User-Agent", cfg.UserAgent)
	instrument(api, log.With(logging.String("client", "api")))

	return &Clients{Scraping: scraping, API: api}
}

func instrument(client *resty.Client, log logging.Logger) {
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		log.Debug("request done",
			logging.String("method", res.Request.Method),
			logging.String("url", res.Request.URL),
			logging.Int("status", res.StatusCode()),
			logging.Duration("elapsed", res.Time()))
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		log.Debug("request failed",
			logging.String("method", req.Method),
			logging.String("url", req.URL),
			logging.Error(err))
	})
}
