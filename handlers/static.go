package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"media_scrooper/canon"
	"media_scrooper/logging"
	"media_scrooper/models"
	"media_scrooper/scraper"
)

var lazyImageAttrs = []string{"data-src", "data-original", "data-lazy-src", "data-full-src", "src"}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif"}

// StaticStrategy fetches plain HTML and follows rel=next links.
type StaticStrategy struct {
	client *resty.Client
}

func NewStaticStrategy(client *resty.Client) *StaticStrategy {
	return &StaticStrategy{client: client}
}

func (s *StaticStrategy) Kind() models.StrategyKind { return models.StrategyStatic }

// TryExtract hands every page's media to ec.Collect and returns nil
// items, so a failure on a later page keeps what earlier pages found.
func (s *StaticStrategy) TryExtract(ctx context.Context, ec *scraper.ExtractionContext) ([]models.RawMedia, error) {
	if s.client == nil {
		return nil, models.Capability(models.StrategyStatic, "no http client configured")
	}

	next := ec.ResumePosition()
	if next == "" {
		next = ec.TargetURL
	}
	visited := make(map[string]bool)

	for page := 0; page < ec.Options.MaxPages && next != ""; page++ {
		if err := ec.Pace(ctx); err != nil {
			return nil, err
		}

		current := next
		visited[current] = true
		items, following, err := s.fetchPage(ctx, current)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			ec.Note("page %s failed: %v", current, err)
			ec.SetPosition(current)
			return nil, nil
		}

		ec.Collect(items...)
		ec.Log.Debug("static page parsed",
			logging.String("page", current),
			logging.Int("items", len(items)))

		next = ""
		if following != "" && !visited[following] {
			next = following
		}
		ec.SetPosition(next)
		if ec.Enough() {
			break
		}
	}
	return nil, nil
}

func (s *StaticStrategy) fetchPage(ctx context.Context, pageURL string) ([]models.RawMedia, string, error) {
	resp, err := s.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", models.Transient(models.StrategyStatic, fmt.Errorf("get %s: %w", pageURL, err))
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, "", models.Capability(models.StrategyStatic, "access denied (%d) for %s", code, pageURL)
	case code == http.StatusNotFound || code == http.StatusGone:
		return nil, "", nil
	case code >= 400:
		return nil, "", models.Transient(models.StrategyStatic, fmt.Errorf("get %s: status %d", pageURL, code))
	}

	final := pageURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		final = resp.RawResponse.Request.URL.String()
	}

	ct := strings.ToLower(resp.Header().Get("Content-Type"))
	if strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/") {
		kind := models.MediaKindImage
		if strings.HasPrefix(ct, "video/") {
			kind = models.MediaKindVideo
		}
		return []models.RawMedia{{URL: final, Kind: kind, SourceURL: final}}, "", nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, "", models.Transient(models.StrategyStatic, fmt.Errorf("parse %s: %w", pageURL, err))
	}
	return ExtractMedia(doc, final), NextLink(doc, final), nil
}

// ExtractMedia lists the media referenced by a parsed document, grouped by
// element type. URLs are left relative; SourceURL is set to pageURL.
func ExtractMedia(doc *goquery.Document, pageURL string) []models.RawMedia {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	var out []models.RawMedia
	add := func(raw models.RawMedia) {
		raw.URL = strings.TrimSpace(raw.URL)
		if raw.URL == "" && raw.Descriptor == "" {
			return
		}
		if strings.HasPrefix(raw.URL, "data:") {
			return
		}
		if raw.URL == "" {
			raw.URL = canon.SelectDescriptor(raw.Descriptor, "")
		}
		raw.SourceURL = pageURL
		out = append(out, raw)
	}

	doc.Find("meta[property='og:image'], meta[property='og:image:url']").Each(func(_ int, s *goquery.Selection) {
		u, _ := s.Attr("content")
		add(models.RawMedia{URL: u, Kind: models.MediaKindImage, Title: title})
	})
	doc.Find("meta[property='og:video'], meta[property='og:video:url']").Each(func(_ int, s *goquery.Selection) {
		u, _ := s.Attr("content")
		add(models.RawMedia{URL: u, Kind: models.MediaKindVideo, Title: title})
	})

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		var src string
		for _, attr := range lazyImageAttrs {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
				src = v
				break
			}
		}
		srcset := s.AttrOr("data-srcset", s.AttrOr("srcset", ""))
		add(models.RawMedia{
			URL:        src,
			Descriptor: srcset,
			Kind:       models.MediaKindImage,
			AltText:    strings.TrimSpace(s.AttrOr("alt", "")),
			Title:      strings.TrimSpace(s.AttrOr("title", "")),
			Width:      atoi(s.AttrOr("width", "")),
			Height:     atoi(s.AttrOr("height", "")),
		})
	})

	doc.Find("picture source[srcset]").Each(func(_ int, s *goquery.Selection) {
		add(models.RawMedia{Descriptor: s.AttrOr("srcset", ""), Kind: models.MediaKindImage})
	})

	doc.Find("video").Each(func(_ int, s *goquery.Selection) {
		if src := s.AttrOr("src", ""); src != "" {
			add(models.RawMedia{URL: src, Kind: models.MediaKindVideo, Title: s.AttrOr("title", "")})
		}
		s.Find("source[src]").Each(func(_ int, src *goquery.Selection) {
			add(models.RawMedia{URL: src.AttrOr("src", ""), Kind: models.MediaKindVideo})
		})
		if poster := s.AttrOr("poster", ""); poster != "" {
			add(models.RawMedia{URL: poster, Kind: models.MediaKindImage})
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if isImageLink(href) {
			add(models.RawMedia{URL: href, Kind: models.MediaKindImage, Title: strings.TrimSpace(s.AttrOr("title", ""))})
		}
	})

	return out
}

// NextLink returns the absolute rel=next target, or "".
func NextLink(doc *goquery.Document, pageURL string) string {
	href, ok := doc.Find("link[rel='next'], a[rel='next']").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func isImageLink(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n := 0
	for _, c := range strings.TrimSpace(s) {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}
