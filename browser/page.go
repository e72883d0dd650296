package browser

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"media_scrooper/canon"
	"media_scrooper/logging"
	"media_scrooper/models"
	"media_scrooper/retry"
)

// PageDriver is the page surface the rendered-DOM strategy uses. The
// convergence loop sees it as a scroll.Driver and scroll.Expander.
type PageDriver interface {
	RevealMore(ctx context.Context) (bool, error)
	CountLoadedItems(ctx context.Context) (int, error)
	Wait(ctx context.Context, d time.Duration) error
	ClickExpand(ctx context.Context) (bool, error)
	DismissConsent(ctx context.Context) bool
	NextURL() string
	Goto(ctx context.Context, url string) error
	CollectMedia(ctx context.Context) ([]models.RawMedia, error)
	// SniffedMedia returns the image and video responses received since
	// the last call.
	SniffedMedia() []models.RawMedia
	URL() string
	Close() error
}

// Opener opens a page on url. itemSelector, when set, is what
// CountLoadedItems counts; otherwise document height is used.
type Opener interface {
	Open(ctx context.Context, url, itemSelector string) (PageDriver, error)
}

var consentSelectors = []string{
	"button:has-text('Consent')",
	"button:text-is('Consent')",
	"button[id*='accept']",
	"button[class*='accept']",
	"button[class*='consent']",
	"#didomi-notice-agree-button",
	"#onetrust-accept-btn-handler",
	"button:has-text('Accept')",
	"button:has-text('Accept All')",
	"button:has-text('I Accept')",
	"button:has-text('Agree')",
	"button:has-text('OK')",
}

var loadMoreSelectors = []string{
	"button:has-text('Load More')",
	"button:has-text('Show More')",
	".load-more",
	"[class*='load-more']",
	"a[rel='next']",
}

const scrollToEndJS = `() => {
	const before = window.scrollY;
	window.scrollTo(0, document.body.scrollHeight);
	return window.scrollY > before;
}`

const countItemsJS = `(sel) => sel ? document.querySelectorAll(sel).length : document.body.scrollHeight`

const collectMediaJS = `() => {
	const items = [];
	const lazy = (img) => img.getAttribute('data-img-zoom-url') ||
		img.getAttribute('data-original') ||
		img.getAttribute('data-src') ||
		img.getAttribute('data-lazy-src') ||
		img.getAttribute('data-full-src') ||
		img.getAttribute('data-image') || '';
	document.querySelectorAll('img').forEach(img => {
		const src = lazy(img) || img.currentSrc || img.src || '';
		if (!src || src.startsWith('data:')) return;
		items.push({
			url: src,
			srcset: img.getAttribute('data-srcset') || img.getAttribute('srcset') || '',
			alt: img.alt || '',
			title: img.title || '',
			width: img.naturalWidth || img.width || 0,
			height: img.naturalHeight || img.height || 0,
			type: 'image'
		});
	});
	document.querySelectorAll('picture source[srcset]').forEach(source => {
		items.push({url: '', srcset: source.getAttribute('srcset'), alt: '', title: '', width: 0, height: 0, type: 'image'});
	});
	document.querySelectorAll('video').forEach(video => {
		const add = (u) => {
			if (u && u.startsWith('http')) {
				items.push({url: u, srcset: '', alt: video.getAttribute('aria-label') || '', title: '',
					width: video.videoWidth || 0, height: video.videoHeight || 0, type: 'video'});
			}
		};
		add(video.src);
		video.querySelectorAll('source').forEach(s => add(s.src));
	});
	document.querySelectorAll('meta[property="og:image"], meta[property="og:video"]').forEach(m => {
		const u = m.getAttribute('content');
		if (u) {
			items.push({url: u, srcset: '', alt: '', title: document.title || '', width: 0, height: 0,
				type: m.getAttribute('property') === 'og:video' ? 'video' : 'image'});
		}
	});
	return items;
}`

// Page wraps a playwright page.
type Page struct {
	page         playwright.Page
	itemSelector string
	log          logging.Logger
	retry        *retry.Manager
	navTimeout   time.Duration
	sniff        *sniffer
}

// listen starts recording media responses. It must run before the first
// navigation so the initial load is seen.
func (p *Page) listen() {
	p.sniff = newSniffer()
	p.page.OnResponse(func(resp playwright.Response) {
		p.sniff.observe(resp.URL(), resp.Headers()["content-type"], resp.Status(), p.page.URL())
	})
}

// Navigate loads url, retrying transient navigation failures.
func (p *Page) Navigate(ctx context.Context, url string, maxRetries int) error {
	return p.retry.Do(ctx, maxRetries, func(attempt int) error {
		_, err := p.page.Goto(url, playwright.PageGotoOptions{
			Timeout:   playwright.Float(float64(p.navTimeout.Milliseconds())),
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		})
		if err != nil {
			p.log.Warn("navigation failed", logging.String("url", url), logging.Int("attempt", attempt), logging.Error(err))
			return models.Transient(models.StrategyRendered, fmt.Errorf("navigate %s: %w", url, err))
		}
		return nil
	})
}

func (p *Page) RevealMore(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	res, err := p.page.Evaluate(scrollToEndJS)
	if err != nil {
		return false, models.Transient(models.StrategyRendered, err)
	}
	moved, _ := res.(bool)
	return moved, nil
}

func (p *Page) CountLoadedItems(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	res, err := p.page.Evaluate(countItemsJS, p.itemSelector)
	if err != nil {
		return 0, models.Transient(models.StrategyRendered, err)
	}
	return toInt(res), nil
}

// Wait pauses for d plus a little jitter so actions are not evenly spaced.
func (p *Page) Wait(ctx context.Context, d time.Duration) error {
	if d > 0 {
		d += time.Duration(rand.Int63n(int64(d)/4 + 1))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Page) ClickExpand(ctx context.Context) (bool, error) {
	return p.clickFirstVisible(ctx, loadMoreSelectors)
}

// DismissConsent clicks the first visible consent button, if any.
func (p *Page) DismissConsent(ctx context.Context) bool {
	clicked, _ := p.clickFirstVisible(ctx, consentSelectors)
	return clicked
}

func (p *Page) clickFirstVisible(ctx context.Context, selectors []string) (bool, error) {
	for _, selector := range selectors {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		btn := p.page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); !visible {
			continue
		}
		if disabled, _ := btn.GetAttribute("disabled"); disabled != "" {
			continue
		}
		p.log.Debug("clicking", logging.String("selector", selector))
		if err := btn.Click(); err != nil {
			return false, models.Transient(models.StrategyRendered, err)
		}
		return true, p.Wait(ctx, time.Second)
	}
	return false, nil
}

// NextURL returns the absolute rel=next target of the current page, or "".
func (p *Page) NextURL() string {
	link := p.page.Locator("a[rel='next'], link[rel='next']").First()
	if n, _ := link.Count(); n == 0 {
		return ""
	}
	href, err := link.GetAttribute("href")
	if err != nil || strings.TrimSpace(href) == "" {
		return ""
	}
	next, err := resolveHref(p.page.URL(), strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return next
}

func (p *Page) Goto(ctx context.Context, url string) error {
	return p.Navigate(ctx, url, 1)
}

func (p *Page) CollectMedia(ctx context.Context) ([]models.RawMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := p.page.Evaluate(collectMediaJS)
	if err != nil {
		return nil, models.Transient(models.StrategyRendered, fmt.Errorf("collect media: %w", err))
	}
	return parseCollected(res, p.page.URL()), nil
}

func (p *Page) SniffedMedia() []models.RawMedia {
	if p.sniff == nil {
		return nil
	}
	return p.sniff.drain()
}

func (p *Page) URL() string {
	return p.page.URL()
}

func (p *Page) Close() error {
	return p.page.Close()
}

// parseCollected turns the evaluate result into raw tuples. A bare srcset
// takes its widest entry as the URL.
func parseCollected(res interface{}, pageURL string) []models.RawMedia {
	list, _ := res.([]interface{})
	out := make([]models.RawMedia, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		raw := models.RawMedia{
			URL:        str(m["url"]),
			Descriptor: str(m["srcset"]),
			AltText:    str(m["alt"]),
			Title:      str(m["title"]),
			Width:      toInt(m["width"]),
			Height:     toInt(m["height"]),
			SourceURL:  pageURL,
		}
		if raw.URL == "" {
			raw.URL = canon.SelectDescriptor(raw.Descriptor, "")
		}
		if raw.URL == "" {
			continue
		}
		switch str(m["type"]) {
		case "video":
			raw.Kind = models.MediaKindVideo
		case "image":
			raw.Kind = models.MediaKindImage
		default:
			raw.Kind = models.KindFromURL(raw.URL)
		}
		out = append(out, raw)
	}
	return out
}

func str(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func toInt(v interface{}) int {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		var result int
		started := false
		for _, c := range val {
			if c >= '0' && c <= '9' {
				result = result*10 + int(c-'0')
				started = true
			} else if started {
				break
			}
		}
		return result
	default:
		return 0
	}
}
