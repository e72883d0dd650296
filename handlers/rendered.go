package handlers

import (
	"context"

	"media_scrooper/browser"
	"media_scrooper/logging"
	"media_scrooper/models"
	"media_scrooper/scraper"
	"media_scrooper/scroll"
)

// RenderedStrategy loads the target in a real browser, scrolls it until the
// content stops growing, then reads the media out of the live DOM.
type RenderedStrategy struct {
	opener       browser.Opener
	itemSelector string
}

func NewRenderedStrategy(opener browser.Opener, itemSelector string) *RenderedStrategy {
	return &RenderedStrategy{opener: opener, itemSelector: itemSelector}
}

func (s *RenderedStrategy) Kind() models.StrategyKind { return models.StrategyRendered }

func (s *RenderedStrategy) TryExtract(ctx context.Context, ec *scraper.ExtractionContext) ([]models.RawMedia, error) {
	if s.opener == nil {
		return nil, models.Capability(models.StrategyRendered, "no browser available")
	}

	start := ec.ResumePosition()
	if start == "" {
		start = ec.TargetURL
	}

	page, err := s.opener.Open(ctx, start, s.itemSelector)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if page.DismissConsent(ctx) {
		ec.Log.Debug("consent dismissed")
	}

	for n := 0; n < ec.Options.MaxPages; n++ {
		res, err := scroll.Converge(ctx, page, ec.Options.Convergence)
		ec.Converged(res)
		if err != nil {
			return nil, err
		}

		items, err := page.CollectMedia(ctx)
		if err != nil {
			return nil, err
		}
		ec.Collect(items...)
		var sniffed []models.RawMedia
		if ec.Options.CaptureNetwork {
			sniffed = page.SniffedMedia()
			ec.Collect(sniffed...)
		}
		ec.Log.Debug("rendered page collected",
			logging.String("page", page.URL()),
			logging.Int("items", len(items)),
			logging.Int("sniffed", len(sniffed)),
			logging.Int("loaded", res.FinalItemCount))

		next := page.NextURL()
		ec.SetPosition(next)
		if next == "" || n+1 >= ec.Options.MaxPages || ec.Enough() {
			break
		}
		if err := ec.Pace(ctx); err != nil {
			return nil, err
		}
		if err := page.Goto(ctx, next); err != nil {
			ec.Note("next page %s failed: %v", next, err)
			return nil, nil
		}
	}
	return nil, nil
}
