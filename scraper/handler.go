package scraper

import (
	"context"

	"media_scrooper/models"
)

// SiteHandler supplies the declarative profile for one site and the
// strategies it can run. Site-specific selectors stay behind Strategy.
type SiteHandler interface {
	ID() string
	Profile() models.SiteProfile
	// Strategy returns the implementation for kind, or false if the site
	// has none.
	Strategy(kind models.StrategyKind) (Strategy, bool)
}

// Strategy obtains raw media tuples for a target. Implementations report
// failures with the models error kinds; returning an empty slice with a
// nil error means the target legitimately has no media for this method.
// Long-running strategies should also hand items to ec.Collect as they go
// so that a cancelled or failed attempt still yields a partial result.
type Strategy interface {
	Kind() models.StrategyKind
	TryExtract(ctx context.Context, ec *ExtractionContext) ([]models.RawMedia, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc struct {
	StrategyKind models.StrategyKind
	Fn           func(ctx context.Context, ec *ExtractionContext) ([]models.RawMedia, error)
}

func (f StrategyFunc) Kind() models.StrategyKind { return f.StrategyKind }

func (f StrategyFunc) TryExtract(ctx context.Context, ec *ExtractionContext) ([]models.RawMedia, error) {
	return f.Fn(ctx, ec)
}

// StaticHandler is a SiteHandler assembled from a profile and a fixed set of
// strategies.
type StaticHandler struct {
	Name       string
	SiteConfig models.SiteProfile
	Strategies map[models.StrategyKind]Strategy
}

func NewStaticHandler(id string, profile models.SiteProfile, strategies ...Strategy) *StaticHandler {
	h := &StaticHandler{
		Name:       id,
		SiteConfig: profile,
		Strategies: make(map[models.StrategyKind]Strategy, len(strategies)),
	}
	for _, s := range strategies {
		if s != nil {
			h.Strategies[s.Kind()] = s
		}
	}
	return h
}

func (h *StaticHandler) ID() string                  { return h.Name }
func (h *StaticHandler) Profile() models.SiteProfile { return h.SiteConfig }

func (h *StaticHandler) Strategy(kind models.StrategyKind) (Strategy, bool) {
	s, ok := h.Strategies[kind]
	return s, ok
}
