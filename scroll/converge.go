// Package scroll drives a page through repeated "reveal more" actions until
// the amount of loaded content stops growing.
package scroll

import (
	"context"
	"time"
)

// Driver is the subset of a page the convergence loop needs.
type Driver interface {
	// RevealMore performs one reveal action (scroll to end, click a
	// "load more" control). It reports whether an action was performed.
	RevealMore(ctx context.Context) (bool, error)
	// CountLoadedItems returns the current item count or content height.
	CountLoadedItems(ctx context.Context) (int, error)
	Wait(ctx context.Context, d time.Duration) error
}

// Expander is implemented by drivers that can click an explicit
// pagination or expand control as an interaction fallback.
type Expander interface {
	ClickExpand(ctx context.Context) (bool, error)
}

type Reason string

const (
	ReasonStable     Reason = "stable"
	ReasonMaxActions Reason = "max_actions"
	ReasonCancelled  Reason = "cancelled"
)

type Options struct {
	MaxActions         int
	ActionDelay        time.Duration
	StabilityThreshold int
}

func DefaultOptions() Options {
	return Options{
		MaxActions:         20,
		ActionDelay:        500 * time.Millisecond,
		StabilityThreshold: 3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxActions <= 0 {
		o.MaxActions = d.MaxActions
	}
	if o.ActionDelay < 0 {
		o.ActionDelay = 0
	}
	if o.StabilityThreshold <= 0 {
		o.StabilityThreshold = d.StabilityThreshold
	}
	return o
}

type Result struct {
	ActionsTaken   int
	InitialCount   int
	FinalItemCount int
	Stopped        bool
	Reason         Reason
	RevealErrors   int
	CountErrors    int
	FallbacksTried int
	FallbackGrowth int
}

// Converge repeats reveal actions until the count has not grown for
// StabilityThreshold consecutive actions or MaxActions is reached.
// When a streak reaches the threshold and the driver is an Expander, one
// interaction fallback is tried; growth from it resets the streak.
// Reveal and count failures count as "no growth"; only cancellation of
// ctx ends the loop early, returning the counts gathered so far.
func Converge(ctx context.Context, d Driver, opts Options) (Result, error) {
	opts = opts.withDefaults()
	res := Result{Stopped: true}

	last, err := d.CountLoadedItems(ctx)
	if err != nil {
		res.CountErrors++
		last = 0
	}
	res.InitialCount = last
	res.FinalItemCount = last

	expander, canExpand := d.(Expander)
	streak := 0

	for res.ActionsTaken < opts.MaxActions {
		if err := ctx.Err(); err != nil {
			res.Reason = ReasonCancelled
			return res, err
		}

		if _, err := d.RevealMore(ctx); err != nil {
			res.RevealErrors++
		}
		res.ActionsTaken++

		if err := d.Wait(ctx, opts.ActionDelay); err != nil {
			res.Reason = ReasonCancelled
			return res, err
		}

		current, grew := countGrowth(ctx, d, last, &res)
		if grew {
			last = current
			res.FinalItemCount = current
			streak = 0
			continue
		}

		streak++
		if streak < opts.StabilityThreshold {
			continue
		}

		if canExpand {
			res.FallbacksTried++
			clicked, err := expander.ClickExpand(ctx)
			if err == nil && clicked {
				if err := d.Wait(ctx, opts.ActionDelay); err != nil {
					res.Reason = ReasonCancelled
					return res, err
				}
				if current, grew := countGrowth(ctx, d, last, &res); grew {
					res.FallbackGrowth++
					last = current
					res.FinalItemCount = current
					streak = 0
					continue
				}
			}
		}

		res.Reason = ReasonStable
		return res, nil
	}

	res.Reason = ReasonMaxActions
	return res, nil
}

func countGrowth(ctx context.Context, d Driver, last int, res *Result) (int, bool) {
	current, err := d.CountLoadedItems(ctx)
	if err != nil {
		res.CountErrors++
		return last, false
	}
	return current, current > last
}
