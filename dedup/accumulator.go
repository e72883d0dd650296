// Package dedup collapses candidate lists on canonical URL. The first
// observation of a URL wins; later duplicates are dropped, never merged.
package dedup

import (
	"errors"

	"media_scrooper/canon"
	"media_scrooper/models"
)

type Canonicalizer interface {
	Canonicalize(raw, descriptor, base string, profile models.SiteProfile) (string, error)
}

// Seen is the set of canonical URLs already emitted in one extraction run.
type Seen map[string]struct{}

func NewSeen() Seen {
	return make(Seen)
}

func (s Seen) Has(key string) bool {
	_, ok := s[key]
	return ok
}

func (s Seen) Add(key string) {
	s[key] = struct{}{}
}

func (s Seen) Len() int {
	return len(s)
}

type Stats struct {
	Added      int
	Duplicates int
	Rejected   int
	Invalid    int
	Filtered   int
	// Capped counts candidates turned away because the limit was reached.
	Capped int
	Drops  map[DropReason]int
}

func (s *Stats) Merge(o Stats) {
	s.Added += o.Added
	s.Duplicates += o.Duplicates
	s.Rejected += o.Rejected
	s.Invalid += o.Invalid
	s.Filtered += o.Filtered
	s.Capped += o.Capped
	for k, v := range o.Drops {
		if s.Drops == nil {
			s.Drops = make(map[DropReason]int)
		}
		s.Drops[k] += v
	}
}

type Accumulator struct {
	canon   Canonicalizer
	profile models.SiteProfile
	filter  Filter

	// Limit caps the accumulated list. Zero means unlimited.
	Limit int
}

func New(c Canonicalizer, profile models.SiteProfile, filter Filter) *Accumulator {
	if filter.TrustedDomains == nil {
		filter.TrustedDomains = profile.TrustedDomains
	}
	filter.BlockedSegments = append(append([]string(nil), profile.BlockedSegments...), filter.BlockedSegments...)
	return &Accumulator{canon: c, profile: profile, filter: filter}
}

// Accumulate appends the incoming candidates that survive canonicalization,
// filtering and the seen check to existing, preserving input order. Once
// Limit is reached the rest are counted as capped and left unseen.
func (a *Accumulator) Accumulate(existing, incoming []*models.MediaCandidate, seen Seen) ([]*models.MediaCandidate, Stats) {
	var stats Stats
	if seen == nil {
		seen = NewSeen()
	}
	for _, c := range existing {
		if c.HasCanonical() {
			seen.Add(c.CanonicalURL())
		}
	}

	out := existing[:len(existing):len(existing)]
	for _, c := range incoming {
		if c == nil {
			continue
		}
		if !c.HasCanonical() {
			key, err := a.canon.Canonicalize(c.URL, c.Descriptor, c.SourceURL, a.profile)
			if err != nil {
				if errors.Is(err, canon.ErrRejected) {
					stats.Rejected++
				} else {
					stats.Invalid++
				}
				continue
			}
			if err := c.SetCanonicalURL(key); err != nil {
				stats.Invalid++
				continue
			}
		}

		if reason := a.filter.Check(c); reason != DropNone {
			stats.Filtered++
			if stats.Drops == nil {
				stats.Drops = make(map[DropReason]int)
			}
			stats.Drops[reason]++
			continue
		}

		key := c.CanonicalURL()
		if seen.Has(key) {
			stats.Duplicates++
			continue
		}
		if a.Full(out) {
			stats.Capped++
			continue
		}
		seen.Add(key)
		out = append(out, c)
		stats.Added++
	}

	return out, stats
}

// Full reports whether list has reached the limit.
func (a *Accumulator) Full(list []*models.MediaCandidate) bool {
	return a.Limit > 0 && len(list) >= a.Limit
}

// AccumulateRaw validates raw tuples into candidates and accumulates them.
func (a *Accumulator) AccumulateRaw(existing []*models.MediaCandidate, raws []models.RawMedia, seen Seen) ([]*models.MediaCandidate, Stats) {
	var (
		incoming = make([]*models.MediaCandidate, 0, len(raws))
		invalid  int
	)
	for _, r := range raws {
		c, err := models.NewCandidate(r)
		if err != nil {
			invalid++
			continue
		}
		incoming = append(incoming, c)
	}

	out, stats := a.Accumulate(existing, incoming, seen)
	stats.Invalid += invalid
	return out, stats
}
