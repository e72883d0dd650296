// Package canon computes the canonical, highest-resolution form of a
// discovered media URL. Everything here is a pure string transform: no
// network access, no randomness.
package canon

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"media_scrooper/models"
)

// ErrRejected is returned when a rule decides a URL cannot be upgraded
// safely and must be dropped.
var ErrRejected = errors.New("rejected by rewrite rule")

// maxPasses bounds the fixpoint loop. Each pass applies every matching
// group once, so this only matters when one rewrite enables another.
const maxPasses = 4

// Canonicalizer holds the built-in rule registry. It is never mutated after
// New and is safe for concurrent use.
type Canonicalizer struct {
	groups []models.RuleGroup
}

// New builds a canonicalizer with the built-in source rules followed by
// extra groups.
func New(extra ...models.RuleGroup) *Canonicalizer {
	groups := append(BuiltinGroups(), extra...)
	return &Canonicalizer{groups: groups}
}

// NewWithGroups builds a canonicalizer that knows only the given groups.
func NewWithGroups(groups ...models.RuleGroup) *Canonicalizer {
	return &Canonicalizer{groups: append([]models.RuleGroup(nil), groups...)}
}

// Canonicalize picks the best entry from descriptor (falling back to raw),
// normalizes it, and applies the source rules for its host plus the
// profile's own rules until the result is stable. Descriptor entries are
// relative to base, the document they appeared in; raw stands in when base
// is empty.
func (c *Canonicalizer) Canonicalize(raw, descriptor, base string, profile models.SiteProfile) (string, error) {
	raw = strings.TrimSpace(raw)
	chosen := SelectDescriptor(descriptor, raw)
	if chosen == "" {
		return "", fmt.Errorf("%w: empty url", models.ErrMalformedInput)
	}
	if base = strings.TrimSpace(base); base == "" {
		base = raw
	}
	if chosen != raw && base != "" {
		if abs, err := resolve(chosen, base); err == nil {
			chosen = abs
		}
	}

	current, err := normalize(chosen, nil, true)
	if err != nil {
		return "", err
	}

	for pass := 0; pass < maxPasses; pass++ {
		next, err := c.pass(current, profile)
		if err != nil {
			return "", err
		}
		if next == current {
			break
		}
		current = next
	}

	return current, nil
}

func (c *Canonicalizer) pass(in string, profile models.SiteProfile) (string, error) {
	u, err := url.Parse(in)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrMalformedInput, err)
	}
	host := u.Hostname()

	keep := append([]string(nil), profile.IdentityQueryKeys...)
	out := in

	apply := func(groups []models.RuleGroup) error {
		for _, g := range groups {
			if !g.MatchesHost(host) {
				continue
			}
			keep = append(keep, g.KeepQuery...)
			for _, r := range g.Rules {
				res, outcome := r.Apply(out)
				if outcome == models.RuleReject {
					return fmt.Errorf("%w: %s", ErrRejected, r.Name())
				}
				if outcome == models.RuleRewrite {
					out = res
					break
				}
			}
		}
		return nil
	}

	if err := apply(c.groups); err != nil {
		return "", err
	}
	if err := apply(profile.RuleGroups); err != nil {
		return "", err
	}

	return normalize(out, keep, false)
}

// Normalize applies only the universal normalization: lowercase scheme and
// host, default port and fragment removed, query removed except keep.
func Normalize(raw string, keep ...string) (string, error) {
	return normalize(strings.TrimSpace(raw), keep, false)
}

// normalize keeps the whole query when keepAll is set so that rules can
// still read size parameters before they are stripped.
func normalize(raw string, keep []string, keepAll bool) (string, error) {
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrMalformedInput, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", models.ErrMalformedInput, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", models.ErrMalformedInput, raw)
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}

	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	if !keepAll {
		u.RawQuery = filterQuery(u.Query(), keep)
	}

	return u.String(), nil
}

func filterQuery(q url.Values, keep []string) string {
	if len(keep) == 0 || len(q) == 0 {
		return ""
	}
	kept := url.Values{}
	for _, k := range keep {
		if vals, ok := q[k]; ok {
			v := append([]string(nil), vals...)
			sort.Strings(v)
			kept[k] = v
		}
	}
	return kept.Encode()
}

func resolve(ref, base string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
