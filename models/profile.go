package models

import "strings"

type RuleOutcome int

const (
	RuleNoop RuleOutcome = iota
	RuleRewrite
	RuleReject
)

func (o RuleOutcome) String() string {
	switch o {
	case RuleRewrite:
		return "rewrite"
	case RuleReject:
		return "reject"
	default:
		return "noop"
	}
}

// Rule is a pure string transform over an absolute media URL. Apply must
// replace to fixed values so that applying it twice changes nothing.
type Rule interface {
	Name() string
	Apply(raw string) (string, RuleOutcome)
}

// RuleGroup is an ordered set of rules for one source. Within a group the
// first rule that fires wins; groups are applied in sequence.
type RuleGroup struct {
	Name string
	// Hosts are domain suffixes; empty matches every host.
	Hosts []string
	Rules []Rule
	// KeepQuery lists query keys that change image identity for this source.
	KeepQuery []string
}

func (g RuleGroup) MatchesHost(host string) bool {
	if len(g.Hosts) == 0 {
		return true
	}
	for _, h := range g.Hosts {
		if HostMatches(host, h) {
			return true
		}
	}
	return false
}

// SiteProfile is the declarative, read-only description of one target site.
type SiteProfile struct {
	Name              string
	TrustedDomains    []string
	RuleGroups        []RuleGroup
	IdentityQueryKeys []string
	BlockedSegments   []string
	StrategyOrder     []StrategyKind
}

// Order returns the preferred strategy order with duplicates removed,
// falling back to DefaultStrategyOrder.
func (p SiteProfile) Order() []StrategyKind {
	if len(p.StrategyOrder) == 0 {
		return DefaultStrategyOrder
	}
	seen := make(map[StrategyKind]bool, len(p.StrategyOrder))
	order := make([]StrategyKind, 0, len(p.StrategyOrder))
	for _, k := range p.StrategyOrder {
		if seen[k] {
			continue
		}
		seen[k] = true
		order = append(order, k)
	}
	return order
}

func (p SiteProfile) IsTrusted(host string) bool {
	for _, d := range p.TrustedDomains {
		if HostMatches(host, d) {
			return true
		}
	}
	return false
}

// HostMatches reports whether host equals domain or is a subdomain of it.
// A leading "www." on either side is ignored.
func HostMatches(host, domain string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	if domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
