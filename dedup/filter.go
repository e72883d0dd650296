package dedup

import (
	"net/url"
	"strings"

	"media_scrooper/models"
)

// nonContentPatterns match tracking pixels and site chrome rather than media.
var nonContentPatterns = []string{
	"/ads/",
	"/advertisement",
	"/pixel",
	"/tracker",
	"/tracking",
	"/cdn-cgi/",
	"/favicon",
	"/icon",
	"/logo",
	"/avatar",
	"spacer.gif",
	"pixel.gif",
	"transparent.gif",
}

var cdnIndicators = []string{
	"cloudfront.net",
	"cloudflare.com",
	"akamaihd.net",
	"fastly.net",
	"googleapis.com",
	"gstatic.com",
	"cdninstagram.com",
	"twimg.com",
	"imgix.net",
}

var cdnPrefixes = []string{"cdn.", "static.", "assets.", "media.", "content.", "images."}

// IsCDNHost reports whether host looks like a content delivery host.
func IsCDNHost(host string) bool {
	host = strings.ToLower(host)
	for _, d := range cdnIndicators {
		if models.HostMatches(host, d) {
			return true
		}
	}
	for _, p := range cdnPrefixes {
		if strings.HasPrefix(host, p) {
			return true
		}
	}
	return false
}

// Filter is the dedup-adjacent drop policy. The zero value drops only
// built-in non-content patterns.
type Filter struct {
	MinWidth        int
	MinHeight       int
	BlockedSegments []string
	// SameDomainOnly keeps only TargetHost, trusted domains and CDN hosts.
	SameDomainOnly bool
	TargetHost     string
	TrustedDomains []string
}

type DropReason string

const (
	DropNone       DropReason = ""
	DropNonContent DropReason = "non_content"
	DropBlocked    DropReason = "blocked_segment"
	DropTooSmall   DropReason = "too_small"
	DropOffDomain  DropReason = "off_domain"
)

// Check returns why c should be dropped, or DropNone. Unknown dimensions
// (0) never trigger the size check.
func (f Filter) Check(c *models.MediaCandidate) DropReason {
	key := c.CanonicalURL()
	if key == "" {
		key = c.URL
	}

	u, err := url.Parse(key)
	if err != nil {
		return DropNonContent
	}
	path := strings.ToLower(u.Path)

	for _, p := range nonContentPatterns {
		if strings.Contains(path, p) {
			return DropNonContent
		}
	}
	for _, seg := range f.BlockedSegments {
		seg = strings.ToLower(strings.TrimSpace(seg))
		if seg != "" && strings.Contains(path, seg) {
			return DropBlocked
		}
	}

	if f.MinWidth > 0 && c.Width > 0 && c.Width < f.MinWidth {
		return DropTooSmall
	}
	if f.MinHeight > 0 && c.Height > 0 && c.Height < f.MinHeight {
		return DropTooSmall
	}

	if f.SameDomainOnly && !f.allowedHost(u.Hostname()) {
		return DropOffDomain
	}
	return DropNone
}

func (f Filter) allowedHost(host string) bool {
	if f.TargetHost != "" && models.HostMatches(host, f.TargetHost) {
		return true
	}
	for _, d := range f.TrustedDomains {
		if models.HostMatches(host, d) {
			return true
		}
	}
	return IsCDNHost(host)
}
