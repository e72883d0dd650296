package canon

import (
	"strconv"
	"strings"
	"unicode"
)

// BaseWidth is the assumed pixel width of a 1x density candidate.
const BaseWidth = 500

// SrcsetEntry is one (url, size hint) pair from a responsive-image descriptor.
type SrcsetEntry struct {
	URL     string
	Width   int
	Density float64
}

// EffectiveWidth ranks an entry: explicit width, else density * BaseWidth,
// else 0.
func (e SrcsetEntry) EffectiveWidth() int {
	if e.Width > 0 {
		return e.Width
	}
	if e.Density > 0 {
		return int(e.Density * BaseWidth)
	}
	return 0
}

// ParseSrcset splits a srcset attribute. URLs may contain commas (CDN
// transform strings), so a comma only separates entries when it follows
// whitespace-delimited URL text or ends a descriptor.
func ParseSrcset(s string) []SrcsetEntry {
	var entries []SrcsetEntry
	i, n := 0, len(s)

	for i < n {
		for i < n && (isSpace(s[i]) || s[i] == ',') {
			i++
		}
		if i >= n {
			break
		}

		start := i
		for i < n && !isSpace(s[i]) {
			i++
		}
		u := s[start:i]

		var desc string
		if strings.HasSuffix(u, ",") {
			u = strings.TrimRight(u, ",")
		} else {
			dstart := i
			depth := 0
			for i < n {
				c := s[i]
				if c == '(' {
					depth++
				} else if c == ')' && depth > 0 {
					depth--
				} else if c == ',' && depth == 0 {
					break
				}
				i++
			}
			desc = strings.TrimSpace(s[dstart:i])
		}

		if u == "" {
			continue
		}
		entry := SrcsetEntry{URL: u}
		applyHint(&entry, desc)
		entries = append(entries, entry)
	}

	return entries
}

func applyHint(e *SrcsetEntry, desc string) {
	for _, tok := range strings.FieldsFunc(desc, unicode.IsSpace) {
		if len(tok) < 2 {
			continue
		}
		num, unit := tok[:len(tok)-1], tok[len(tok)-1]
		switch unit {
		case 'w', 'W':
			if w, err := strconv.Atoi(num); err == nil && w > 0 {
				e.Width = w
			}
		case 'x', 'X':
			if d, err := strconv.ParseFloat(num, 64); err == nil && d > 0 {
				e.Density = d
			}
		}
	}
}

// SelectDescriptor returns the URL with the greatest effective width.
// Ties go to the first entry. Entries without a usable hint are only
// chosen when fallback is empty; an empty or unparseable descriptor
// yields fallback.
func SelectDescriptor(descriptor, fallback string) string {
	entries := ParseSrcset(descriptor)
	if len(entries) == 0 {
		return fallback
	}

	best := -1
	bestWidth := 0
	for i, e := range entries {
		if w := e.EffectiveWidth(); w > bestWidth {
			best, bestWidth = i, w
		}
	}

	if best >= 0 {
		return entries[best].URL
	}
	if fallback != "" {
		return fallback
	}
	return entries[0].URL
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
