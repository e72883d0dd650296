package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type MediaKind string

const (
	MediaKindImage   MediaKind = "image"
	MediaKindVideo   MediaKind = "video"
	MediaKindUnknown MediaKind = "unknown"
)

var ErrCanonicalAlreadySet = errors.New("canonical url already set")

var videoExtensions = []string{".mp4", ".webm", ".mov", ".m4v", ".mkv", ".gifv"}

// KindFromURL guesses the media kind from the path extension.
func KindFromURL(raw string) MediaKind {
	u, err := url.Parse(raw)
	if err != nil {
		return MediaKindUnknown
	}
	p := strings.ToLower(u.Path)
	for _, ext := range videoExtensions {
		if strings.HasSuffix(p, ext) {
			return MediaKindVideo
		}
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif", ".bmp", ".tif", ".tiff"} {
		if strings.HasSuffix(p, ext) {
			return MediaKindImage
		}
	}
	return MediaKindUnknown
}

// RawMedia is what a strategy hands back before canonicalization.
type RawMedia struct {
	URL        string    `json:"url"`
	Descriptor string    `json:"descriptor,omitempty"`
	Kind       MediaKind `json:"kind,omitempty"`
	Title      string    `json:"title,omitempty"`
	AltText    string    `json:"alt_text,omitempty"`
	Credits    string    `json:"credits,omitempty"`
	SourceURL  string    `json:"source_url,omitempty"`
	Category   string    `json:"category,omitempty"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
}

// MediaCandidate is one discovered piece of media. The canonical URL is
// assigned once and never changes afterwards.
type MediaCandidate struct {
	URL        string
	Descriptor string
	Kind       MediaKind
	Title      string
	AltText    string
	Credits    string
	SourceURL  string
	Category   string
	Width      int
	Height     int

	canonicalURL string
}

// NewCandidate validates a raw tuple. Relative URLs are resolved against
// SourceURL; anything that is still not absolute is malformed.
func NewCandidate(raw RawMedia) (*MediaCandidate, error) {
	ref := strings.TrimSpace(raw.URL)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty media url", ErrMalformedInput)
	}

	abs, err := resolveURL(ref, raw.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	kind := raw.Kind
	if kind == "" {
		kind = KindFromURL(abs)
	}

	return &MediaCandidate{
		URL:        abs,
		Descriptor: raw.Descriptor,
		Kind:       kind,
		Title:      raw.Title,
		AltText:    raw.AltText,
		Credits:    raw.Credits,
		SourceURL:  raw.SourceURL,
		Category:   raw.Category,
		Width:      max(raw.Width, 0),
		Height:     max(raw.Height, 0),
	}, nil
}

func resolveURL(ref, base string) (string, error) {
	if strings.HasPrefix(ref, "//") {
		scheme := "https"
		if b, err := url.Parse(base); err == nil && b.Scheme != "" {
			scheme = b.Scheme
		}
		ref = scheme + ":" + ref
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if u.IsAbs() && u.Host != "" {
		return u.String(), nil
	}
	if u.Scheme == "data" {
		return ref, nil
	}
	if base == "" {
		return "", fmt.Errorf("relative url %q without source", ref)
	}

	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return "", fmt.Errorf("relative url %q with invalid source %q", ref, base)
	}
	return b.ResolveReference(u).String(), nil
}

func (c *MediaCandidate) CanonicalURL() string {
	return c.canonicalURL
}

func (c *MediaCandidate) HasCanonical() bool {
	return c.canonicalURL != ""
}

func (c *MediaCandidate) SetCanonicalURL(u string) error {
	if c.canonicalURL != "" {
		return ErrCanonicalAlreadySet
	}
	if u == "" {
		return fmt.Errorf("%w: empty canonical url", ErrMalformedInput)
	}
	c.canonicalURL = u
	return nil
}

type candidateJSON struct {
	URL          string    `json:"url"`
	CanonicalURL string    `json:"canonical_url"`
	Kind         MediaKind `json:"kind"`
	Title        string    `json:"title,omitempty"`
	AltText      string    `json:"alt_text,omitempty"`
	Credits      string    `json:"credits,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	Category     string    `json:"category,omitempty"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
}

func (c *MediaCandidate) MarshalJSON() ([]byte, error) {
	return json.Marshal(candidateJSON{
		URL:          c.URL,
		CanonicalURL: c.canonicalURL,
		Kind:         c.Kind,
		Title:        c.Title,
		AltText:      c.AltText,
		Credits:      c.Credits,
		SourceURL:    c.SourceURL,
		Category:     c.Category,
		Width:        c.Width,
		Height:       c.Height,
	})
}
