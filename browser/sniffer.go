package browser

import (
	"strings"
	"sync"

	"media_scrooper/models"
)

// sniffer records the image and video responses a page receives. It sees
// media that scripts fetch without leaving a tag in the DOM.
type sniffer struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	pending []models.RawMedia
}

func newSniffer() *sniffer {
	return &sniffer{seen: make(map[string]struct{})}
}

// observe is fed from the page's response event. Only successful responses
// whose content type is image/* or video/* are kept, once per URL.
func (s *sniffer) observe(url, contentType string, status int, pageURL string) {
	if status < 200 || status >= 300 {
		return
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return
	}
	kind := kindFromContentType(contentType)
	if kind == models.MediaKindUnknown {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[url]; ok {
		return
	}
	s.seen[url] = struct{}{}
	s.pending = append(s.pending, models.RawMedia{URL: url, Kind: kind, SourceURL: pageURL})
}

// drain returns what was seen since the last call.
func (s *sniffer) drain() []models.RawMedia {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

func kindFromContentType(ct string) models.MediaKind {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "image/svg+xml", ct == "image/x-icon", ct == "image/vnd.microsoft.icon":
		return models.MediaKindUnknown
	case strings.HasPrefix(ct, "image/"):
		return models.MediaKindImage
	case strings.HasPrefix(ct, "video/"):
		return models.MediaKindVideo
	}
	return models.MediaKindUnknown
}
