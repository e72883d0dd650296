package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"media_scrooper/logging"
	"media_scrooper/models"
	"media_scrooper/scraper"
)

const (
	redditAuthURL  = "https://www.reddit.com/api/v1/access_token"
	redditAPIURL   = "https://oauth.reddit.com"
	redditPageSize = 100
)

var errRedditNotFound = errors.New("not found")

type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	// AuthURL and APIURL default to the public endpoints.
	AuthURL string
	APIURL  string
}

// RedditStrategy reads subreddit, user and post listings through the
// OAuth API with application-only credentials.
type RedditStrategy struct {
	client *resty.Client
	cfg    RedditConfig

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewRedditStrategy(client *resty.Client, cfg RedditConfig) *RedditStrategy {
	if cfg.AuthURL == "" {
		cfg.AuthURL = redditAuthURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = redditAPIURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "media_scrooper/1.0"
	}
	return &RedditStrategy{client: client, cfg: cfg}
}

func (s *RedditStrategy) Kind() models.StrategyKind { return models.StrategyAPI }

type redditTarget struct {
	subreddit string
	user      string
	postID    string
}

func (t redditTarget) listingPath() string {
	if t.user != "" {
		return "/user/" + t.user + "/submitted"
	}
	return "/r/" + t.subreddit + "/hot"
}

func parseRedditTarget(raw string) (redditTarget, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return redditTarget{}, false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case len(parts) >= 2 && (parts[0] == "u" || parts[0] == "user"):
		return redditTarget{user: parts[1]}, true
	case len(parts) >= 4 && parts[0] == "r" && parts[2] == "comments":
		return redditTarget{subreddit: parts[1], postID: parts[3]}, true
	case len(parts) >= 2 && parts[0] == "r":
		return redditTarget{subreddit: parts[1]}, true
	case len(parts) >= 2 && parts[0] == "comments":
		return redditTarget{postID: parts[1]}, true
	}
	return redditTarget{}, false
}

func (s *RedditStrategy) TryExtract(ctx context.Context, ec *scraper.ExtractionContext) ([]models.RawMedia, error) {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return nil, models.Capability(models.StrategyAPI, "reddit credentials not configured")
	}
	target, ok := parseRedditTarget(ec.TargetURL)
	if !ok {
		return nil, models.Capability(models.StrategyAPI, "no api route for %s", ec.TargetURL)
	}

	if target.postID != "" {
		var listings []redditListing
		if err := s.get(ctx, "/comments/"+target.postID, nil, &listings); err != nil {
			if errors.Is(err, errRedditNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if len(listings) == 0 {
			return nil, nil
		}
		return postsMedia(listings[0]), nil
	}

	after := ec.ResumePosition()
	for page := 0; page < ec.Options.MaxPages; page++ {
		if err := ec.Pace(ctx); err != nil {
			return nil, err
		}

		params := map[string]string{"limit": fmt.Sprint(redditPageSize)}
		if after != "" {
			params["after"] = after
		}
		var listing redditListing
		if err := s.get(ctx, target.listingPath(), params, &listing); err != nil {
			if errors.Is(err, errRedditNotFound) {
				ec.Note("reddit listing %s not found", target.listingPath())
				return nil, nil
			}
			return nil, err
		}

		items := postsMedia(listing)
		ec.Collect(items...)
		ec.Log.Debug("reddit listing page",
			logging.Int("posts", len(listing.Data.Children)),
			logging.Int("items", len(items)),
			logging.String("after", listing.Data.After))

		after = listing.Data.After
		ec.SetPosition(after)
		if after == "" || ec.Enough() {
			break
		}
	}
	return nil, nil
}

func (s *RedditStrategy) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	token, err := s.accessToken(ctx)
	if err != nil {
		return err
	}

	req := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("User-Agent", s.cfg.UserAgent).
		SetQueryParam("raw_json", "1")
	if params != nil {
		req.SetQueryParams(params)
	}
	resp, err := req.Get(s.cfg.APIURL + path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return models.Transient(models.StrategyAPI, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized:
		s.resetToken()
		return models.Transient(models.StrategyAPI, fmt.Errorf("token rejected"))
	case code == http.StatusForbidden:
		return models.Capability(models.StrategyAPI, "forbidden: %s", path)
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, errRedditNotFound)
	case code >= 400:
		return models.Transient(models.StrategyAPI, fmt.Errorf("%s: status %d", path, code))
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return models.Transient(models.StrategyAPI, fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

func (s *RedditStrategy) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expires) {
		return s.token, nil
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBasicAuth(s.cfg.ClientID, s.cfg.ClientSecret).
		SetHeader("User-Agent", s.cfg.UserAgent).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&tok).
		Post(s.cfg.AuthURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", models.Transient(models.StrategyAPI, fmt.Errorf("reddit auth: %w", err))
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "", models.Capability(models.StrategyAPI, "reddit rejected credentials (%d)", code)
	case code >= 400:
		return "", models.Transient(models.StrategyAPI, fmt.Errorf("reddit auth: status %d", code))
	}
	if tok.AccessToken == "" {
		return "", models.Capability(models.StrategyAPI, "reddit auth returned no token")
	}

	s.token = tok.AccessToken
	// Refresh a minute early.
	s.expires = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return s.token, nil
}

func (s *RedditStrategy) resetToken() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

type redditListing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string     `json:"kind"`
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type redditPost struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Permalink         string  `json:"permalink"`
	URL               string  `json:"url"`
	Subreddit         string  `json:"subreddit"`
	Author            string  `json:"author"`
	IsSelf            bool    `json:"is_self"`
	IsVideo           bool    `json:"is_video"`
	IsGallery         bool    `json:"is_gallery"`
	RemovedByCategory *string `json:"removed_by_category"`
	Media             *struct {
		RedditVideo *struct {
			FallbackURL string `json:"fallback_url"`
			Width       int    `json:"width"`
			Height      int    `json:"height"`
		} `json:"reddit_video"`
	} `json:"media"`
	MediaMetadata map[string]struct {
		Status string `json:"status"`
		E      string `json:"e"`
		S      struct {
			U string `json:"u"`
			X int    `json:"x"`
			Y int    `json:"y"`
		} `json:"s"`
	} `json:"media_metadata"`
	GalleryData *struct {
		Items []struct {
			MediaID string `json:"media_id"`
		} `json:"items"`
	} `json:"gallery_data"`
	Preview *struct {
		Images []struct {
			Source redditImage `json:"source"`
		} `json:"images"`
	} `json:"preview"`
}

func postsMedia(l redditListing) []models.RawMedia {
	var out []models.RawMedia
	for _, child := range l.Data.Children {
		if child.Kind != "" && child.Kind != "t3" {
			continue
		}
		out = append(out, postMedia(child.Data)...)
	}
	return out
}

func postMedia(p redditPost) []models.RawMedia {
	if p.Author == "" || p.Author == "[deleted]" || p.RemovedByCategory != nil {
		return nil
	}

	postURL := "https://www.reddit.com" + p.Permalink
	base := models.RawMedia{
		Title:     p.Title,
		AltText:   p.Title,
		Credits:   fmt.Sprintf("Reddit: r/%s by u/%s", p.Subreddit, p.Author),
		SourceURL: postURL,
		Category:  p.Subreddit,
	}
	with := func(u string, kind models.MediaKind, w, h int) models.RawMedia {
		m := base
		m.URL = strings.ReplaceAll(u, "&amp;", "&")
		m.Kind = kind
		m.Width, m.Height = w, h
		return m
	}

	var out []models.RawMedia
	if p.IsVideo && p.Media != nil && p.Media.RedditVideo != nil && p.Media.RedditVideo.FallbackURL != "" {
		v := p.Media.RedditVideo
		out = append(out, with(v.FallbackURL, models.MediaKindVideo, v.Width, v.Height))
	}

	if p.IsGallery && len(p.MediaMetadata) > 0 {
		var ids []string
		if p.GalleryData != nil {
			for _, it := range p.GalleryData.Items {
				ids = append(ids, it.MediaID)
			}
		} else {
			for id := range p.MediaMetadata {
				ids = append(ids, id)
			}
			sort.Strings(ids)
		}
		for _, id := range ids {
			meta, ok := p.MediaMetadata[id]
			if !ok || meta.Status != "valid" || meta.E != "Image" || meta.S.U == "" {
				continue
			}
			out = append(out, with(meta.S.U, models.MediaKindImage, meta.S.X, meta.S.Y))
		}
		return out
	}

	if !p.IsSelf && p.URL != "" {
		switch models.KindFromURL(p.URL) {
		case models.MediaKindImage:
			out = append(out, with(p.URL, models.MediaKindImage, 0, 0))
			return out
		case models.MediaKindVideo:
			out = append(out, with(p.URL, models.MediaKindVideo, 0, 0))
			return out
		}
	}

	if len(out) == 0 && p.Preview != nil && len(p.Preview.Images) > 0 {
		src := p.Preview.Images[0].Source
		if src.URL != "" {
			out = append(out, with(src.URL, models.MediaKindImage, src.Width, src.Height))
		}
	}
	return out
}
