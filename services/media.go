package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"media_scrooper/logging"
	"media_scrooper/models"
)

// MediaStore is the persistence the download queue needs.
// storage.PostgresStore implements it.
type MediaStore interface {
	EnqueueMedia(ctx context.Context, items []models.QueuedMedia) (int, error)
	PendingMedia(ctx context.Context, limit int) ([]models.QueuedMedia, error)
	UpdateMediaStatus(ctx context.Context, id uuid.UUID, status string, attempts int) error
}

// MediaService hands extracted candidates to the external downloader.
type MediaService struct {
	store MediaStore
	log   logging.Logger
}

func NewMediaService(store MediaStore, log logging.Logger) *MediaService {
	if log == nil {
		log = logging.NewNop()
	}
	return &MediaService{store: store, log: log}
}

type queuedMetadata struct {
	Title     string `json:"title,omitempty"`
	AltText   string `json:"alt_text,omitempty"`
	Credits   string `json:"credits,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	Category  string `json:"category,omitempty"`
}

// Enqueue implements scraper.MediaQueue. Candidates without a canonical
// URL are skipped; the store keeps the first row per canonical URL.
func (s *MediaService) Enqueue(ctx context.Context, runID uuid.UUID, siteID string, items []*models.MediaCandidate) (int, error) {
	now := time.Now()
	queued := make([]models.QueuedMedia, 0, len(items))
	seen := make(map[string]bool, len(items))

	for _, c := range items {
		if c == nil || !c.HasCanonical() || seen[c.CanonicalURL()] {
			continue
		}
		seen[c.CanonicalURL()] = true

		meta, _ := json.Marshal(queuedMetadata{
			Title:     c.Title,
			AltText:   c.AltText,
			Credits:   c.Credits,
			SourceURL: c.SourceURL,
			Category:  c.Category,
		})
		queued = append(queued, models.QueuedMedia{
			ID:           uuid.New(),
			RunID:        runID,
			SiteID:       siteID,
			CanonicalURL: c.CanonicalURL(),
			OriginalURL:  c.URL,
			MediaType:    string(c.Kind),
			Width:        positive(c.Width),
			Height:       positive(c.Height),
			Metadata:     meta,
			Status:       models.MediaStatusPending,
			CreatedAt:    now,
		})
	}

	if len(queued) == 0 {
		return 0, nil
	}
	n, err := s.store.EnqueueMedia(ctx, queued)
	if err != nil {
		return n, err
	}
	s.log.Info("media queued",
		logging.String("site", siteID),
		logging.String("run_id", runID.String()),
		logging.Int("offered", len(queued)),
		logging.Int("new", n))
	return n, nil
}

// GetPending returns pending media for the downloader.
func (s *MediaService) GetPending(ctx context.Context, limit int) ([]models.QueuedMedia, error) {
	return s.store.PendingMedia(ctx, limit)
}

func (s *MediaService) MarkDone(ctx context.Context, id uuid.UUID) error {
	return s.store.UpdateMediaStatus(ctx, id, models.MediaStatusDone, 0)
}

// MarkFailed records a failed download; the third failure is final.
func (s *MediaService) MarkFailed(ctx context.Context, id uuid.UUID, attempts int) error {
	status := models.MediaStatusPending
	if attempts >= 3 {
		status = models.MediaStatusFailed
	}
	return s.store.UpdateMediaStatus(ctx, id, status, attempts)
}

func positive(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
