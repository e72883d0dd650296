package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media_scrooper/models"
)

type fakeMediaStore struct {
	queued  []models.QueuedMedia
	known   map[string]bool
	updates map[uuid.UUID]string
	err     error
}

func (f *fakeMediaStore) EnqueueMedia(ctx context.Context, items []models.QueuedMedia) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.known == nil {
		f.known = make(map[string]bool)
	}
	n := 0
	for _, m := range items {
		if f.known[m.CanonicalURL] {
			continue
		}
		f.known[m.CanonicalURL] = true
		f.queued = append(f.queued, m)
		n++
	}
	return n, nil
}

func (f *fakeMediaStore) PendingMedia(ctx context.Context, limit int) ([]models.QueuedMedia, error) {
	return f.queued, nil
}

func (f *fakeMediaStore) UpdateMediaStatus(ctx context.Context, id uuid.UUID, status string, attempts int) error {
	if f.updates == nil {
		f.updates = make(map[uuid.UUID]string)
	}
	f.updates[id] = status
	return nil
}

func candidate(t *testing.T, rawURL, canonical string) *models.MediaCandidate {
	t.Helper()
	c, err := models.NewCandidate(models.RawMedia{
		URL:       rawURL,
		Title:     "Pier",
		Credits:   "someone",
		SourceURL: "https://gallery.example.com/a",
		Width:     1200,
	})
	require.NoError(t, err)
	if canonical != "" {
		require.NoError(t, c.SetCanonicalURL(canonical))
	}
	return c
}

func TestMediaServiceEnqueue(t *testing.T) {
	store := &fakeMediaStore{}
	svc := NewMediaService(store, nil)
	runID := uuid.New()

	items := []*models.MediaCandidate{
		candidate(t, "https://cdn.example.com/w_300/a.jpg", "https://cdn.example.com/full/a.jpg"),
		candidate(t, "https://cdn.example.com/w_600/a.jpg", "https://cdn.example.com/full/a.jpg"),
		candidate(t, "https://cdn.example.com/b.mp4", "https://cdn.example.com/b.mp4"),
		candidate(t, "https://cdn.example.com/c.jpg", ""),
		nil,
	}

	n, err := svc.Enqueue(t.Context(), runID, "gallery", items)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.queued, 2)

	first := store.queued[0]
	assert.Equal(t, runID, first.RunID)
	assert.Equal(t, "gallery", first.SiteID)
	assert.Equal(t, "https://cdn.example.com/full/a.jpg", first.CanonicalURL)
	assert.Equal(t, "https://cdn.example.com/w_300/a.jpg", first.OriginalURL, "first seen wins")
	assert.Equal(t, "image", first.MediaType)
	assert.Equal(t, models.MediaStatusPending, first.Status)
	require.NotNil(t, first.Width)
	assert.Equal(t, 1200, *first.Width)
	assert.Nil(t, first.Height)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(first.Metadata, &meta))
	assert.Equal(t, "Pier", meta["title"])
	assert.Equal(t, "https://gallery.example.com/a", meta["source_url"])

	assert.Equal(t, "video", store.queued[1].MediaType)

	n, err = svc.Enqueue(t.Context(), uuid.New(), "gallery", items[:1])
	require.NoError(t, err)
	assert.Zero(t, n, "already queued")
}

func TestMediaServiceEnqueueNothing(t *testing.T) {
	svc := NewMediaService(&fakeMediaStore{err: errors.New("should not be called")}, nil)
	n, err := svc.Enqueue(t.Context(), uuid.New(), "s", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMediaServiceEnqueueError(t *testing.T) {
	svc := NewMediaService(&fakeMediaStore{err: errors.New("connection refused")}, nil)
	_, err := svc.Enqueue(t.Context(), uuid.New(), "s", []*models.MediaCandidate{
		candidate(t, "https://cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"),
	})
	assert.Error(t, err)
}

func TestMediaServiceStatus(t *testing.T) {
	store := &fakeMediaStore{}
	svc := NewMediaService(store, nil)
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, svc.MarkDone(t.Context(), a))
	require.NoError(t, svc.MarkFailed(t.Context(), b, 1))
	require.NoError(t, svc.MarkFailed(t.Context(), c, 3))

	assert.Equal(t, models.MediaStatusDone, store.updates[a])
	assert.Equal(t, models.MediaStatusPending, store.updates[b])
	assert.Equal(t, models.MediaStatusFailed, store.updates[c])
}
