package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueuedMedia is a canonical media URL handed to the external downloader.
type QueuedMedia struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	RunID        uuid.UUID       `json:"run_id" db:"run_id"`
	SiteID       string          `json:"site_id" db:"site_id"`
	CanonicalURL string          `json:"canonical_url" db:"canonical_url"`
	OriginalURL  string          `json:"original_url" db:"original_url"`
	MediaType    string          `json:"media_type" db:"media_type"`
	Width        *int            `json:"width" db:"width"`
	Height       *int            `json:"height" db:"height"`
	Metadata     json.RawMessage `json:"metadata" db:"metadata"`
	Status       string          `json:"status" db:"status"`
	Attempts     int             `json:"attempts" db:"attempts"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

const (
	MediaStatusPending     = "pending"
	MediaStatusDownloading = "downloading"
	MediaStatusDone        = "done"
	MediaStatusFailed      = "failed"
)
