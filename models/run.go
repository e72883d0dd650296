package models

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

type ExtractionRun struct {
	ID          int64           `json:"id" db:"id"`
	RunID       string          `json:"run_id" db:"run_id"`
	SiteID      string          `json:"site_id" db:"site_id"`
	TargetURL   string          `json:"target_url" db:"target_url"`
	StartedAt   time.Time       `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at" db:"finished_at"`
	Status      RunStatus       `json:"status" db:"status"`
	Winner      string          `json:"winner" db:"winner"`
	Candidates  int             `json:"candidates" db:"candidates"`
	ErrorsCount int             `json:"errors_count" db:"errors_count"`
	Report      json.RawMessage `json:"report" db:"report"`
}

type SiteStats struct {
	SiteID          string     `json:"site_id" db:"site_id"`
	LastRunAt       *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus   string     `json:"last_run_status" db:"last_run_status"`
	TotalRuns       int        `json:"total_runs" db:"total_runs"`
	TotalCandidates int        `json:"total_candidates" db:"total_candidates"`
	SuccessRate     float64    `json:"success_rate" db:"success_rate"`
}
