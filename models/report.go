package models

import (
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeEmpty     Outcome = "empty"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCancelled Outcome = "cancelled"
)

// StrategyAttempt summarises everything one strategy did during a run.
type StrategyAttempt struct {
	Kind       StrategyKind  `json:"kind"`
	Outcome    Outcome       `json:"outcome"`
	Attempts   int           `json:"attempts"`
	Retries    int           `json:"retries"`
	Errors     []string      `json:"errors,omitempty"`
	Candidates int           `json:"candidates"`
	Duration   time.Duration `json:"duration_ns"`
}

// ExtractionReport lets an operator tell "site returned nothing" apart
// from "every strategy errored" without reading logs.
type ExtractionReport struct {
	RunID      uuid.UUID         `json:"run_id"`
	Site       string            `json:"site"`
	TargetURL  string            `json:"target_url"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Strategies []StrategyAttempt `json:"strategies"`
	Winner     StrategyKind      `json:"winner,omitempty"`
	Cursor     Cursor            `json:"cursor,omitempty"`
	Candidates int               `json:"candidates"`
	Rejected   int               `json:"rejected"`
	Filtered   int               `json:"filtered"`
	Duplicates int               `json:"duplicates"`
	Capped     int               `json:"capped,omitempty"`
	Partial    bool              `json:"partial"`
	Notes      []string          `json:"notes,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func NewReport(site, target string) *ExtractionReport {
	return &ExtractionReport{
		RunID:     uuid.New(),
		Site:      site,
		TargetURL: target,
		StartedAt: time.Now(),
	}
}

// Attempted reports whether kind ran at all (skips count as attempted).
func (r *ExtractionReport) Attempted(kind StrategyKind) (StrategyAttempt, bool) {
	for _, a := range r.Strategies {
		if a.Kind == kind {
			return a, true
		}
	}
	return StrategyAttempt{}, false
}

func (r *ExtractionReport) Status() RunStatus {
	switch {
	case r.Error != "" && r.Candidates == 0:
		return RunStatusFailed
	case r.Partial:
		return RunStatusPartial
	default:
		return RunStatusCompleted
	}
}
