package models

import (
	"fmt"
	"strings"
)

type StrategyKind string

const (
	StrategyAPI      StrategyKind = "api"
	StrategyRendered StrategyKind = "rendered_dom"
	StrategyStatic   StrategyKind = "static_document"
)

// DefaultStrategyOrder is cheapest-reliable first: structured API, then a
// real browser, then plain HTML.
var DefaultStrategyOrder = []StrategyKind{StrategyAPI, StrategyRendered, StrategyStatic}

func ParseStrategyKind(s string) (StrategyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "api":
		return StrategyAPI, nil
	case "rendered_dom", "rendered", "browser", "dom":
		return StrategyRendered, nil
	case "static_document", "static", "html":
		return StrategyStatic, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

func (k StrategyKind) String() string {
	return string(k)
}

// StrategyState tracks where an ExtractionContext is in its lifecycle.
type StrategyState string

const (
	StatePending   StrategyState = "pending"
	StateRunning   StrategyState = "running"
	StateSucceeded StrategyState = "succeeded"
	StateFailed    StrategyState = "failed"
)
