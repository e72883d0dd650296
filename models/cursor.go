package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor is an opaque pagination position. Callers store and re-supply it;
// only the strategy that produced it can interpret the position.
type Cursor string

type cursorPayload struct {
	Strategy StrategyKind `json:"s"`
	Position string       `json:"p"`
}

func EncodeCursor(kind StrategyKind, position string) Cursor {
	if position == "" {
		return ""
	}
	data, _ := json.Marshal(cursorPayload{Strategy: kind, Position: position})
	return Cursor(base64.RawURLEncoding.EncodeToString(data))
}

func DecodeCursor(c Cursor) (StrategyKind, string, error) {
	if c == "" {
		return "", "", nil
	}
	data, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return "", "", fmt.Errorf("%w: cursor: %v", ErrMalformedInput, err)
	}
	var p cursorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", "", fmt.Errorf("%w: cursor: %v", ErrMalformedInput, err)
	}
	return p.Strategy, p.Position, nil
}

// PositionFor returns the stored position if the cursor belongs to kind.
func (c Cursor) PositionFor(kind StrategyKind) string {
	k, pos, err := DecodeCursor(c)
	if err != nil || k != kind {
		return ""
	}
	return pos
}
