package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdExtractAll    CommandType = "extract_all"
	CmdExtractSite   CommandType = "extract_site"
	CmdExtractTarget CommandType = "extract_target"
	CmdResetCursor   CommandType = "reset_cursor"
	CmdPause         CommandType = "pause"
	CmdResume        CommandType = "resume"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Site   string `json:"site,omitempty"`
	Target string `json:"target,omitempty"`
}
