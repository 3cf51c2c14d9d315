package events

import (
	"encoding/json"
	"time"
)

// Event types published over the hub.
const (
	TypeRunStarted   = "run_started"
	TypePhaseChanged = "phase_changed"
	TypeUnitStarted  = "unit_started"
	TypeUnitSettled  = "unit_settled"
	TypeRetryStarted = "retry_started"
	TypeRunFinished  = "run_finished"
)

type Event struct {
	Type  string          `json:"type"`
	At    time.Time       `json:"at"`
	RunID string          `json:"run_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(typ, runID string, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:  typ,
		At:    time.Now().UTC(),
		RunID: runID,
		Data:  raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
