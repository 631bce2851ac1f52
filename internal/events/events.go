package events

import (
	"encoding/json"
	"time"
)

const (
	RunStarted  = "run_started"
	RunProgress = "run_progress"
	RunFinished = "run_finished"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Payloads for the run lifecycle events.
type (
	StartedData struct {
		RunID     string    `json:"run_id"`
		StartedAt time.Time `json:"started_at"`
	}
	ProgressData struct {
		RunID      string `json:"run_id"`
		Processed  int    `json:"processed"`
		Mismatches int    `json:"mismatches"`
	}
	FinishedData struct {
		RunID      string `json:"run_id"`
		OK         bool   `json:"ok"`
		Processed  int    `json:"processed"`
		Mismatches int    `json:"mismatches"`
		Emailed    bool   `json:"emailed"`
		Message    string `json:"message"`
		DurationMS int64  `json:"duration_ms"`
	}
)

// MakeEvent builds a version-1 event with data marshalled as JSON.
func MakeEvent(reqID, typ string, data any) Event {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	return Event{
		Type:      typ,
		Version:   1,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
}

// Encode renders e for an SSE data line.
func (e Event) Encode() string {
	b, _ := json.Marshal(e)
	return string(b)
}
