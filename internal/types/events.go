package types

import "time"

// SessionEvent records one phase transition of a recording session.
// Emitted to telemetry sinks; never consulted by the workflow itself.
type SessionEvent struct {
	SessionID    string    `json:"session_id"`
	From         Phase     `json:"from"`
	To           Phase     `json:"to"`
	OverallScore int       `json:"overall_score,omitempty"`
	ClipID       string    `json:"clip_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
