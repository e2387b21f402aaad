package model

import "time"

// Fetch outcome constants.
const (
	OutcomeSuccess        = "success"
	OutcomeProtocolError  = "protocol_error"
	OutcomeTransportError = "transport_error"
	OutcomeAborted        = "aborted"
)

// Fetch represents one completed transfer recorded in the history store.
type Fetch struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	Engine     string     `json:"engine"`
	Outcome    string     `json:"outcome"`
	Status     int        `json:"status"`
	Bytes      int64      `json:"bytes"`
	Error      string     `json:"error,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// KnownOutcome reports whether s is one of the recorded outcome values.
func KnownOutcome(s string) bool {
	switch s {
	case OutcomeSuccess, OutcomeProtocolError, OutcomeTransportError, OutcomeAborted:
		return true
	}
	return false
}
