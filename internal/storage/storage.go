package storage

import "time"

// Event is one completed turn as written to the interaction log. The log is
// an append-only audit trail; it is never read back to rebuild a session.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Utterance string    `json:"utterance"`
	Reply     string    `json:"reply"`
	Model     string    `json:"model"`
}

// Recorder abstracts persistence of interaction events.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
}
