package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for published retrieval events.
const (
	EventTypeRecordRetrieved = "record.retrieved"
	EventTypeRecordSkipped   = "record.skipped"
	EventTypeRecordFailed    = "record.failed"
	EventTypeBatchCompleted  = "batch.completed"
)

// OutcomeEvent is the message published for every terminal record outcome
// and at the end of a batch.
type OutcomeEvent struct {
	EventID      string    `json:"event_id"`
	EventVersion int       `json:"event_version"`
	EventType    string    `json:"event_type"`
	RunID        string    `json:"run_id"`
	PMID         string    `json:"pmid,omitempty"`
	State        string    `json:"state,omitempty"`
	Source       string    `json:"source,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	LocalPath    string    `json:"local_path,omitempty"`
	Bytes        int64     `json:"bytes,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	Attempts     int       `json:"attempts,omitempty"`
	Error        string    `json:"error,omitempty"`
	Total        int       `json:"total,omitempty"`
	Succeeded    int       `json:"succeeded,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewOutcomeEvent builds the event describing a record outcome.
func NewOutcomeEvent(o RetrievalOutcome) *OutcomeEvent {
	eventType := EventTypeRecordFailed
	switch {
	case o.State == StateExistsLocally:
		eventType = EventTypeRecordSkipped
	case o.Succeeded:
		eventType = EventTypeRecordRetrieved
	}

	e := &OutcomeEvent{
		EventID:      uuid.New().String(),
		EventVersion: 1,
		EventType:    eventType,
		RunID:        o.RunID.String(),
		PMID:         o.PMID,
		State:        string(o.State),
		SourceURL:    o.SourceURL,
		LocalPath:    o.LocalPath,
		Bytes:        o.Bytes,
		Checksum:     o.Checksum,
		Attempts:     o.Attempts,
		Error:        o.ErrorMessage(),
		CreatedAt:    time.Now().UTC(),
	}
	if o.Source != nil {
		e.Source = o.Source.Name
	}
	return e
}

// NewBatchEvent builds the event emitted when a batch run completes.
func NewBatchEvent(r BatchResult) *OutcomeEvent {
	return &OutcomeEvent{
		EventID:      uuid.New().String(),
		EventVersion: 1,
		EventType:    EventTypeBatchCompleted,
		RunID:        r.RunID.String(),
		Total:        r.Total(),
		Succeeded:    r.Succeeded(),
		CreatedAt:    time.Now().UTC(),
	}
}

// Key returns the partition key of the event.
func (e *OutcomeEvent) Key() []byte {
	if e.PMID != "" {
		return []byte(e.PMID)
	}
	return []byte(e.RunID)
}

// Marshal serializes the event as JSON.
func (e *OutcomeEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
