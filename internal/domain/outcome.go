package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecordState is the per-record retrieval lifecycle state.
type RecordState string

// Record lifecycle states.
const (
	StatePending       RecordState = "pending"
	StateExistsLocally RecordState = "exists_locally"
	StateMapping       RecordState = "mapping"
	StateMapFailed     RecordState = "map_failed"
	StateResolvingDOI  RecordState = "resolving_doi"
	StateResolvingPII  RecordState = "resolving_pii"
	StateResolvingPMC  RecordState = "resolving_pmc"
	StateSucceeded     RecordState = "succeeded"
	StateFailed        RecordState = "failed"
)

var stateTransitions = map[RecordState][]RecordState{
	StatePending:      {StateExistsLocally, StateMapping},
	StateMapping:      {StateMapFailed, StateResolvingDOI},
	StateResolvingDOI: {StateSucceeded, StateResolvingPII},
	StateResolvingPII: {StateSucceeded, StateResolvingPMC},
	StateResolvingPMC: {StateSucceeded, StateFailed},
}

// IsTerminal returns true if the state will not change.
func (s RecordState) IsTerminal() bool {
	switch s {
	case StateExistsLocally, StateMapFailed, StateSucceeded, StateFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s RecordState) CanTransitionTo(next RecordState) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ResolvingState returns the state in which candidates of kind are tried.
func ResolvingState(kind IdentifierType) (RecordState, bool) {
	switch kind {
	case IdentifierDOI:
		return StateResolvingDOI, true
	case IdentifierPII:
		return StateResolvingPII, true
	case IdentifierPMC:
		return StateResolvingPMC, true
	default:
		return "", false
	}
}

// CandidateSource is one entry of the document host catalog.
type CandidateSource struct {
	// Kind is the identifier kind the URL template is keyed by.
	Kind IdentifierType `json:"kind" mapstructure:"kind"`
	// Name identifies the host in logs and metrics.
	Name string `json:"name" mapstructure:"name"`
	// URLTemplate contains one of the {doi}, {pii}, {pmc} or {pmc_lower} placeholders.
	URLTemplate string `json:"url_template" mapstructure:"url_template"`
	// RequiresDOMScrape marks two-step entries whose template points at an
	// HTML page embedding the document link.
	RequiresDOMScrape bool `json:"requires_dom_scrape" mapstructure:"requires_dom_scrape"`
	// Selector is the CSS selector of the embedding element (two-step only).
	Selector string `json:"selector,omitempty" mapstructure:"selector"`
	// Attribute holds the link on the selected element (two-step only).
	Attribute string `json:"attribute,omitempty" mapstructure:"attribute"`
}

// RetrievalOutcome is the terminal result of processing one record.
type RetrievalOutcome struct {
	RunID      uuid.UUID
	PMID       string
	State      RecordState
	Succeeded  bool
	Source     *CandidateSource
	SourceURL  string
	LocalPath  string
	Bytes      int64
	Checksum   string
	Attempts   int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the record took to process.
func (o RetrievalOutcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// ErrorMessage returns the error text or an empty string.
func (o RetrievalOutcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// BatchResult aggregates the outcomes of one batch run, in input order.
type BatchResult struct {
	RunID      uuid.UUID
	Outcomes   []RetrievalOutcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// Total returns the number of records processed.
func (r BatchResult) Total() int {
	return len(r.Outcomes)
}

// Succeeded counts records that have a validated document on disk, including
// those that already existed locally.
func (r BatchResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Succeeded {
			n++
		}
	}
	return n
}

// Skipped counts records short-circuited because the document already existed.
func (r BatchResult) Skipped() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == StateExistsLocally {
			n++
		}
	}
	return n
}

// FailedPMIDs returns the identifiers of records without a document, in input order.
func (r BatchResult) FailedPMIDs() []string {
	var failed []string
	for _, o := range r.Outcomes {
		if !o.Succeeded {
			failed = append(failed, o.PMID)
		}
	}
	return failed
}

// StoredOutcome is the persisted form of a RetrievalOutcome. The error is
// kept as text.
type StoredOutcome struct {
	ID         uuid.UUID   `json:"id"`
	RunID      uuid.UUID   `json:"run_id"`
	PMID       string      `json:"pmid"`
	State      RecordState `json:"state"`
	Succeeded  bool        `json:"succeeded"`
	Source     string      `json:"source,omitempty"`
	SourceURL  string      `json:"source_url,omitempty"`
	LocalPath  string      `json:"local_path,omitempty"`
	Bytes      int64       `json:"bytes"`
	Checksum   string      `json:"checksum,omitempty"`
	Attempts   int         `json:"attempts"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// NewStoredOutcome converts o for storage under a fresh ID.
func NewStoredOutcome(o RetrievalOutcome) StoredOutcome {
	s := StoredOutcome{
		ID:         uuid.New(),
		RunID:      o.RunID,
		PMID:       o.PMID,
		State:      o.State,
		Succeeded:  o.Succeeded,
		SourceURL:  o.SourceURL,
		LocalPath:  o.LocalPath,
		Bytes:      o.Bytes,
		Checksum:   o.Checksum,
		Attempts:   o.Attempts,
		Error:      o.ErrorMessage(),
		StartedAt:  o.StartedAt,
		FinishedAt: o.FinishedAt,
	}
	if o.Source != nil {
		s.Source = o.Source.Name
	}
	return s
}
