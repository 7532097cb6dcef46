package httpserver

import (
	"time"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/report"
)

// Retrieval response types for JSON serialization.

type outcomeResponse struct {
	PMID      string `json:"pmid"`
	State     string `json:"state"`
	Succeeded bool   `json:"succeeded"`
	Source    string `json:"source,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	LocalPath string `json:"local_path,omitempty"`
	Bytes     int64  `json:"bytes"`
	Checksum  string `json:"checksum,omitempty"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

type retrievalResponse struct {
	RunID      string            `json:"run_id"`
	Total      int               `json:"total"`
	Succeeded  int               `json:"succeeded"`
	Skipped    int               `json:"skipped"`
	Failed     []string          `json:"failed"`
	Summary    string            `json:"summary"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Outcomes   []outcomeResponse `json:"outcomes"`
}

type listOutcomesResponse struct {
	Outcomes []domain.StoredOutcome `json:"outcomes"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}

// Converter functions

func domainOutcomeToResponse(o domain.RetrievalOutcome) outcomeResponse {
	resp := outcomeResponse{
		PMID:      o.PMID,
		State:     string(o.State),
		Succeeded: o.Succeeded,
		SourceURL: o.SourceURL,
		LocalPath: o.LocalPath,
		Bytes:     o.Bytes,
		Checksum:  o.Checksum,
		Attempts:  o.Attempts,
		Error:     o.ErrorMessage(),
	}
	if o.Source != nil {
		resp.Source = o.Source.Name
	}
	if d := o.Duration(); d > 0 {
		resp.Duration = d.String()
	}
	return resp
}

func batchResultToResponse(r domain.BatchResult) retrievalResponse {
	outcomes := make([]outcomeResponse, len(r.Outcomes))
	for i, o := range r.Outcomes {
		outcomes[i] = domainOutcomeToResponse(o)
	}
	failed := r.FailedPMIDs()
	if failed == nil {
		failed = []string{}
	}
	return retrievalResponse{
		RunID:      r.RunID.String(),
		Total:      r.Total(),
		Succeeded:  r.Succeeded(),
		Skipped:    r.Skipped(),
		Failed:     failed,
		Summary:    report.Summary(r),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Outcomes:   outcomes,
	}
}
