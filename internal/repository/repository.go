// Package repository persists mapped PubMed records and retrieval outcomes
// in PostgreSQL.
//
// # Repositories
//
//   - RecordRepository: mapped records keyed by PMID, stored as their
//     Document representation
//   - OutcomeRepository: terminal record outcomes and batch run summaries
//
// Both implementations are safe for concurrent use; pgxpool handles
// connection pooling.
//
// # Errors
//
// Missing rows are reported as *domain.NotFoundError and invalid arguments as
// *domain.ValidationError. Database failures are wrapped with %w.
package repository

import (
	"context"

	"github.com/helixir/pubmed-retrieval-service/internal/database"
	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/record"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// RecordRepository stores mapped records.
type RecordRepository interface {
	// SaveRecord inserts or replaces the record with the same PMID.
	SaveRecord(ctx context.Context, rec *domain.Record) error
	// GetDocument returns the stored representation of pmid.
	GetDocument(ctx context.Context, pmid string) (*record.Document, error)
}

// OutcomeRepository stores retrieval outcomes.
type OutcomeRepository interface {
	// RecordOutcome stores o. Storing the same run and PMID twice keeps the
	// later outcome.
	RecordOutcome(ctx context.Context, o domain.RetrievalOutcome) error
	// RecordBatch stores the summary of a batch run.
	RecordBatch(ctx context.Context, r domain.BatchResult) error
	// LatestOutcome returns the most recently finished outcome for pmid.
	LatestOutcome(ctx context.Context, pmid string) (*domain.StoredOutcome, error)
	// ListRunOutcomes returns the outcomes of one run ordered by PMID.
	ListRunOutcomes(ctx context.Context, runID string, limit, offset int) ([]domain.StoredOutcome, error)
}

// List pagination defaults and limits.
const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// applyPaginationDefaults clamps limit to [1, maxListLimit] and offset to >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultListLimit
	}
	if *limit > maxListLimit {
		*limit = maxListLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

// nullString maps "" to SQL NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
