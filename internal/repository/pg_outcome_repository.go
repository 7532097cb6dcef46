package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
)

// Compile-time interface verification.
var _ OutcomeRepository = (*PgOutcomeRepository)(nil)

const outcomeColumns = `id, run_id, pmid, state, succeeded,
			source_name, source_url, local_path, bytes, checksum,
			attempts, error, started_at, finished_at`

// PgOutcomeRepository is a PostgreSQL implementation of OutcomeRepository.
// It also serves as an engine outcome recorder.
type PgOutcomeRepository struct {
	db DBTX
}

// NewPgOutcomeRepository creates a new PostgreSQL outcome repository.
func NewPgOutcomeRepository(db DBTX) *PgOutcomeRepository {
	return &PgOutcomeRepository{db: db}
}

// RecordOutcome stores a terminal outcome.
func (r *PgOutcomeRepository) RecordOutcome(ctx context.Context, o domain.RetrievalOutcome) error {
	if o.PMID == "" {
		return domain.NewValidationError("pmid", "PMID is required")
	}
	if o.RunID == uuid.Nil {
		return domain.NewValidationError("run_id", "run ID is required")
	}
	if !o.State.IsTerminal() {
		return domain.NewValidationError("state", fmt.Sprintf("state %q is not terminal", o.State))
	}

	s := domain.NewStoredOutcome(o)
	query := `
		INSERT INTO retrieval_outcomes (
			` + outcomeColumns + `
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14
		)
		ON CONFLICT (run_id, pmid) DO UPDATE SET
			state = EXCLUDED.state,
			succeeded = EXCLUDED.succeeded,
			source_name = EXCLUDED.source_name,
			source_url = EXCLUDED.source_url,
			local_path = EXCLUDED.local_path,
			bytes = EXCLUDED.bytes,
			checksum = EXCLUDED.checksum,
			attempts = EXCLUDED.attempts,
			error = EXCLUDED.error,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at`

	_, err := r.db.Exec(ctx, query,
		s.ID, s.RunID, s.PMID, s.State, s.Succeeded,
		nullString(s.Source), nullString(s.SourceURL), nullString(s.LocalPath), s.Bytes, nullString(s.Checksum),
		s.Attempts, nullString(s.Error), s.StartedAt, s.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// RecordBatch stores the run summary.
func (r *PgOutcomeRepository) RecordBatch(ctx context.Context, b domain.BatchResult) error {
	if b.RunID == uuid.Nil {
		return domain.NewValidationError("run_id", "run ID is required")
	}

	query := `
		INSERT INTO retrieval_runs (id, total, succeeded, skipped, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			total = EXCLUDED.total,
			succeeded = EXCLUDED.succeeded,
			skipped = EXCLUDED.skipped,
			finished_at = EXCLUDED.finished_at`

	_, err := r.db.Exec(ctx, query, b.RunID, b.Total(), b.Succeeded(), b.Skipped(), b.StartedAt, b.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to record batch: %w", err)
	}
	return nil
}

// LatestOutcome returns the most recently finished outcome for pmid.
func (r *PgOutcomeRepository) LatestOutcome(ctx context.Context, pmid string) (*domain.StoredOutcome, error) {
	query := `
		SELECT ` + outcomeColumns + `
		FROM retrieval_outcomes
		WHERE pmid = $1
		ORDER BY finished_at DESC
		LIMIT 1`

	s, err := scanOutcome(r.db.QueryRow(ctx, query, pmid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("outcome", pmid, nil)
		}
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}
	return s, nil
}

// ListRunOutcomes returns a page of the outcomes recorded for runID.
func (r *PgOutcomeRepository) ListRunOutcomes(ctx context.Context, runID string, limit, offset int) ([]domain.StoredOutcome, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, domain.NewValidationError("run_id", "run ID must be a UUID")
	}
	applyPaginationDefaults(&limit, &offset)

	query := `
		SELECT ` + outcomeColumns + `
		FROM retrieval_outcomes
		WHERE run_id = $1
		ORDER BY pmid
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []domain.StoredOutcome{}
	for rows.Next() {
		s, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcomes: %w", err)
	}
	return outcomes, nil
}

// scanOutcome reads one row selected with outcomeColumns. pgx.Rows satisfies
// pgx.Row, so it serves both single-row and list queries.
func scanOutcome(row pgx.Row) (*domain.StoredOutcome, error) {
	var (
		s                                          domain.StoredOutcome
		source, sourceURL, localPath, sum, errText *string
	)
	err := row.Scan(
		&s.ID, &s.RunID, &s.PMID, &s.State, &s.Succeeded,
		&source, &sourceURL, &localPath, &s.Bytes, &sum,
		&s.Attempts, &errText, &s.StartedAt, &s.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Source = derefString(source)
	s.SourceURL = derefString(sourceURL)
	s.LocalPath = derefString(localPath)
	s.Checksum = derefString(sum)
	s.Error = derefString(errText)
	return &s, nil
}
