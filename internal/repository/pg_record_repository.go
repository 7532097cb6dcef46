package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/record"
)

// Compile-time interface verification.
var _ RecordRepository = (*PgRecordRepository)(nil)

// PgRecordRepository is a PostgreSQL implementation of RecordRepository.
type PgRecordRepository struct {
	db  DBTX
	now func() time.Time
}

// NewPgRecordRepository creates a new PostgreSQL record repository.
func NewPgRecordRepository(db DBTX) *PgRecordRepository {
	return &PgRecordRepository{db: db, now: time.Now}
}

// SaveRecord upserts rec. The full Document is stored as JSONB; title,
// journal, date and the retrieval identifiers are denormalized for lookup.
func (r *PgRecordRepository) SaveRecord(ctx context.Context, rec *domain.Record) error {
	if rec == nil {
		return domain.NewValidationError("record", "record cannot be nil")
	}
	if rec.PMID == "" {
		return domain.NewValidationError("pmid", "PMID is required")
	}

	docJSON, err := json.Marshal(record.NewDocument(rec))
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	doi, _ := rec.IDs.Primary(domain.IdentifierDOI)
	pii, _ := rec.IDs.Primary(domain.IdentifierPII)
	pmc, _ := rec.IDs.Primary(domain.IdentifierPMC)

	query := `
		INSERT INTO pubmed_records (
			pmid, title, journal_title, journal_abbr, pub_date,
			doi, pii, pmc, document, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $10
		)
		ON CONFLICT (pmid) DO UPDATE SET
			title = EXCLUDED.title,
			journal_title = EXCLUDED.journal_title,
			journal_abbr = EXCLUDED.journal_abbr,
			pub_date = EXCLUDED.pub_date,
			doi = EXCLUDED.doi,
			pii = EXCLUDED.pii,
			pmc = EXCLUDED.pmc,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		rec.PMID, rec.Title, rec.Journal.Title, rec.Journal.Abbreviation, rec.PubDate.Time(),
		nullString(doi), nullString(pii), nullString(pmc), docJSON, r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// GetDocument returns the stored Document for pmid.
func (r *PgRecordRepository) GetDocument(ctx context.Context, pmid string) (*record.Document, error) {
	var docJSON []byte
	err := r.db.QueryRow(ctx, `SELECT document FROM pubmed_records WHERE pmid = $1`, pmid).Scan(&docJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("record", pmid, nil)
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	var doc record.Document
	if err := json.Unmarshal(docJSON, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &doc, nil
}
