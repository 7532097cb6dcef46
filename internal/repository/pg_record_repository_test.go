package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/record"
)

func newTestRecord() *domain.Record {
	return &domain.Record{
		PMID: "31452104",
		IDs: domain.IdentifierSet{
			{Type: domain.IdentifierPubMed, Value: "31452104"},
			{Type: domain.IdentifierDOI, Value: "10.3892/or.2019.7285"},
			{Type: domain.IdentifierPMC, Value: "PMC6775803"},
		},
		Title:    "Long non-coding RNA in cancer.",
		Abstract: "Background text.",
		Journal:  domain.Journal{Title: "Oncology reports", Abbreviation: "Oncol Rep"},
		Language: "eng",
		PubDate:  domain.PublicationDate{Year: 2019, Month: 11, Day: 1},
	}
}

func TestNewPgRecordRepository(t *testing.T) {
	repo := NewPgRecordRepository(nil)
	assert.NotNil(t, repo)
	assert.Nil(t, repo.db)
}

func TestPgRecordRepository_SaveRecord(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("upserts record with denormalized identifiers", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRecordRepository(mock)
		repo.now = func() time.Time { return now }
		rec := newTestRecord()

		doi := "10.3892/or.2019.7285"
		pmc := "PMC6775803"
		mock.ExpectExec("INSERT INTO pubmed_records .* ON CONFLICT \\(pmid\\) DO UPDATE").
			WithArgs(
				rec.PMID, rec.Title, "Oncology reports", "Oncol Rep", rec.PubDate.Time(),
				&doi, (*string)(nil), &pmc, pgxmock.AnyArg(), now,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.SaveRecord(ctx, rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil record", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		err = NewPgRecordRepository(mock).SaveRecord(ctx, nil)

		var validationErr *domain.ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "record", validationErr.Field)
	})

	t.Run("missing pmid", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rec := newTestRecord()
		rec.PMID = ""
		err = NewPgRecordRepository(mock).SaveRecord(ctx, rec)

		var validationErr *domain.ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "pmid", validationErr.Field)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("wraps database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO pubmed_records").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("connection reset"))

		err = NewPgRecordRepository(mock).SaveRecord(ctx, newTestRecord())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save record")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgRecordRepository_GetDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored document", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		want := record.NewDocument(newTestRecord())
		docJSON, err := json.Marshal(want)
		require.NoError(t, err)

		mock.ExpectQuery("SELECT document FROM pubmed_records WHERE pmid = \\$1").
			WithArgs("31452104").
			WillReturnRows(pgxmock.NewRows([]string{"document"}).AddRow(docJSON))

		got, err := NewPgRecordRepository(mock).GetDocument(ctx, "31452104")
		require.NoError(t, err)
		assert.Equal(t, want, *got)
		assert.Equal(t, "2019-11-01", got.PubDate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT document FROM pubmed_records").
			WithArgs("1").
			WillReturnError(pgx.ErrNoRows)

		got, err := NewPgRecordRepository(mock).GetDocument(ctx, "1")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt document", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT document FROM pubmed_records").
			WithArgs("1").
			WillReturnRows(pgxmock.NewRows([]string{"document"}).AddRow([]byte(`{invalid json`)))

		_, err = NewPgRecordRepository(mock).GetDocument(ctx, "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal document")
	})
}
