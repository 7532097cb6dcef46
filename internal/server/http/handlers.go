package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/engine"
	"github.com/helixir/pubmed-retrieval-service/internal/record"
)

// Validation constants.
const (
	maxBatchSize       = 500
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// retrievalRequest is the JSON request body for a batch run.
type retrievalRequest struct {
	PMIDs []string `json:"pmids"`
}

// getRecord handles GET /records/{pmid}. The record is fetched from the
// registry and mapped on every call; when a record repository is configured
// the mapped record is stored as well.
func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pmid, ok := parsePMID(w, chi.URLParam(r, "pmid"))
	if !ok {
		return
	}

	rec, err := s.records.FetchByID(ctx, pmid)
	if err != nil {
		s.logger.Debug().Err(err).Str("pmid", pmid).Msg("record lookup failed")
		writeDomainError(w, err)
		return
	}

	if s.recordRepo != nil {
		if err := s.recordRepo.SaveRecord(context.WithoutCancel(ctx), rec); err != nil {
			s.logger.Warn().Err(err).Str("pmid", pmid).Msg("failed to save record")
		}
	}

	writeJSON(w, http.StatusOK, record.NewDocument(rec))
}

// getStoredRecord handles GET /records/{pmid}/stored.
func (s *Server) getStoredRecord(w http.ResponseWriter, r *http.Request) {
	pmid, ok := parsePMID(w, chi.URLParam(r, "pmid"))
	if !ok {
		return
	}
	if s.recordRepo == nil {
		writeError(w, http.StatusNotFound, "record storage is disabled")
		return
	}

	doc, err := s.recordRepo.GetDocument(r.Context(), pmid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// startRetrieval handles POST /retrievals. The batch runs synchronously and
// the response carries one outcome per distinct PMID in input order.
func (s *Server) startRetrieval(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req retrievalRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	pmids := engine.Dedupe(req.PMIDs)
	if len(pmids) == 0 {
		writeError(w, http.StatusBadRequest, "pmids is required")
		return
	}
	if len(pmids) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("pmids must have at most %d entries", maxBatchSize))
		return
	}
	for _, pmid := range pmids {
		if _, ok := parsePMID(w, pmid); !ok {
			return
		}
	}

	result := s.runner.Run(r.Context(), pmids)
	s.logger.Info().
		Str("run_id", result.RunID.String()).
		Int("total", result.Total()).
		Int("succeeded", result.Succeeded()).
		Msg("retrieval completed")

	writeJSON(w, http.StatusOK, batchResultToResponse(result))
}

// getLatestOutcome handles GET /outcomes/{pmid}.
func (s *Server) getLatestOutcome(w http.ResponseWriter, r *http.Request) {
	pmid, ok := parsePMID(w, chi.URLParam(r, "pmid"))
	if !ok {
		return
	}
	if s.outcomeRepo == nil {
		writeError(w, http.StatusNotFound, "outcome storage is disabled")
		return
	}

	outcome, err := s.outcomeRepo.LatestOutcome(r.Context(), pmid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// listRunOutcomes handles GET /runs/{runID}/outcomes.
func (s *Server) listRunOutcomes(w http.ResponseWriter, r *http.Request) {
	if s.outcomeRepo == nil {
		writeError(w, http.StatusNotFound, "outcome storage is disabled")
		return
	}

	limit, offset := parsePaginationParams(r)
	outcomes, err := s.outcomeRepo.ListRunOutcomes(r.Context(), chi.URLParam(r, "runID"), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listOutcomesResponse{
		Outcomes: outcomes,
		Limit:    limit,
		Offset:   offset,
	})
}

// writeDomainError maps domain errors to appropriate HTTP status codes
// and writes a JSON error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrTransport):
		writeError(w, http.StatusBadGateway, "registry unavailable")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrMapping):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case engine.IsCancelled(err), errors.Is(err, context.Canceled):
		writeError(w, http.StatusConflict, "operation cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parsePMID checks that s is a numeric PMID, writing a 400 error response if not.
func parsePMID(w http.ResponseWriter, s string) (string, bool) {
	if err := domain.ValidatePMID(s); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return s, true
}

// parsePaginationParams extracts limit and offset from query parameters.
// Bounds are applied by the repository.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}
