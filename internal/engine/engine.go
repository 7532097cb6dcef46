// Package engine drives per-record retrieval: skip records already stored,
// map the registry record, then try document candidates by DOI, PII and PMC
// until one validates.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/observability"
	"github.com/helixir/pubmed-retrieval-service/internal/pdf"
	"github.com/helixir/pubmed-retrieval-service/internal/resolver"
)

// RecordSource looks up and maps registry records.
type RecordSource interface {
	FetchByID(ctx context.Context, pmid string) (*domain.Record, error)
}

// Fetcher stores validated documents.
type Fetcher interface {
	Exists(pmid string) bool
	Path(pmid string) string
	FetchAndValidate(ctx context.Context, pmid, url string) (*pdf.Result, error)
}

// Scraper turns a candidate into the URL of the document itself.
type Scraper interface {
	ResolveEmbeddedLink(ctx context.Context, c resolver.Candidate) (string, error)
}

// OutcomeRecorder persists or publishes terminal outcomes. Recorder errors
// are logged and never change an outcome.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, o domain.RetrievalOutcome) error
	RecordBatch(ctx context.Context, r domain.BatchResult) error
}

// RecordStore keeps mapped records. Store errors are logged and never change
// an outcome.
type RecordStore interface {
	SaveRecord(ctx context.Context, rec *domain.Record) error
}

// Engine retrieves documents for records. It is safe for concurrent use.
type Engine struct {
	records   RecordSource
	store     RecordStore
	resolver  *resolver.Resolver
	scraper   Scraper
	fetcher   Fetcher
	sink      observability.EventSink
	recorders []OutcomeRecorder
	workers   int
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets the event sink. Defaults to observability.NopSink.
func WithSink(s observability.EventSink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithRecorders adds outcome recorders, called in order.
func WithRecorders(rs ...OutcomeRecorder) Option {
	return func(e *Engine) {
		for _, r := range rs {
			if r != nil {
				e.recorders = append(e.recorders, r)
			}
		}
	}
}

// WithRecordStore saves every successfully mapped record to s.
func WithRecordStore(s RecordStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithWorkers sets how many records a batch processes concurrently.
// Values below 1 mean sequential processing.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// WithLogger sets the logger used for recorder failures.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l.With().Str("component", "engine").Logger() }
}

// New creates an Engine.
func New(records RecordSource, res *resolver.Resolver, scraper Scraper, fetcher Fetcher, opts ...Option) *Engine {
	if res == nil {
		res = resolver.New(nil)
	}
	e := &Engine{
		records:  records,
		resolver: res,
		scraper:  scraper,
		fetcher:  fetcher,
		sink:     observability.NopSink{},
		workers:  1,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Workers returns the configured batch concurrency.
func (e *Engine) Workers() int {
	return e.workers
}

// tracker carries one record through the state machine.
type tracker struct {
	e       *Engine
	ctx     context.Context
	outcome domain.RetrievalOutcome
}

func (e *Engine) track(ctx context.Context, runID uuid.UUID, pmid string) *tracker {
	return &tracker{
		e:   e,
		ctx: observability.WithPMID(ctx, pmid),
		outcome: domain.RetrievalOutcome{
			RunID:     runID,
			PMID:      pmid,
			State:     domain.StatePending,
			StartedAt: e.now(),
		},
	}
}

func (t *tracker) advance(to domain.RecordState) {
	from := t.outcome.State
	t.outcome.State = to
	t.e.sink.StateChanged(t.ctx, t.outcome.PMID, from, to)
}

// Retrieve processes one record end to end. Every failure is reported in the
// returned outcome.
func (e *Engine) Retrieve(ctx context.Context, pmid string) domain.RetrievalOutcome {
	return e.retrieve(ctx, runIDFromContext(ctx), pmid)
}

func (e *Engine) retrieve(ctx context.Context, runID uuid.UUID, pmid string) domain.RetrievalOutcome {
	t := e.track(ctx, runID, pmid)

	if err := ctx.Err(); err != nil {
		return e.finish(t, cancelled(err))
	}

	// The PMID names the stored file, so it is checked before any lookup.
	if err := domain.ValidatePMID(pmid); err != nil {
		return e.rejectPMID(t, err)
	}

	if e.fetcher.Exists(pmid) {
		t.advance(domain.StateExistsLocally)
		t.outcome.Succeeded = true
		t.outcome.LocalPath = e.fetcher.Path(pmid)
		return e.finish(t, nil)
	}

	t.advance(domain.StateMapping)
	rec, err := e.records.FetchByID(t.ctx, pmid)
	if err != nil {
		t.advance(domain.StateMapFailed)
		return e.finish(t, err)
	}
	if e.store != nil {
		if serr := e.store.SaveRecord(context.WithoutCancel(t.ctx), rec); serr != nil {
			l := observability.WithRecordContext(e.logger, pmid)
			l.Warn().Err(serr).Msg("failed to save record")
		}
	}

	return e.finish(t, e.resolve(t, rec))
}

// RetrieveRecord runs the resolution phases for an already mapped record.
func (e *Engine) RetrieveRecord(ctx context.Context, rec *domain.Record) domain.RetrievalOutcome {
	t := e.track(ctx, runIDFromContext(ctx), rec.PMID)
	if err := ctx.Err(); err != nil {
		return e.finish(t, cancelled(err))
	}
	if err := domain.ValidatePMID(rec.PMID); err != nil {
		return e.rejectPMID(t, err)
	}
	t.advance(domain.StateMapping)
	return e.finish(t, e.resolve(t, rec))
}

// resolve walks DOI, PII and PMC candidates in order and stops at the first
// stored document. Kinds the record lacks are passed through without
// attempts. After cancellation the remaining kinds are passed through too, so
// every transition stays legal.
func (e *Engine) resolve(t *tracker, rec *domain.Record) error {
	var lastErr, cancelErr error

	for _, kind := range domain.RetrievalKinds {
		state, _ := domain.ResolvingState(kind)
		t.advance(state)
		if cancelErr != nil || !rec.IDs.Has(kind) {
			continue
		}

		for _, c := range e.resolver.Resolve(rec.IDs, kind) {
			if err := t.ctx.Err(); err != nil {
				cancelErr = cancelled(err)
				break
			}

			t.outcome.Attempts++
			res, url, err := e.attempt(t, kind, c)
			if err != nil {
				lastErr = err
				continue
			}

			source := c.Source
			t.outcome.Succeeded = true
			t.outcome.Source = &source
			t.outcome.SourceURL = url
			t.outcome.LocalPath = res.Path
			t.outcome.Bytes = res.Bytes
			t.outcome.Checksum = res.SHA256
			t.advance(domain.StateSucceeded)
			return nil
		}
	}

	t.advance(domain.StateFailed)
	if cancelErr != nil {
		return cancelErr
	}
	if t.outcome.Attempts == 0 {
		lastErr = domain.ErrNoIdentifier
	}
	return &domain.ExhaustedCandidatesError{PMID: rec.PMID, Attempts: t.outcome.Attempts, Last: lastErr}
}

func (e *Engine) rejectPMID(t *tracker, err error) domain.RetrievalOutcome {
	t.advance(domain.StateMapping)
	t.advance(domain.StateMapFailed)
	return e.finish(t, err)
}

func (e *Engine) attempt(t *tracker, kind domain.IdentifierType, c resolver.Candidate) (*pdf.Result, string, error) {
	start := e.now()
	ev := observability.AttemptEvent{
		PMID:    t.outcome.PMID,
		Kind:    kind,
		Source:  c.Source.Name,
		URL:     c.URL,
		Attempt: t.outcome.Attempts,
	}

	url, err := e.scraper.ResolveEmbeddedLink(t.ctx, c)
	if err != nil {
		ev.Err = err
		ev.Duration = e.now().Sub(start)
		e.sink.Attempt(t.ctx, ev)
		return nil, "", err
	}
	ev.URL = url

	res, err := e.fetcher.FetchAndValidate(t.ctx, t.outcome.PMID, url)
	ev.Duration = e.now().Sub(start)
	ev.Err = err
	if res != nil {
		ev.Bytes = res.Bytes
	}
	e.sink.Attempt(t.ctx, ev)
	if err != nil {
		return nil, url, err
	}
	return res, url, nil
}

func (e *Engine) finish(t *tracker, err error) domain.RetrievalOutcome {
	if err != nil && t.outcome.State != domain.StateFailed && t.outcome.State != domain.StateMapFailed {
		// Cancelled before any transition.
		t.outcome.State = domain.StateFailed
	}
	t.outcome.Err = err
	t.outcome.FinishedAt = e.now()

	e.sink.Outcome(t.ctx, t.outcome)
	// Outcomes of cancelled records are still recorded.
	rctx := context.WithoutCancel(t.ctx)
	l := observability.WithRecordContext(e.logger, t.outcome.PMID)
	for _, r := range e.recorders {
		if rerr := r.RecordOutcome(rctx, t.outcome); rerr != nil {
			l.Warn().Err(rerr).Msg("failed to record outcome")
		}
	}
	return t.outcome
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
}

// IsCancelled reports whether an outcome error came from cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, domain.ErrCancelled)
}

func runIDFromContext(ctx context.Context) uuid.UUID {
	if id, err := uuid.Parse(observability.RunIDFromContext(ctx)); err == nil {
		return id
	}
	return uuid.New()
}
