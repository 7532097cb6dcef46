package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/observability"
	"github.com/helixir/pubmed-retrieval-service/internal/pdf"
	"github.com/helixir/pubmed-retrieval-service/internal/resolver"
)

// --- fakes ---

type fakeRecords struct {
	mu      sync.Mutex
	records map[string]*domain.Record
	errs    map[string]error
	calls   []string
}

func (f *fakeRecords) FetchByID(_ context.Context, pmid string) (*domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pmid)
	if err, ok := f.errs[pmid]; ok {
		return nil, err
	}
	if r, ok := f.records[pmid]; ok {
		return r, nil
	}
	return nil, domain.NewNotFoundError("pubmed record", pmid, nil)
}

type fakeFetcher struct {
	mu       sync.Mutex
	dir      string
	existing map[string]bool
	// succeed lists URLs that validate; every other URL fails.
	succeed map[string]bool
	failure error
	calls   []string
}

func newFakeFetcher(t *testing.T) *fakeFetcher {
	return &fakeFetcher{
		dir:      t.TempDir(),
		existing: map[string]bool{},
		succeed:  map[string]bool{},
		failure:  domain.NewTransportError("", 404, nil),
	}
}

func (f *fakeFetcher) Exists(pmid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[pmid]
}

func (f *fakeFetcher) Path(pmid string) string {
	return filepath.Join(f.dir, pmid+".pdf")
}

func (f *fakeFetcher) FetchAndValidate(_ context.Context, pmid, url string) (*pdf.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if f.succeed[url] {
		return &pdf.Result{Path: f.Path(pmid), Bytes: 42, SHA256: "abc", Pages: 1}, nil
	}
	return nil, f.failure
}

func (f *fakeFetcher) fetchCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type passthroughScraper struct{}

func (passthroughScraper) ResolveEmbeddedLink(_ context.Context, c resolver.Candidate) (string, error) {
	if c.Source.RequiresDOMScrape {
		return "", resolver.ErrNoEmbeddedLink
	}
	return c.URL, nil
}

type transition struct {
	from, to domain.RecordState
}

type recordingSink struct {
	observability.NopSink
	mu          sync.Mutex
	transitions map[string][]transition
	attempts    []observability.AttemptEvent
	outcomes    []domain.RetrievalOutcome
	started     []int
	batches     int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{transitions: map[string][]transition{}}
}

func (s *recordingSink) RecordStarted(_ context.Context, _ string, index, _ int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, index)
}

func (s *recordingSink) StateChanged(_ context.Context, pmid string, from, to domain.RecordState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions[pmid] = append(s.transitions[pmid], transition{from, to})
}

func (s *recordingSink) Attempt(_ context.Context, e observability.AttemptEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, e)
}

func (s *recordingSink) Outcome(_ context.Context, o domain.RetrievalOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
}

func (s *recordingSink) BatchCompleted(context.Context, domain.BatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
}

func (s *recordingSink) states(pmid string) []domain.RecordState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RecordState
	for _, tr := range s.transitions[pmid] {
		out = append(out, tr.to)
	}
	return out
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []domain.RetrievalOutcome
	batches  []domain.BatchResult
	err      error
}

func (r *fakeRecorder) RecordOutcome(_ context.Context, o domain.RetrievalOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return r.err
}

func (r *fakeRecorder) RecordBatch(_ context.Context, b domain.BatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
	return r.err
}

// --- fixtures ---

func testCatalog() resolver.Catalog {
	src := func(kind domain.IdentifierType, name, tmpl string) domain.CandidateSource {
		return domain.CandidateSource{Kind: kind, Name: name, URLTemplate: tmpl}
	}
	return resolver.Catalog{
		src(domain.IdentifierDOI, "doi-a", "https://a.example/{doi}"),
		src(domain.IdentifierDOI, "doi-b", "https://b.example/{doi}"),
		src(domain.IdentifierPII, "pii-a", "https://a.example/pii/{pii}"),
		src(domain.IdentifierPII, "pii-b", "https://b.example/pii/{pii}"),
		src(domain.IdentifierPMC, "pmc-a", "https://a.example/pmc/{pmc}"),
		src(domain.IdentifierPMC, "pmc-b", "https://b.example/pmc/{pmc_lower}"),
	}
}

func testRecord(pmid string, ids ...domain.Identifier) *domain.Record {
	return &domain.Record{
		PMID:    pmid,
		IDs:     ids,
		Title:   "A test article",
		Journal: domain.Journal{Title: "Journal of Tests", Abbreviation: "J Tests"},
		PubDate: domain.PublicationDate{Year: 2020, Month: 1, Day: 1},
	}
}

func allKinds() []domain.Identifier {
	return []domain.Identifier{
		{Type: domain.IdentifierPubMed, Value: "1"},
		{Type: domain.IdentifierDOI, Value: "10.1/x"},
		{Type: domain.IdentifierPII, Value: "S1"},
		{Type: domain.IdentifierPMC, Value: "PMC1"},
	}
}

func assertLegalTransitions(t *testing.T, sink *recordingSink, pmid string) {
	t.Helper()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	trs := sink.transitions[pmid]
	require.NotEmpty(t, trs)
	assert.Equal(t, domain.StatePending, trs[0].from)
	for _, tr := range trs {
		assert.True(t, tr.from.CanTransitionTo(tr.to), "illegal transition %s -> %s", tr.from, tr.to)
	}
	assert.True(t, trs[len(trs)-1].to.IsTerminal())
}

// --- tests ---

func TestRetrieve_TriesCandidatesInStrictOrder(t *testing.T) {
	records := &fakeRecords{records: map[string]*domain.Record{"1": testRecord("1", allKinds()...)}}
	fetcher := newFakeFetcher(t)
	sink := newRecordingSink()
	e := New(records, resolver.New(testCatalog()), passthroughScraper{}, fetcher, WithSink(sink))

	o := e.Retrieve(context.Background(), "1")

	assert.Equal(t, []string{
		"https://a.example/10.1/x",
		"https://b.example/10.1/x",
		"https://a.example/pii/S1",
		"https://b.example/pii/S1",
		"https://a.example/pmc/PMC1",
		"https://b.example/pmc/pmc1",
	}, fetcher.fetchCalls())

	assert.Equal(t, domain.StateFailed, o.State)
	assert.False(t, o.Succeeded)
	assert.Equal(t, 6, o.Attempts)
	assert.ErrorIs(t, o.Err, domain.ErrExhaustedCandidates)
	assert.ErrorIs(t, o.Err, domain.ErrTransport)
	assert.Nil(t, o.Source)

	assert.Equal(t, []domain.RecordState{
		domain.StateMapping,
		domain.StateResolvingDOI,
		domain.StateResolvingPII,
		domain.StateResolvingPMC,
		domain.StateFailed,
	}, sink.states("1"))
	assertLegalTransitions(t, sink, "1")
	require.Len(t, sink.attempts, 6)
	assert.Equal(t, domain.IdentifierPII, sink.attempts[2].Kind)
	assert.Equal(t, observability.AttemptTransportError, sink.attempts[2].Result())
}

func TestRetrieve_StopsAtFirstSuccess(t *testing.T) {
	records := &fakeRecords{records: map[string]*domain.Record{"1": testRecord("1", allKinds()...)}}
	fetcher := newFakeFetcher(t)
	fetcher.succeed["https://a.example/pii/S1"] = true
	sink := newRecordingSink()
	e := New(records, resolver.New(testCatalog()), passthroughScraper{}, fetcher, WithSink(sink))

	o := e.Retrieve(context.Background(), "1")

	require.True(t, o.Succeeded)
	assert.NoError(t, o.Err)
	assert.Equal(t, domain.StateSucceeded, o.State)
	assert.Equal(t, 3, o.Attempts)
	require.NotNil(t, o.Source)
	assert.Equal(t, "pii-a", o.Source.Name)
	assert.Equal(t, "https://a.example/pii/S1", o.SourceURL)
	assert.Equal(t, fetcher.Path("1"), o.LocalPath)
	assert.Equal(t, int64(42), o.Bytes)
	assert.Equal(t, "abc", o.Checksum)
	assert.Len(t, fetcher.fetchCalls(), 3)
	assertLegalTransitions(t, sink, "1")
}

func TestRetrieve_SkipsExistingDocument(t *testing.T) {
	records := &fakeRecords{}
	fetcher := newFakeFetcher(t)
	fetcher.existing["1"] = true
	sink := newRecordingSink()
	e := New(records, resolver.New(testCatalog()), passthroughScraper{}, fetcher, WithSink(sink))

	o := e.Retrieve(context.Background(), "1")

	assert.Equal(t, domain.StateExistsLocally, o.State)
	assert.True(t, o.Succeeded)
	assert.NoError(t, o.Err)
	assert.Equal(t, fetcher.Path("1"), o.LocalPath)
	assert.Zero(t, o.Attempts)
	assert.Empty(t, records.calls, "no registry lookup")
	assert.Empty(t, fetcher.fetchCalls(), "no document fetch")
	assert.Equal(t, []domain.RecordState{domain.StateExistsLocally}, sink.states("1"))
}

func TestRetrieve_RejectsNonNumericPMID(t *testing.T) {
	records := &fakeRecords{}
	fetcher := newFakeFetcher(t)
	fetcher.existing["../x"] = true
	sink := newRecordingSink()
	e := New(records, resolver.New(testCatalog()), passthroughScraper{}, fetcher, WithSink(sink))

	o := e.Retrieve(context.Background(), "../x")

	assert.Equal(t, domain.StateMapFailed, o.State)
	assert.False(t, o.Succeeded)
	assert.Empty(t, o.LocalPath)
	var ve *domain.ValidationError
	require.ErrorAs(t, o.Err, &ve)
	assert.Equal(t, "pmid", ve.Field)
	assert.Empty(t, records.calls)
	assert.Equal(t, []domain.RecordState{domain.StateMapping, domain.StateMapFailed}, sink.states("../x"))
	assertLegalTransitions(t, sink, "../x")
}

func TestRetrieveRecord_RejectsNonNumericPMID(t *testing.T) {
	fetcher := newFakeFetcher(t)
	e := New(&fakeRecords{}, resolver.New(testCatalog()), passthroughScraper{}, fetcher)

	o := e.RetrieveRecord(context.Background(), testRecord("1/2", allKinds()...))

	assert.Equal(t, domain.StateMapFailed, o.State)
	assert.ErrorIs(t, o.Err, domain.ErrInvalidInput)
	assert.Empty(t, fetcher.fetchCalls())
}

func TestRetrieve_MapFailure(t *testing.T) {
	mapErr := domain.NewMappingError("1", "pubdate", errors.New("unparseable"))
	records := &fakeRecords{errs: map[string]error{"1": mapErr}}
	fetcher := newFakeFetcher(t)
	sink := newRecordingSink()
	e := New(records, resolver.New(testCatalog()), passthroughScraper{}, fetcher, WithSink(sink))

	o := e.Retrieve(context.Background(), "1")

	assert.Equal(t, domain.StateMapFailed, o.State)
	assert.False(t, o.Succeeded)
	assert.ErrorIs(t, o.Err, domain.ErrMapping)
	assert.Empty(t, fetcher.fetchCalls())
	assertLegalTransitions(t, sink, "1")
}

func TestRetrieve_RegistryNotFound(t *testing.T) {
	e := New(&fakeRecords{}, resolver.New(testCatalog()), passthroughScraper{}, newFakeFetcher(t))

	o := e.Retrieve(context.Background(), "404")

	assert.Equal(t, domain.StateMapFailed, o.State)
	assert.ErrorIs(t, o.Err, domain.ErrNotFound)
}

func TestRetrieve_PassesThroughMissingKinds(t *testing.T) {
	rec := testRecord("1", domain.Identifier{Type: domain.IdentifierPMC, Value: "PMC7"})
	fetcher := newFakeFetcher(t)
	fetcher.succeed["https://b.example/pmc/pmc7"] = true
	sink := newRecordingSink()
	e := New(&fakeRecords{records: map[string]*domain.Record{"1": rec}}, resolver.New(testCatalog()), passthroughScraper{}, fetcher, WithSink(sink))

	o := e.Retrieve(context.Background(), "1")

	require.True(t, o.Succeeded)
	assert.Equal(t, 2, o.Attempts)
	assert.Equal(t, []domain.RecordState{
		domain.StateMapping,
		domain.StateResolvingDOI,
		domain.StateResolvingPII,
		domain.StateResolvingPMC,
		domain.StateSucceeded,
	}, sink.states("1"))
	assertLegalTransitions(t, sink, "1")
}

func TestRetrieve_NoIdentifiers(t *testing.T) {
	rec := testRecord("1", domain.Identifier{Type: domain.IdentifierPubMed, Value: "1"})
	e := New(&fakeRecords{records: map[string]*domain.Record{"1": rec}}, resolver.New(testCatalog()), passthroughScraper{}, newFakeFetcher(t))

	o := e.Retrieve(context.Background(), "1")

	assert.Equal(t, domain.StateFailed, o.State)
	assert.Zero(t, o.Attempts)
	assert.ErrorIs(t, o.Err, domain.ErrExhaustedCandidates)
	assert.ErrorIs(t, o.Err, domain.ErrNoIdentifier)
}

func TestRetrieve_ScrapeFailureMovesOn(t *testing.T) {
	catalog := resolver.Catalog{
		{Kind: domain.IdentifierDOI, Name: "mirror", URLTemplate: "https://m.example/{doi}", RequiresDOMScrape: true, Selector: "iframe", Attribute: "src"},
		{Kind: domain.IdentifierDOI, Name: "publisher", URLTemplate: "https://p.example/{doi}"},
	}
	rec := testRecord("1", domain.Identifier{Type: domain.IdentifierDOI, Value: "10.1/x"})
	fetcher := newFakeFetcher(t)
	fetcher.succeed["https://p.example/10.1/x"] = true
	sink := newRecordingSink()
	e := New(&fakeRecords{records: map[string]*domain.Record{"1": rec}}, resolver.New(catalog), passthroughScraper{}, fetcher, WithSink(sink))

	o := e.Retrieve(context.Background(), "1")

	require.True(t, o.Succeeded)
	assert.Equal(t, 2, o.Attempts)
	assert.Equal(t, []string{"https://p.example/10.1/x"}, fetcher.fetchCalls())
	require.Len(t, sink.attempts, 2)
	assert.Equal(t, observability.AttemptScrapeFailed, sink.attempts[0].Result())
	assert.Equal(t, observability.AttemptSucceeded, sink.attempts[1].Result())
}

func TestRetrieve_CancelledContext(t *testing.T) {
	records := &fakeRecords{records: map[string]*domain.Record{"1": testRecord("1", allKinds()...)}}
	fetcher := newFakeFetcher(t)
	e := New(records, resolver.New(testCatalog()), passthroughScraper{}, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := e.Retrieve(ctx, "1")
	assert.Equal(t, domain.StateFailed, o.State)
	assert.ErrorIs(t, o.Err, context.Canceled)
	assert.True(t, IsCancelled(o.Err))
	assert.Empty(t, records.calls)
	assert.Empty(t, fetcher.fetchCalls())
}

// cancellingFetcher cancels the context on its first call.
type cancellingFetcher struct {
	*fakeFetcher
	cancel context.CancelFunc
}

func (f *cancellingFetcher) FetchAndValidate(ctx context.Context, pmid, url string) (*pdf.Result, error) {
	f.cancel()
	return f.fakeFetcher.FetchAndValidate(ctx, pmid, url)
}

func TestRetrieve_CancelledMidRecord(t *testing.T) {
	records := &fakeRecords{records: map[string]*domain.Record{"1": testRecord("1", allKinds()...)}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := &cancellingFetcher{fakeFetcher: newFakeFetcher(t), cancel: cancel}
	sink := newRecordingSink()
	e := New(records, resolver.New(testCatalog()), passthroughScraper{}, fetcher, WithSink(sink))

	o := e.Retrieve(ctx, "1")

	assert.Equal(t, domain.StateFailed, o.State)
	assert.Equal(t, 1, o.Attempts)
	assert.True(t, IsCancelled(o.Err))
	assert.Len(t, fetcher.fetchCalls(), 1)
	assertLegalTransitions(t, sink, "1")
}

func TestRetrieveRecord(t *testing.T) {
	fetcher := newFakeFetcher(t)
	fetcher.succeed["https://a.example/10.1/x"] = true
	records := &fakeRecords{}
	e := New(records, resolver.New(testCatalog()), passthroughScraper{}, fetcher)

	o := e.RetrieveRecord(context.Background(), testRecord("1", allKinds()...))

	assert.True(t, o.Succeeded)
	assert.Equal(t, "doi-a", o.Source.Name)
	assert.Empty(t, records.calls)
}

func TestRetrieve_RecordersReceiveOutcome(t *testing.T) {
	fetcher := newFakeFetcher(t)
	fetcher.existing["1"] = true
	ok := &fakeRecorder{}
	failing := &fakeRecorder{err: errors.New("db down")}
	e := New(&fakeRecords{}, resolver.New(testCatalog()), passthroughScraper{}, fetcher, WithRecorders(failing, nil, ok))

	o := e.Retrieve(context.Background(), "1")

	assert.True(t, o.Succeeded, "recorder errors do not change the outcome")
	require.Len(t, ok.outcomes, 1)
	assert.Equal(t, "1", ok.outcomes[0].PMID)
	require.Len(t, failing.outcomes, 1)
}

func TestRetrieve_RunIDFromContext(t *testing.T) {
	fetcher := newFakeFetcher(t)
	fetcher.existing["1"] = true
	e := New(&fakeRecords{}, nil, passthroughScraper{}, fetcher)

	runID := "6f1c2a9e-5b1d-4c7e-9a43-3e2f1d0c9b8a"
	o := e.Retrieve(observability.WithRunID(context.Background(), runID), "1")
	assert.Equal(t, runID, o.RunID.String())

	o = e.Retrieve(context.Background(), "1")
	assert.NotEqual(t, runID, o.RunID.String())
}

func TestWithWorkers(t *testing.T) {
	e := New(&fakeRecords{}, nil, passthroughScraper{}, newFakeFetcher(t), WithWorkers(0))
	assert.Equal(t, 1, e.Workers())

	e = New(&fakeRecords{}, nil, passthroughScraper{}, newFakeFetcher(t), WithWorkers(4))
	assert.Equal(t, 4, e.Workers())
}

type fakeStore struct {
	mu    sync.Mutex
	saved []string
	ctxOK []bool
	err   error
}

func (s *fakeStore) SaveRecord(ctx context.Context, rec *domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, rec.PMID)
	s.ctxOK = append(s.ctxOK, ctx.Err() == nil)
	return s.err
}

func TestRetrieve_SavesMappedRecord(t *testing.T) {
	records := &fakeRecords{
		records: map[string]*domain.Record{"1": testRecord("1", allKinds()...)},
		errs:    map[string]error{"2": domain.NewMappingError("2", "pubdate", errors.New("bad"))},
	}
	store := &fakeStore{err: errors.New("db down")}
	fetcher := newFakeFetcher(t)
	fetcher.existing["3"] = true
	e := New(records, resolver.New(testCatalog()), passthroughScraper{}, fetcher, WithRecordStore(store))

	o1 := e.Retrieve(context.Background(), "1")
	o2 := e.Retrieve(context.Background(), "2")
	o3 := e.Retrieve(context.Background(), "3")

	assert.Equal(t, domain.StateFailed, o1.State, "store errors do not change the outcome")
	assert.Equal(t, domain.StateMapFailed, o2.State)
	assert.Equal(t, domain.StateExistsLocally, o3.State)
	assert.Equal(t, []string{"1"}, store.saved)
}

type ctxRecorder struct {
	fakeRecorder
	live []bool
}

func (r *ctxRecorder) RecordOutcome(ctx context.Context, o domain.RetrievalOutcome) error {
	r.mu.Lock()
	r.live = append(r.live, ctx.Err() == nil)
	r.mu.Unlock()
	return r.fakeRecorder.RecordOutcome(ctx, o)
}

func TestRetrieve_RecordersOutliveCancellation(t *testing.T) {
	records := &fakeRecords{records: map[string]*domain.Record{"1": testRecord("1", allKinds()...)}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := &cancellingFetcher{fakeFetcher: newFakeFetcher(t), cancel: cancel}
	recorder := &ctxRecorder{}
	e := New(records, resolver.New(testCatalog()), passthroughScraper{}, fetcher, WithRecorders(recorder))

	o := e.Retrieve(ctx, "1")

	require.True(t, IsCancelled(o.Err))
	assert.Equal(t, []bool{true}, recorder.live)
}
