package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
)

// Attempt fetch results used as metric labels.
const (
	AttemptSucceeded       = "succeeded"
	AttemptTransportError  = "transport_error"
	AttemptInvalidDocument = "invalid_document"
	AttemptScrapeFailed    = "scrape_failed"
)

// AttemptEvent describes one fetch attempt against one candidate source.
type AttemptEvent struct {
	PMID     string
	Kind     domain.IdentifierType
	Source   string
	URL      string
	Attempt  int
	Duration time.Duration
	Bytes    int64
	Err      error
}

// Result classifies the attempt for metrics and logs.
func (e AttemptEvent) Result() string {
	switch {
	case e.Err == nil:
		return AttemptSucceeded
	case errors.Is(e.Err, domain.ErrInvalidDocument):
		return AttemptInvalidDocument
	case errors.Is(e.Err, domain.ErrTransport):
		return AttemptTransportError
	default:
		return AttemptScrapeFailed
	}
}

// EventSink receives structured events from the retrieval engine. Sinks must
// be safe for concurrent use.
type EventSink interface {
	RecordStarted(ctx context.Context, pmid string, index, total int)
	StateChanged(ctx context.Context, pmid string, from, to domain.RecordState)
	Attempt(ctx context.Context, e AttemptEvent)
	Outcome(ctx context.Context, o domain.RetrievalOutcome)
	BatchCompleted(ctx context.Context, r domain.BatchResult)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) RecordStarted(context.Context, string, int, int) {}
func (NopSink) StateChanged(context.Context, string, domain.RecordState, domain.RecordState) {}
func (NopSink) Attempt(context.Context, AttemptEvent) {}
func (NopSink) Outcome(context.Context, domain.RetrievalOutcome) {}
func (NopSink) BatchCompleted(context.Context, domain.BatchResult) {}

// LogSink writes engine events to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "engine").Logger()}
}

func (s *LogSink) RecordStarted(ctx context.Context, pmid string, index, total int) {
	l := LoggerFromContext(ctx, s.logger)
	l.Info().
		Str("pmid", pmid).
		Str("progress", fmt.Sprintf("%d/%d", index, total)).
		Msg("record started")
}

func (s *LogSink) StateChanged(ctx context.Context, pmid string, from, to domain.RecordState) {
	l := LoggerFromContext(ctx, s.logger)
	l.Debug().Str("pmid", pmid).Str("from", string(from)).Str("to", string(to)).Msg("state changed")
}

func (s *LogSink) Attempt(ctx context.Context, e AttemptEvent) {
	l := WithSourceContext(LoggerFromContext(ctx, s.logger), string(e.Kind), e.Source)
	ev := l.Info()
	if e.Err != nil {
		ev = l.Warn().Err(e.Err)
	}
	ev.Str("pmid", e.PMID).
		Str("url", e.URL).
		Int("attempt", e.Attempt).
		Dur("duration", e.Duration).
		Str("result", e.Result()).
		Msg("fetch attempt")
}

func (s *LogSink) Outcome(ctx context.Context, o domain.RetrievalOutcome) {
	l := LoggerFromContext(ctx, s.logger)
	ev := l.Info()
	if !o.Succeeded {
		ev = l.Error().Err(o.Err)
	}
	if o.Source != nil {
		ev = ev.Str("source", o.Source.Name).Str("source_url", o.SourceURL)
	}
	ev.Str("pmid", o.PMID).
		Str("state", string(o.State)).
		Int("attempts", o.Attempts).
		Dur("duration", o.Duration()).
		Msg("record finished")
}

func (s *LogSink) BatchCompleted(ctx context.Context, r domain.BatchResult) {
	l := LoggerFromContext(ctx, s.logger)
	l.Info().
		Str("run_id", r.RunID.String()).
		Int("total", r.Total()).
		Int("succeeded", r.Succeeded()).
		Int("skipped", r.Skipped()).
		Dur("duration", r.FinishedAt.Sub(r.StartedAt)).
		Msg("batch completed")
}

// MetricsSink turns engine events into Prometheus metrics.
type MetricsSink struct {
	NopSink
	metrics *Metrics
}

// NewMetricsSink creates a MetricsSink.
func NewMetricsSink(m *Metrics) *MetricsSink {
	return &MetricsSink{metrics: m}
}

func (s *MetricsSink) Attempt(_ context.Context, e AttemptEvent) {
	s.metrics.RecordFetchAttempt(string(e.Kind), e.Result(), e.Duration)
	if e.Err == nil && e.Bytes > 0 {
		s.metrics.RecordDocumentBytes(e.Bytes)
	}
}

func (s *MetricsSink) Outcome(_ context.Context, o domain.RetrievalOutcome) {
	s.metrics.RecordRecordProcessed(string(o.State))
}

func (s *MetricsSink) BatchCompleted(_ context.Context, r domain.BatchResult) {
	s.metrics.RecordBatchCompleted(r.FinishedAt.Sub(r.StartedAt))
}

// MultiSink fans every event out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) RecordStarted(ctx context.Context, pmid string, index, total int) {
	for _, s := range m {
		s.RecordStarted(ctx, pmid, index, total)
	}
}

func (m MultiSink) StateChanged(ctx context.Context, pmid string, from, to domain.RecordState) {
	for _, s := range m {
		s.StateChanged(ctx, pmid, from, to)
	}
}

func (m MultiSink) Attempt(ctx context.Context, e AttemptEvent) {
	for _, s := range m {
		s.Attempt(ctx, e)
	}
}

func (m MultiSink) Outcome(ctx context.Context, o domain.RetrievalOutcome) {
	for _, s := range m {
		s.Outcome(ctx, o)
	}
}

func (m MultiSink) BatchCompleted(ctx context.Context, r domain.BatchResult) {
	for _, s := range m {
		s.BatchCompleted(ctx, r)
	}
}
