// Package observability provides logging, metrics and engine event sinks for
// the retrieval service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//
// Batch and record identifiers travel in the context and are attached with
// LoggerFromContext:
//
//	ctx = observability.WithRunID(ctx, runID.String())
//	ctx = observability.WithPMID(ctx, pmid)
//	observability.LoggerFromContext(ctx, logger).Info().Msg("record started")
//
// # Event sinks
//
// The retrieval engine never logs directly. It reports record starts, state
// changes, fetch attempts and outcomes to an EventSink owned by the caller:
//
//	sink := observability.MultiSink{
//	    observability.NewLogSink(logger),
//	    observability.NewMetricsSink(metrics),
//	}
//
// # Standard Fields
//
//   - run_id: batch run identifier
//   - pmid: PubMed identifier of the record
//   - kind: identifier kind of a candidate source (doi, pii, pmc)
//   - source: candidate source name
//   - request_id: HTTP request identifier
package observability
