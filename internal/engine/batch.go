package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/observability"
)

// Run processes pmids with the configured number of workers and returns one
// outcome per distinct PMID in input order. Records not started when ctx is
// cancelled are reported as failed.
func (e *Engine) Run(ctx context.Context, pmids []string) domain.BatchResult {
	runID := uuid.New()
	ctx = observability.WithRunID(ctx, runID.String())

	queue := Dedupe(pmids)
	result := domain.BatchResult{
		RunID:     runID,
		Outcomes:  make([]domain.RetrievalOutcome, len(queue)),
		StartedAt: e.now(),
	}

	started := make([]bool, len(queue))
	jobs := make(chan int)

	workers := e.workers
	if workers > len(queue) {
		workers = len(queue)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				e.sink.RecordStarted(ctx, queue[i], i+1, len(queue))
				result.Outcomes[i] = e.retrieve(ctx, runID, queue[i])
			}
		}()
	}

feed:
	for i := range queue {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- i:
			started[i] = true
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i, ok := range started {
		if !ok {
			result.Outcomes[i] = e.retrieve(ctx, runID, queue[i])
		}
	}

	result.FinishedAt = e.now()
	e.sink.BatchCompleted(ctx, result)
	rctx := context.WithoutCancel(ctx)
	l := observability.WithRunContext(e.logger, runID.String())
	for _, r := range e.recorders {
		if err := r.RecordBatch(rctx, result); err != nil {
			l.Warn().Err(err).Msg("failed to record batch")
		}
	}
	return result
}

// Dedupe trims pmids, drops blanks and keeps the first occurrence of each.
func Dedupe(pmids []string) []string {
	seen := make(map[string]struct{}, len(pmids))
	out := make([]string, 0, len(pmids))
	for _, p := range pmids {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
