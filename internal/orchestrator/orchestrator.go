// Package orchestrator fans out the per-ticker VRP pipeline across a
// ticker universe with bounded concurrency, then aggregates results
// deterministically (§4.13). Concurrency uses golang.org/x/sync's
// errgroup+semaphore pair — both already direct teacher dependencies —
// generalized from the teacher's single-position order lifecycle to a
// wide, independent fan-out over many tickers.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/models"
)

// Target is one scan input: a ticker and its known/estimated earnings date.
type Target struct {
	Ticker       string
	EarningsDate time.Time
}

// Pipeline runs the full per-ticker signal pipeline (C3 -> C7 -> C3 history
// -> C8 -> C9 -> C10 -> C11 -> C13 -> C12 -> C14) and returns one
// Opportunity, or an error if the ticker could not be scored.
type Pipeline func(ctx context.Context, target Target) (models.Opportunity, error)

// Orchestrator bounds concurrent pipeline execution with a semaphore of
// width Concurrency (default 10, per §4.13).
type Orchestrator struct {
	Concurrency int64
}

// New constructs an Orchestrator with the given concurrency limit.
func New(concurrency int64) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Orchestrator{Concurrency: concurrency}
}

// Scan runs pipeline over universe, bounding concurrency at o.Concurrency.
// A ticker's failure does not abort the scan; its error is recorded under
// Failures[ticker]. If ctx is cancelled, in-flight pipelines observe
// cancellation at their next suspension point and this call returns without
// completing remaining tickers.
func (o *Orchestrator) Scan(ctx context.Context, universe []Target, pipeline Pipeline) (*models.ScanResult, error) {
	result := &models.ScanResult{
		Failures:  make(models.Failures),
		StartedAt: time.Now(),
	}

	sem := semaphore.NewWeighted(o.Concurrency)
	group, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex

	for _, target := range universe {
		target := target
		if err := sem.Acquire(gctx, 1); err != nil {
			// Context cancelled while waiting for a slot; stop launching
			// new work but let already-running pipelines finish.
			break
		}
		group.Go(func() error {
			defer sem.Release(1)

			opp, err := pipeline(gctx, target)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures[target.Ticker] = toAppError(target.Ticker, err)
				return nil // a single ticker's failure never aborts the scan
			}
			result.Opportunities = append(result.Opportunities, opp)
			return nil
		})
	}

	_ = group.Wait() // pipeline() never returns a non-nil error to errgroup; failures are recorded per-ticker
	result.FinishedAt = time.Now()

	sortOpportunities(result.Opportunities)
	return result, nil
}

func toAppError(ticker string, err error) *apperr.Error {
	if ae, ok := err.(*apperr.Error); ok {
		return ae
	}
	return apperr.Wrap(apperr.KindExternal, "orchestrator.Scan", "pipeline failed for "+ticker, err)
}

// sortOpportunities orders results by composite score descending, ties
// broken by ticker symbol ascending (§4.13).
func sortOpportunities(opps []models.Opportunity) {
	sort.Slice(opps, func(i, j int) bool {
		if opps[i].CompositeScore != opps[j].CompositeScore {
			return opps[i].CompositeScore > opps[j].CompositeScore
		}
		return opps[i].Ticker < opps[j].Ticker
	})
}
