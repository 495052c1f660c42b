package trip

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/tripcarbon/pkg/emissions"
)

// BatchResult is the outcome for one trip of a batch. Exactly one of Plan
// and Error is set.
type BatchResult struct {
	Index int    `json:"index"`
	Plan  *Plan  `json:"plan,omitempty"`
	Error string `json:"error,omitempty"`
}

// EvaluateBatch plans every trip in parallel, at most the engine's batch
// limit at a time. Results keep the input order. Invalid trips are reported
// per item; only cancellation of ctx fails the whole batch.
func (e *Engine) EvaluateBatch(ctx context.Context, trips []emissions.TripRequest) ([]BatchResult, error) {
	results := make([]BatchResult, len(trips))

	g, gctx := errgroup.WithContext(ctx)
	if e.batchLimit > 0 {
		g.SetLimit(e.batchLimit)
	}

	for i, t := range trips {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i].Index = i
			plan, err := e.Plan(gctx, t)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Plan = &plan
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
