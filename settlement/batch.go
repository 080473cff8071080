package settlement

import (
	"context"

	"github.com/vitwit/paylink/verification"
)

// BatchResult is the outcome of one expectation in CheckBatch. Exactly one
// of Observation and Err is set.
type BatchResult struct {
	Observation *Observation
	Err         error
}

// CheckBatch runs Check for every expectation concurrently. Results keep the
// order of exps; a failed check only affects its own entry.
func (p *Poller) CheckBatch(ctx context.Context, exps []verification.Expectation) ([]BatchResult, error) {
	results := make([]BatchResult, len(exps))

	type indexed struct {
		index int
		BatchResult
	}
	resultChan := make(chan indexed, len(exps))

	for i, exp := range exps {
		go func(index int, exp verification.Expectation) {
			attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
			defer cancel()
			obs, err := p.Check(attemptCtx, exp)
			resultChan <- indexed{index: index, BatchResult: BatchResult{Observation: obs, Err: err}}
		}(i, exp)
	}

	for range exps {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-resultChan:
			results[res.index] = res.BatchResult
		}
	}
	return results, nil
}
