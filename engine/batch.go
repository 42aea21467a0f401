package engine

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/cascade/workflow"
)

// Submission pairs a definition with the payload to run it against.
type Submission struct {
	Definition *workflow.Definition
	Payload    json.RawMessage
}

// ExecuteBatch runs independent submissions concurrently, bounded by
// Config.MaxConcurrentExecutions. Results are returned in submission
// order; a slot is nil when its submission was rejected before a
// record was created (invalid definition, admission, closed engine).
// The returned error is the first such rejection, if any — per-step
// failures stay on the records, exactly as with Execute.
//
// Submissions do not share a cancellation scope: one rejected or
// failed run never aborts the others.
func (e *Engine) ExecuteBatch(ctx context.Context, subs []Submission) ([]*workflow.Execution, error) {
	results := make([]*workflow.Execution, len(subs))

	var g errgroup.Group
	if e.cfg.MaxConcurrentExecutions > 0 {
		g.SetLimit(e.cfg.MaxConcurrentExecutions)
	}

	for i, sub := range subs {
		g.Go(func() error {
			exec, err := e.Execute(ctx, sub.Definition, sub.Payload)
			results[i] = exec
			return err
		})
	}

	err := g.Wait()
	return results, err
}
