// Package validate implements the Validation Harness of spec.md §4.8: an
// ordered set of externally supplied phases, each returning a list of
// ValidationErrors, run before a Pipeline is ever executed.
//
// Grounded on the teacher's internal/runner/config.go for the
// "collect-then-report, never half-apply" validation shape, and on
// golang.org/x/sync/errgroup (already used elsewhere in the teacher's
// stack for bounded fan-out) for running same-order phases concurrently.
package validate

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/pdkerrors"
)

// Phase is one independently-contributed validation pass, per spec.md §4.8
// "phase.Order : int, phase.Validate(pipeline, context) -> [ValidationError]".
type Phase interface {
	Order() int
	Validate(ctx context.Context, pipeline *model.Pipeline) []*pdkerrors.ValidationError
}

// PhaseResult is the per-phase observability record spec.md §4.8 asks for.
type PhaseResult struct {
	Order    int
	Duration time.Duration
	Errors   []*pdkerrors.ValidationError
}

// Report is the harness's output: every phase's errors plus timing.
type Report struct {
	Phases        []PhaseResult
	Errors        []*pdkerrors.ValidationError
	TotalDuration time.Duration
}

// HasErrors reports whether any collected ValidationError has Severity
// Error (as opposed to Warning) — the harness's gate for "refuse to run".
func (r *Report) HasErrors() bool {
	for _, e := range r.Errors {
		if e.Severity == pdkerrors.SeverityError {
			return true
		}
	}
	return false
}

// Harness runs a set of Phases in ascending Order, per spec.md §4.8.
// Phases that share an Order value run concurrently.
type Harness struct {
	Phases []Phase
}

// Run executes every phase against pipeline, grouped by ascending Order,
// and returns the aggregate Report.
func (h *Harness) Run(ctx context.Context, pipeline *model.Pipeline) (*Report, error) {
	start := time.Now()
	report := &Report{}

	grouped := groupByOrder(h.Phases)
	orders := make([]int, 0, len(grouped))
	for order := range grouped {
		orders = append(orders, order)
	}
	sort.Ints(orders)

	for _, order := range orders {
		phases := grouped[order]
		results := make([]PhaseResult, len(phases))

		g, gctx := errgroup.WithContext(ctx)
		for i, phase := range phases {
			i, phase := i, phase
			g.Go(func() error {
				phaseStart := time.Now()
				errs := phase.Validate(gctx, pipeline)
				results[i] = PhaseResult{Order: order, Duration: time.Since(phaseStart), Errors: errs}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, res := range results {
			report.Phases = append(report.Phases, res)
			report.Errors = append(report.Errors, res.Errors...)
		}
	}

	report.TotalDuration = time.Since(start)
	return report, nil
}

func groupByOrder(phases []Phase) map[int][]Phase {
	grouped := make(map[int][]Phase)
	for _, p := range phases {
		grouped[p.Order()] = append(grouped[p.Order()], p)
	}
	return grouped
}
