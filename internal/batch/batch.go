// Package batch runs independent per-unit calls under a concurrency ceiling
// and returns results in input order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the ceiling used when Options.MaxConcurrency is unset.
const DefaultConcurrency = 5

// Policy decides what a unit failure does to the batch. A call site picks
// exactly one.
type Policy int

const (
	// FailFast returns the first error and cancels outstanding units.
	FailFast Policy = iota
	// Fallback substitutes Options.Fallback for a failed unit and continues.
	Fallback
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case Fallback:
		return "fallback"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ErrNoFallback is returned when the Fallback policy has no Fallback function.
var ErrNoFallback = errors.New("batch: fallback policy requires a Fallback function")

// Options configures one Run.
type Options[I, O any] struct {
	MaxConcurrency int
	Policy         Policy
	// UnitTimeout bounds each unit independently; zero means no per-unit deadline.
	UnitTimeout time.Duration
	// Fallback produces the substitute value for a failed unit under the Fallback policy.
	Fallback func(index int, in I, err error) O
	// Release frees resources held by completed results when the batch is aborted.
	Release func(out O)
	// OnError observes every unit failure, whichever policy is in effect.
	OnError func(index int, err error)
}

// Worker processes one unit. index is the unit's position in the input.
type Worker[I, O any] func(ctx context.Context, index int, in I) (O, error)

// Run executes worker over inputs with bounded concurrency. The returned slice
// has len(inputs) entries and out[i] always corresponds to inputs[i].
//
// If the batch is aborted (first error under FailFast, or ctx cancelled under
// either policy) every result produced so far is passed to Release and Run
// returns a nil slice with the error.
func Run[I, O any](ctx context.Context, inputs []I, worker Worker[I, O], opts Options[I, O]) ([]O, error) {
	if opts.Policy == Fallback && opts.Fallback == nil {
		return nil, ErrNoFallback
	}
	limit := opts.MaxConcurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	out := make([]O, len(inputs))
	done := make([]bool, len(inputs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for i, in := range inputs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			res, err := runUnit(egCtx, i, in, worker, opts.UnitTimeout)
			if err != nil {
				if opts.OnError != nil {
					opts.OnError(i, err)
				}
				if opts.Policy == FailFast {
					return fmt.Errorf("unit %d: %w", i, err)
				}
				res = opts.Fallback(i, in, err)
			}
			out[i] = res
			done[i] = true
			return nil
		})
	}

	err := eg.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if opts.Release != nil {
			for i := range out {
				if done[i] {
					opts.Release(out[i])
				}
			}
		}
		return nil, err
	}
	return out, nil
}

func runUnit[I, O any](ctx context.Context, i int, in I, worker Worker[I, O], timeout time.Duration) (O, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return worker(ctx, i, in)
}
