package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_PreservesOrderUnderRandomLatency(t *testing.T) {
	inputs := make([]int, 40)
	for i := range inputs {
		inputs[i] = i
	}

	worker := func(ctx context.Context, i int, in int) (string, error) {
		// later units finish first
		time.Sleep(time.Duration(len(inputs)-i) * time.Millisecond)
		return fmt.Sprintf("out-%d", in), nil
	}

	out, err := Run(context.Background(), inputs, worker, Options[int, string]{MaxConcurrency: 5})
	require.NoError(t, err)
	require.Len(t, out, len(inputs))
	for i := range inputs {
		assert.Equal(t, fmt.Sprintf("out-%d", i), out[i])
	}
}

func TestRun_RespectsConcurrencyCeiling(t *testing.T) {
	var inFlight, peak atomic.Int32
	worker := func(ctx context.Context, i int, in int) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return in, nil
	}

	_, err := Run(context.Background(), make([]int, 30), worker, Options[int, int]{MaxConcurrency: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRun_FailFastCancelsAndReleases(t *testing.T) {
	boom := errors.New("boom")
	var mu sync.Mutex
	var released []int

	worker := func(ctx context.Context, i int, in int) (int, error) {
		if i == 3 {
			return 0, boom
		}
		if i > 3 {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return in * 10, nil
	}

	out, err := Run(context.Background(), []int{0, 1, 2, 3, 4, 5}, worker, Options[int, int]{
		MaxConcurrency: 1,
		Policy:         FailFast,
		Release: func(v int) {
			mu.Lock()
			released = append(released, v)
			mu.Unlock()
		},
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, out)
	assert.ElementsMatch(t, []int{0, 10, 20}, released)
}

func TestRun_FallbackSubstitutesAndContinues(t *testing.T) {
	var failures []int
	var mu sync.Mutex

	worker := func(ctx context.Context, i int, in string) (string, error) {
		if i%2 == 1 {
			return "", errors.New("tts down")
		}
		return "ok:" + in, nil
	}

	out, err := Run(context.Background(), []string{"a", "b", "c", "d"}, worker, Options[string, string]{
		Policy: Fallback,
		Fallback: func(i int, in string, err error) string {
			return fmt.Sprintf("slide %d", i+1)
		},
		OnError: func(i int, err error) {
			mu.Lock()
			failures = append(failures, i)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok:a", "slide 2", "ok:c", "slide 4"}, out)
	assert.ElementsMatch(t, []int{1, 3}, failures)
}

func TestRun_FallbackRequiresFunction(t *testing.T) {
	_, err := Run(context.Background(), []int{1}, func(context.Context, int, int) (int, error) { return 0, nil },
		Options[int, int]{Policy: Fallback})
	assert.ErrorIs(t, err, ErrNoFallback)
}

func TestRun_UnitTimeoutIsUnitFailure(t *testing.T) {
	worker := func(ctx context.Context, i int, in int) (int, error) {
		if i == 0 {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return in, nil
	}

	out, err := Run(context.Background(), []int{7, 8, 9}, worker, Options[int, int]{
		Policy:      Fallback,
		UnitTimeout: 10 * time.Millisecond,
		Fallback:    func(int, int, error) int { return -1 },
	})
	require.NoError(t, err)
	assert.Equal(t, []int{-1, 8, 9}, out)
}

func TestRun_CancelledParentAbortsFallbackBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var released atomic.Int32

	worker := func(c context.Context, i int, in int) (int, error) {
		if i == 0 {
			return in, nil
		}
		cancel()
		<-c.Done()
		return 0, c.Err()
	}

	out, err := Run(ctx, []int{1, 2, 3}, worker, Options[int, int]{
		MaxConcurrency: 1,
		Policy:         Fallback,
		Fallback:       func(int, int, error) int { return 0 },
		Release:        func(int) { released.Add(1) },
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
	assert.GreaterOrEqual(t, released.Load(), int32(1))
}

func TestRun_Empty(t *testing.T) {
	out, err := Run(context.Background(), nil, func(context.Context, int, int) (int, error) { return 0, nil },
		Options[int, int]{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "fail_fast", FailFast.String())
	assert.Equal(t, "fallback", Fallback.String())
}
