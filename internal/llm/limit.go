package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limited wraps a Completer with a shared token-bucket limiter and an
// independent timeout per call. A timeout fails only the call that hit it.
type Limited struct {
	next    Completer
	limiter *rate.Limiter
	timeout time.Duration
}

// NewLimited returns next unchanged in behavior except for pacing. A
// non-positive rps disables limiting; a non-positive timeout disables the deadline.
func NewLimited(next Completer, rps float64, burst int, timeout time.Duration) *Limited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, burst), timeout: timeout}
}

func (l *Limited) Complete(ctx context.Context, messages []Message) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return l.next.Complete(ctx, messages)
}

func (l *Limited) Model() string {
	return l.next.Model()
}
