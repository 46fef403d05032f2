// Package quality scores drafts and decides whether a run retries or persists.
package quality

// Defaults for Gate.
const (
	DefaultThreshold   = 8.0
	DefaultMaxAttempts = 3
)

// Route targets returned by Gate.Route.
const (
	RoutePersist = "persist"
	RouteRetry   = "extract_key_points"
)

// Gate holds the pass threshold and the attempt ceiling.
type Gate struct {
	Threshold   float64
	MaxAttempts int
}

func DefaultGate() Gate {
	return Gate{Threshold: DefaultThreshold, MaxAttempts: DefaultMaxAttempts}
}

// NewGate fills non-positive values with the defaults.
func NewGate(threshold float64, maxAttempts int) Gate {
	g := DefaultGate()
	if threshold > 0 {
		g.Threshold = threshold
	}
	if maxAttempts > 0 {
		g.MaxAttempts = maxAttempts
	}
	return g
}

// Route picks the stage that follows evaluate. Once the attempt ceiling is
// reached the run persists whether or not the draft passed.
func (g Gate) Route(ev Evaluation) string {
	if ev.Attempt >= g.MaxAttempts {
		return RoutePersist
	}
	if ev.Pass {
		return RoutePersist
	}
	return RouteRetry
}

// BestEffort reports whether persisting ev means accepting a failing draft.
func (g Gate) BestEffort(ev Evaluation) bool {
	return !ev.Pass && ev.Attempt >= g.MaxAttempts
}
