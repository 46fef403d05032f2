package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maraichr/slidepilot/internal/llm"
	"github.com/maraichr/slidepilot/internal/quality"
	"github.com/maraichr/slidepilot/internal/source"
)

// Evaluate scores the draft. An answer that cannot be parsed becomes a
// failing evaluation and the gate decides what happens next.
type Evaluate struct {
	llm       llm.Completer
	threshold float64
	logger    *slog.Logger
}

func NewEvaluate(c llm.Completer, threshold float64, logger *slog.Logger) *Evaluate {
	if threshold <= 0 {
		threshold = quality.DefaultThreshold
	}
	return &Evaluate{llm: c, threshold: threshold, logger: logger}
}

func (s *Evaluate) Name() string { return StageEvaluate }

func (s *Evaluate) Run(ctx context.Context, rc *RunContext) (Update, error) {
	attempt := rc.Attempts + 1
	weights := quality.TopicWeights
	if rc.Source.Kind == source.KindDocument {
		weights = quality.DocumentWeights
	}

	raw, err := llm.Ask(ctx, s.llm, evaluateSystem(), evaluatePrompt(rc.Draft, rc.Outline, rc.Source.Ref, weights))
	if err != nil {
		return Update{}, fmt.Errorf("complete evaluation: %w", err)
	}

	ev, err := quality.ParseEvaluation(raw, attempt, weights, s.threshold)
	if err != nil {
		s.logger.Warn("evaluation unparsable, recording as fail",
			slog.String("run_id", rc.RunID.String()),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		ev = quality.Unparsable(raw, attempt)
	}

	return Update{
		Evaluation: &ev,
		Attempts:   &attempt,
		Log:        []string{fmt.Sprintf("[evaluate] score=%.2f pass=%v attempt=%d", ev.Score, ev.Pass, attempt)},
	}, nil
}
