package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maraichr/slidepilot/internal/chunk"
	"github.com/maraichr/slidepilot/internal/llm"
	"github.com/maraichr/slidepilot/internal/source"
)

// ExtractKeyPoints distills the collected material into Target key points.
// Documents go through chunk map/reduce; topics take one completion.
type ExtractKeyPoints struct {
	llm      llm.Completer
	mr       *chunk.MapReducer
	target   int
	language string
	logger   *slog.Logger
}

func NewExtractKeyPoints(c llm.Completer, cfg chunk.Config, logger *slog.Logger) *ExtractKeyPoints {
	mr := chunk.NewMapReducer(c, cfg, logger)
	target := cfg.Target
	if target <= 0 {
		target = chunk.DefaultConfig().Target
	}
	return &ExtractKeyPoints{llm: c, mr: mr, target: target, language: cfg.Language, logger: logger}
}

func (s *ExtractKeyPoints) Name() string { return StageExtract }

func (s *ExtractKeyPoints) Run(ctx context.Context, rc *RunContext) (Update, error) {
	feedback := rc.retryFeedback()

	if rc.Source.Kind == source.KindDocument && len(rc.Chunks) > 0 {
		res, err := s.mr.KeyPoints(ctx, rc.Chunks, feedback)
		if err != nil {
			return Update{}, err
		}
		return Update{
			KeyPoints: res.Points,
			Log: []string{fmt.Sprintf("[key_points] %d points from %d chunks (%d failed, reduce tier %s)",
				len(res.Points), res.MappedChunks, res.FailedChunks, res.Tier)},
		}, nil
	}

	var snippets []string
	if len(rc.Snippets) > 0 {
		snippets = snippetTexts(rc)
	}
	raw, err := llm.Ask(ctx, s.llm, keyPointsSystem(s.language),
		topicKeyPointsPrompt(rc.Source.Ref, snippets, s.target, feedback))
	if err != nil {
		return Update{}, fmt.Errorf("complete key points: %w", err)
	}

	points, tier := chunk.ParsePoints(raw, s.target)
	if len(points) == 0 {
		points = []string{rc.Source.Ref}
	}
	return Update{
		KeyPoints: points,
		Log:       []string{fmt.Sprintf("[key_points] %d points (tier %s)", len(points), tier)},
	}, nil
}
