package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maraichr/slidepilot/internal/auth"
	"github.com/maraichr/slidepilot/internal/mcp"
	"github.com/maraichr/slidepilot/internal/pipeline"
	"github.com/maraichr/slidepilot/internal/source"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, rc *pipeline.RunContext, opts pipeline.Options) (pipeline.Result, error)
}

// GenerateDeckParams are the parameters for the generate_deck tool.
type GenerateDeckParams struct {
	Input             string `json:"input" jsonschema:"topic text, document location (s3://, uploads/..., https://...pdf) or video URL"`
	Narrate           bool   `json:"narrate,omitempty" jsonschema:"also write per-slide narration"`
	Render            bool   `json:"render,omitempty" jsonschema:"also enqueue a narrated video render"`
	Verbosity         string `json:"verbosity,omitempty" jsonschema:"summary, standard or full (full includes the markdown)"`
	MaxResponseTokens int    `json:"max_response_tokens,omitempty"`
}

type GenerateDeckHandler struct {
	runner Runner
	logger *slog.Logger
}

func NewGenerateDeckHandler(runner Runner, logger *slog.Logger) *GenerateDeckHandler {
	return &GenerateDeckHandler{runner: runner, logger: logger}
}

// Handle runs the pipeline for the authenticated owner.
func (h *GenerateDeckHandler) Handle(ctx context.Context, params GenerateDeckParams) (string, error) {
	if params.Input == "" {
		return "", fmt.Errorf("input is required")
	}
	owner, err := requireOwner(ctx, auth.ScopeWrite)
	if err != nil {
		return "", err
	}

	rc := pipeline.NewRunContext(owner, params.Input)
	res, err := h.runner.Run(ctx, rc, pipeline.Options{Narrate: params.Narrate, Render: params.Render})
	if err != nil {
		h.logger.Warn("generate_deck failed",
			slog.String("run_id", rc.RunID.String()),
			slog.String("error", err.Error()))
		switch {
		case errors.Is(err, source.ErrVideoNotSupported):
			return "", fmt.Errorf("video sources are not supported yet")
		case errors.Is(err, pipeline.ErrEmptySource):
			return "", fmt.Errorf("the source produced no usable content")
		}
		stage, cause := "", err
		var se *pipeline.StageError
		if errors.As(err, &se) {
			stage, cause = se.Stage, se.Err
		}
		return "", errors.New(mcp.FormatFailure(stage, cause, res, params.MaxResponseTokens))
	}
	return mcp.FormatResult(res, mcp.ParseVerbosity(params.Verbosity), params.MaxResponseTokens), nil
}

// requireOwner returns the caller's subject once it holds one of scopes.
func requireOwner(ctx context.Context, scopes ...string) (string, error) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok || p.Sub == "" {
		return "", fmt.Errorf("authentication required")
	}
	if !p.IsAdmin() && !p.HasAnyScope(scopes...) {
		return "", fmt.Errorf("insufficient scope: requires one of %v", scopes)
	}
	return p.Sub, nil
}
