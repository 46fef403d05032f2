// Package pipeline runs the deck generation stages as a directed graph with
// one quality-gated loop back from evaluate to extract_key_points.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/maraichr/slidepilot/internal/quality"
	"github.com/maraichr/slidepilot/pkg/models"
)

// Stage names, in run order.
const (
	StageCollect       = "collect"
	StageExtract       = "extract_key_points"
	StageOutline       = "build_outline"
	StageDraft         = "draft"
	StageEvaluate      = "evaluate"
	StagePersist       = "persist"
	StageNarrate       = "narrate"
	StageEnqueueRender = "enqueue_render"
)

const routeAttr = "route"

var (
	// ErrEmptySource is the collect failure for input with no usable content.
	ErrEmptySource = errors.New("source yielded no usable content")
	// ErrMissingStage is returned by NewEngine when a required stage is absent.
	ErrMissingStage = errors.New("missing stage")
)

// Stage is one step of a run. A returned error is fatal to the run.
type Stage interface {
	Name() string
	Run(ctx context.Context, rc *RunContext) (Update, error)
}

// StageError is the terminal error of a failed run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Options toggles the optional tail of the graph.
type Options struct {
	Narrate bool `json:"narrate"`
	Render  bool `json:"render"`
}

// Result is the snapshot returned at the end of a run.
type Result struct {
	RunID       uuid.UUID           `json:"run_id"`
	Deck        *models.Deck        `json:"deck,omitempty"`
	Title       string              `json:"title"`
	Markdown    string              `json:"markdown"`
	KeyPoints   []string            `json:"key_points"`
	Outline     []string            `json:"outline"`
	Evaluation  *quality.Evaluation `json:"evaluation,omitempty"`
	Attempts    int                 `json:"attempts"`
	BestEffort  bool                `json:"best_effort"`
	Narrations  []string            `json:"narrations,omitempty"`
	RenderJobID *uuid.UUID          `json:"render_job_id,omitempty"`
	Log         []string            `json:"log"`
	Error       string              `json:"error,omitempty"`
}

// Engine holds the stage topology, built once.
type Engine struct {
	stages map[string]Stage
	g      graph.Graph[string, string]
	adj    map[string]map[string]graph.Edge[string]
	gate   quality.Gate
	logger *slog.Logger
}

// NewEngine builds the graph. The six core stages are required; narrate and
// enqueue_render may be omitted, in which case the options that enable them
// are ignored.
func NewEngine(stages []Stage, gate quality.Gate, logger *slog.Logger) (*Engine, error) {
	e := &Engine{
		stages: make(map[string]Stage, len(stages)),
		g:      graph.New(graph.StringHash, graph.Directed()),
		gate:   gate,
		logger: logger,
	}
	for _, s := range stages {
		e.stages[s.Name()] = s
	}
	for _, name := range []string{StageCollect, StageExtract, StageOutline, StageDraft, StageEvaluate, StagePersist} {
		if _, ok := e.stages[name]; !ok {
			return nil, errors.Wrap(ErrMissingStage, name)
		}
	}

	order := []string{StageCollect, StageExtract, StageOutline, StageDraft, StageEvaluate, StagePersist, StageNarrate, StageEnqueueRender}
	for _, name := range order {
		if _, ok := e.stages[name]; !ok {
			continue
		}
		if err := e.g.AddVertex(name); err != nil {
			return nil, errors.Wrapf(err, "add vertex %s", name)
		}
	}

	edges := [][3]string{
		{StageCollect, StageExtract, "next"},
		{StageExtract, StageOutline, "next"},
		{StageOutline, StageDraft, "next"},
		{StageDraft, StageEvaluate, "next"},
		{StageEvaluate, StagePersist, quality.RoutePersist},
		{StageEvaluate, StageExtract, quality.RouteRetry},
	}
	// optional tail: persist -> narrate -> enqueue_render, skipping absent stages
	tail := StagePersist
	for _, name := range []string{StageNarrate, StageEnqueueRender} {
		if _, ok := e.stages[name]; ok {
			edges = append(edges, [3]string{tail, name, "next"})
			tail = name
		}
	}
	for _, ed := range edges {
		if err := e.g.AddEdge(ed[0], ed[1], graph.EdgeAttribute(routeAttr, ed[2])); err != nil {
			return nil, errors.Wrapf(err, "add edge %s -> %s", ed[0], ed[1])
		}
	}

	adj, err := e.g.AdjacencyMap()
	if err != nil {
		return nil, errors.Wrap(err, "adjacency map")
	}
	e.adj = adj
	return e, nil
}

// DOT writes the stage graph in Graphviz format.
func (e *Engine) DOT(w io.Writer) error {
	return draw.DOT(e.g, w)
}

// Run executes the graph from collect until no stage follows. A stage error
// stops the run and is returned as a *StageError; the Result is always
// populated with whatever the run produced.
func (e *Engine) Run(ctx context.Context, rc *RunContext, opts Options) (Result, error) {
	start := time.Now()
	e.logger.Info("run started",
		slog.String("run_id", rc.RunID.String()),
		slog.String("owner", rc.Owner))

	// every loop passes evaluate, which the gate bounds by MaxAttempts
	maxSteps := len(e.stages) * (e.gate.MaxAttempts + 1)

	current := StageCollect
	for steps := 0; current != ""; steps++ {
		if steps > maxSteps {
			return e.fail(rc, current, errors.New("step limit exceeded"))
		}
		if err := ctx.Err(); err != nil {
			return e.fail(rc, current, err)
		}

		if !enabled(current, opts) {
			current = e.next(current, rc)
			continue
		}

		stage := e.stages[current]
		e.logger.Info("stage started",
			slog.String("stage", current),
			slog.String("run_id", rc.RunID.String()),
			slog.Int("attempt", rc.Attempts+1))

		stageStart := time.Now()
		upd, err := stage.Run(ctx, rc)
		if err != nil {
			return e.fail(rc, current, err)
		}
		rc.Apply(upd)

		e.logger.Info("stage completed",
			slog.String("stage", current),
			slog.String("run_id", rc.RunID.String()),
			slog.Duration("duration", time.Since(stageStart)))

		current = e.next(current, rc)
	}

	res := e.result(rc)
	e.logger.Info("run completed",
		slog.String("run_id", rc.RunID.String()),
		slog.Int("attempts", rc.Attempts),
		slog.Bool("best_effort", res.BestEffort),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

func (e *Engine) fail(rc *RunContext, stage string, err error) (Result, error) {
	se := &StageError{Stage: stage, Err: errors.WithStack(err)}
	rc.Err = se
	rc.Apply(Update{Log: []string{fmt.Sprintf("[%s] failed: %v", stage, err)}})
	e.logger.Error("stage failed",
		slog.String("stage", stage),
		slog.String("run_id", rc.RunID.String()),
		slog.String("error", err.Error()))
	return e.result(rc), se
}

// next follows the single outgoing edge, or for evaluate the edge whose route
// matches the gate's decision.
func (e *Engine) next(current string, rc *RunContext) string {
	out := e.adj[current]
	if current == StageEvaluate {
		want := quality.RoutePersist
		if rc.Evaluation != nil {
			want = e.gate.Route(*rc.Evaluation)
		}
		for target, edge := range out {
			if edge.Properties.Attributes[routeAttr] == want {
				return target
			}
		}
		return ""
	}
	for target := range out {
		return target
	}
	return ""
}

func enabled(stage string, opts Options) bool {
	switch stage {
	case StageNarrate:
		return opts.Narrate
	case StageEnqueueRender:
		return opts.Render
	}
	return true
}

func (e *Engine) result(rc *RunContext) Result {
	res := Result{
		RunID:       rc.RunID,
		Deck:        rc.Deck,
		Title:       rc.Title,
		Markdown:    rc.Draft,
		KeyPoints:   rc.KeyPoints,
		Outline:     rc.Outline,
		Evaluation:  rc.Evaluation,
		Attempts:    rc.Attempts,
		Narrations:  rc.Narrations,
		RenderJobID: rc.RenderJobID,
		Log:         rc.Log,
	}
	if rc.Evaluation != nil {
		res.BestEffort = e.gate.BestEffort(*rc.Evaluation)
	}
	if rc.Err != nil {
		res.Error = rc.Err.Error()
	}
	return res
}
