package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/maraichr/slidepilot/internal/batch"
	"github.com/maraichr/slidepilot/internal/llm"
)

// SentinelPoint is the only key point produced when no chunk yields anything.
const SentinelPoint = "extraction failed"

// mapExcerptRunes bounds the chunk text sent with each map prompt.
const mapExcerptRunes = 3000

// Config bounds the map and reduce phases.
type Config struct {
	MaxChunks      int
	PointsPerChunk int
	Target         int
	MaxConcurrency int
	UnitTimeout    time.Duration
	Language       string
}

// DefaultConfig returns the standard limits: 20 chunks, 3 points each,
// condensed to 5.
func DefaultConfig() Config {
	return Config{
		MaxChunks:      20,
		PointsPerChunk: 3,
		Target:         5,
		MaxConcurrency: batch.DefaultConcurrency,
	}
}

// Result is the outcome of one map/reduce pass.
type Result struct {
	Points       []string
	Candidates   []string
	MappedChunks int
	FailedChunks int
	Tier         Tier
}

// MapReducer extracts key points from chunks with one completion per chunk,
// then condenses the candidates with a single reduce completion.
type MapReducer struct {
	llm    llm.Completer
	cfg    Config
	logger *slog.Logger
}

func NewMapReducer(c llm.Completer, cfg Config, logger *slog.Logger) *MapReducer {
	def := DefaultConfig()
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = def.MaxChunks
	}
	if cfg.PointsPerChunk <= 0 {
		cfg.PointsPerChunk = def.PointsPerChunk
	}
	if cfg.Target <= 0 {
		cfg.Target = def.Target
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	return &MapReducer{llm: c, cfg: cfg, logger: logger}
}

// KeyPoints runs map then reduce. feedback, when non-empty, is the previous
// evaluation's critique and is passed to both phases. The only error
// returned is ctx cancellation; chunk and reduce failures degrade instead.
func (m *MapReducer) KeyPoints(ctx context.Context, chunks []Chunk, feedback string) (Result, error) {
	var res Result

	perChunk, failed, err := m.Map(ctx, chunks, feedback)
	if err != nil {
		return res, err
	}
	res.FailedChunks = failed
	for _, pts := range perChunk {
		if pts != nil {
			res.MappedChunks++
		}
		res.Candidates = append(res.Candidates, pts...)
	}

	if len(res.Candidates) == 0 {
		m.logger.Warn("no key points extracted from any chunk",
			slog.Int("chunks", len(chunks)),
			slog.Int("failed", failed))
		res.Points = []string{SentinelPoint}
		return res, nil
	}

	res.Points, res.Tier = m.Reduce(ctx, res.Candidates, feedback)
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	return res, nil
}

// Map issues one completion per non-blank chunk among the first MaxChunks.
// The returned slice is in chunk order; a failed or blank chunk contributes nil.
func (m *MapReducer) Map(ctx context.Context, chunks []Chunk, feedback string) ([][]string, int, error) {
	if len(chunks) > m.cfg.MaxChunks {
		chunks = chunks[:m.cfg.MaxChunks]
	}

	var failed atomic.Int32
	worker := func(ctx context.Context, i int, c Chunk) ([]string, error) {
		if isBlank(c.Text) {
			return nil, nil
		}
		raw, err := llm.Ask(ctx, m.llm, m.systemPrompt(), m.mapPrompt(c, feedback))
		if err != nil {
			return nil, err
		}
		pts, _ := ParsePoints(raw, m.cfg.PointsPerChunk)
		return pts, nil
	}

	out, err := batch.Run(ctx, chunks, worker, batch.Options[Chunk, []string]{
		MaxConcurrency: m.cfg.MaxConcurrency,
		Policy:         batch.Fallback,
		UnitTimeout:    m.cfg.UnitTimeout,
		Fallback:       func(int, Chunk, error) []string { return nil },
		OnError: func(i int, err error) {
			failed.Add(1)
			m.logger.Warn("chunk map failed",
				slog.Int("chunk", chunks[i].Index),
				slog.String("error", err.Error()))
		},
	})
	if err != nil {
		return nil, int(failed.Load()), fmt.Errorf("map chunks: %w", err)
	}
	return out, int(failed.Load()), nil
}

// Reduce condenses candidates to Target points with one completion. A failed
// call falls back to the first Target unique candidates.
func (m *MapReducer) Reduce(ctx context.Context, candidates []string, feedback string) ([]string, Tier) {
	raw, err := llm.Ask(ctx, m.llm, m.systemPrompt(), m.reducePrompt(candidates, feedback))
	if err != nil {
		m.logger.Warn("key point reduce failed, using candidates",
			slog.Int("candidates", len(candidates)),
			slog.String("error", err.Error()))
		return backfill(nil, candidates, m.cfg.Target), TierCandidates
	}
	return Condense(raw, candidates, m.cfg.Target)
}

func (m *MapReducer) systemPrompt() string {
	s := "You are an expert presenter who distills documents into short, concrete slide bullet points."
	if m.cfg.Language != "" {
		s += " Answer in language: " + m.cfg.Language + "."
	}
	return s
}

func (m *MapReducer) mapPrompt(c Chunk, feedback string) string {
	r := []rune(c.Text)
	if len(r) > mapExcerptRunes {
		r = r[:mapExcerptRunes]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Extract at most %d key points from the excerpt below as a bulleted list (one \"- \" line each).\n\n", m.cfg.PointsPerChunk)
	writeFeedback(&b, feedback)
	fmt.Fprintf(&b, "[excerpt %d]\n%s\n", c.Index+1, string(r))
	return b.String()
}

func (m *MapReducer) reducePrompt(candidates []string, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Merge the candidate points below into exactly %d key points for the whole document. "+
		"Remove duplicates and keep the document's order. Reply with a bulleted list only.\n\n", m.cfg.Target)
	writeFeedback(&b, feedback)
	b.WriteString("[candidate points]\n")
	for _, c := range candidates {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteByte('\n')
	}
	return b.String()
}

func writeFeedback(b *strings.Builder, feedback string) {
	if feedback == "" {
		return
	}
	b.WriteString("[reviewer feedback on the previous attempt]\n")
	b.WriteString(feedback)
	b.WriteString("\n\n")
}
