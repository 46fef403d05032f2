package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraichr/slidepilot/internal/chunk"
	"github.com/maraichr/slidepilot/internal/config"
	"github.com/maraichr/slidepilot/internal/deck"
	"github.com/maraichr/slidepilot/internal/llm"
	"github.com/maraichr/slidepilot/internal/quality"
	"github.com/maraichr/slidepilot/internal/render"
	"github.com/maraichr/slidepilot/internal/source"
	"github.com/maraichr/slidepilot/pkg/models"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const (
	passEval = `{"score": 9, "pass": true, "feedback": "good"}`
	failEval = `{"score": 5, "feedback": "add examples", "suggestions": ["more code"]}`
)

// roleLLM answers according to which stage is asking, recognised by the
// system prompt.
type roleLLM struct {
	mu      sync.Mutex
	prompts map[string][]string
	evals   []string
}

func newRoleLLM(evals ...string) *roleLLM {
	return &roleLLM{prompts: make(map[string][]string), evals: evals}
}

func roleOf(system, prompt string) string {
	switch {
	case strings.Contains(system, "distills documents"):
		if strings.Contains(prompt, "[candidate points]") {
			return "reduce"
		}
		return "map"
	case strings.Contains(system, "most important points"):
		return "keypoints"
	case strings.Contains(system, "structure presentations"):
		return "outline"
	case strings.Contains(system, "presentation titles"):
		return "title"
	case strings.Contains(system, "Marp markdown"):
		return "draft"
	case strings.Contains(system, "strict reviewer"):
		return "evaluate"
	case strings.Contains(system, "file names"):
		return "slug"
	}
	return "unknown"
}

func (f *roleLLM) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	system, prompt := "", msgs[len(msgs)-1].Content
	if len(msgs) > 1 {
		system = msgs[0].Content
	}
	role := roleOf(system, prompt)

	f.mu.Lock()
	f.prompts[role] = append(f.prompts[role], prompt)
	n := len(f.prompts[role])
	f.mu.Unlock()

	switch role {
	case "map":
		return "- mapped a\n- mapped b", nil
	case "reduce":
		return "- r1\n- r2\n- r3\n- r4\n- r5", nil
	case "keypoints":
		return "- point one\n- point two\n- point three", nil
	case "outline":
		return `{"toc": ["Intro", "Details", "Summary"]}`, nil
	case "title":
		return `"Go Pipelines"`, nil
	case "draft":
		return "```markdown\n# Go Pipelines\n\n---\n\n## Intro\n- one\n\n---\n\n## Summary\n- done\n```", nil
	case "evaluate":
		if n-1 < len(f.evals) {
			return f.evals[n-1], nil
		}
		return f.evals[len(f.evals)-1], nil
	case "slug":
		return "go-pipelines", nil
	}
	return "", errors.New("unexpected prompt")
}

func (f *roleLLM) Model() string { return "role" }

func (f *roleLLM) calls(role string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts[role])
}

type memDecks struct {
	mu    sync.Mutex
	decks []*models.Deck
}

func (m *memDecks) CreateDeck(_ context.Context, d *models.Deck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decks = append(m.decks, d)
	return nil
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: make(map[string][]byte)} }

func (b *memBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

type fakeLoader struct {
	text string
	err  error
}

func (l fakeLoader) Load(context.Context, source.Source) (source.Document, error) {
	return source.Document{Text: l.text, Format: "pdf"}, l.err
}

func newEngine(t *testing.T, fake *roleLLM, decks *memDecks, blobs *memBlobs, extra func(*Deps)) *Engine {
	t.Helper()
	d := Deps{LLM: fake, Loader: fakeLoader{text: strings.Repeat("a", 9000)}, Decks: decks, Blobs: blobs}
	if extra != nil {
		extra(&d)
	}
	e, err := Build(d, config.PipelineConfig{Language: "en", Theme: "default"}, discard)
	require.NoError(t, err)
	return e
}

func TestEngine_PassesOnFirstAttempt(t *testing.T) {
	fake := newRoleLLM(passEval)
	decks, blobs := &memDecks{}, newMemBlobs()
	e := newEngine(t, fake, decks, blobs, nil)

	rc := NewRunContext("user-1", "Go concurrency patterns")
	res, err := e.Run(context.Background(), rc, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.BestEffort)
	require.NotNil(t, res.Evaluation)
	assert.True(t, res.Evaluation.Pass)
	assert.Equal(t, 1, res.Evaluation.Attempt)
	assert.Equal(t, "Go Pipelines", res.Title)
	assert.Equal(t, []string{"point one", "point two", "point three"}, res.KeyPoints)
	assert.Equal(t, []string{"Intro", "Details", "Summary"}, res.Outline)
	assert.True(t, strings.HasPrefix(res.Markdown, "---\nmarp: true\n"))
	assert.NotContains(t, res.Markdown, "```")
	assert.Equal(t, 6, rc.Version)

	require.Len(t, decks.decks, 1)
	d := decks.decks[0]
	assert.Equal(t, "go-pipelines", d.Slug)
	assert.Equal(t, "decks/user-1/go-pipelines.md", d.MarkdownKey)
	assert.True(t, d.Passed)
	assert.Equal(t, models.SourceText, d.SourceKind)
	assert.Equal(t, res.Markdown, string(blobs.objects[d.MarkdownKey]))
	require.NotNil(t, d.HandoutKey)
	assert.True(t, bytes.HasPrefix(blobs.objects[*d.HandoutKey], []byte("%PDF")))
}

func TestEngine_BestEffortAfterMaxAttempts(t *testing.T) {
	fake := newRoleLLM(failEval)
	decks := &memDecks{}
	e := newEngine(t, fake, decks, newMemBlobs(), nil)

	res, err := e.Run(context.Background(), NewRunContext("u", "topic"), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Attempts)
	assert.True(t, res.BestEffort)
	assert.False(t, res.Evaluation.Pass)
	assert.Equal(t, 3, res.Evaluation.Attempt)
	assert.Equal(t, 3, fake.calls("keypoints"))
	assert.Equal(t, 3, fake.calls("draft"))
	assert.Equal(t, 1, fake.calls("title"), "title is kept across retries")

	require.Len(t, decks.decks, 1)
	assert.False(t, decks.decks[0].Passed)
	assert.Equal(t, 3, decks.decks[0].Attempts)
}

func TestEngine_RetryCarriesFeedback(t *testing.T) {
	fake := newRoleLLM(failEval, passEval)
	e := newEngine(t, fake, &memDecks{}, newMemBlobs(), nil)

	res, err := e.Run(context.Background(), NewRunContext("u", "topic"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.False(t, res.BestEffort)

	require.Equal(t, 2, fake.calls("keypoints"))
	assert.NotContains(t, fake.prompts["keypoints"][0], "add examples")
	assert.Contains(t, fake.prompts["keypoints"][1], "add examples")
	assert.Contains(t, fake.prompts["keypoints"][1], "more code")
}

func TestEngine_UnparsableEvaluationFollowsGate(t *testing.T) {
	fake := newRoleLLM("I refuse to answer in JSON", passEval)
	e := newEngine(t, fake, &memDecks{}, newMemBlobs(), nil)

	res, err := e.Run(context.Background(), NewRunContext("u", "topic"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.True(t, res.Evaluation.Pass)
}

func TestEngine_VideoSourceIsFatal(t *testing.T) {
	fake := newRoleLLM(passEval)
	decks := &memDecks{}
	e := newEngine(t, fake, decks, newMemBlobs(), nil)

	rc := NewRunContext("u", "https://www.youtube.com/watch?v=abc")
	res, err := e.Run(context.Background(), rc, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrVideoNotSupported)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageCollect, se.Stage)
	assert.Equal(t, se, rc.Err)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, decks.decks)
	assert.Zero(t, fake.calls("keypoints"))
}

func TestEngine_EmptyInput(t *testing.T) {
	e := newEngine(t, newRoleLLM(passEval), &memDecks{}, newMemBlobs(), nil)
	_, err := e.Run(context.Background(), NewRunContext("u", "   "), Options{})
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestEngine_EmptyDocument(t *testing.T) {
	e := newEngine(t, newRoleLLM(passEval), &memDecks{}, newMemBlobs(), func(d *Deps) {
		d.Loader = fakeLoader{text: "  \n "}
	})
	_, err := e.Run(context.Background(), NewRunContext("u", "uploads/u/report.pdf"), Options{})
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestEngine_DocumentUsesMapReduce(t *testing.T) {
	fake := newRoleLLM(passEval)
	decks := &memDecks{}
	e := newEngine(t, fake, decks, newMemBlobs(), nil)

	rc := NewRunContext("u", "uploads/u/report.pdf")
	res, err := e.Run(context.Background(), rc, Options{})
	require.NoError(t, err)

	assert.Len(t, rc.Chunks, 3)
	assert.Equal(t, "report", rc.TitleHint)
	assert.Equal(t, 3, fake.calls("map"))
	assert.Equal(t, 1, fake.calls("reduce"))
	assert.Zero(t, fake.calls("keypoints"))
	assert.Equal(t, []string{"r1", "r2", "r3", "r4", "r5"}, res.KeyPoints)
	assert.Contains(t, fake.prompts["draft"][0], "## Section 1")
	assert.Contains(t, fake.prompts["evaluate"][0], "comprehensiveness")
	assert.Equal(t, models.SourceDocument, decks.decks[0].SourceKind)
}

type fakeNarrator struct{}

func (fakeNarrator) Narrate(_ context.Context, slides []string) ([]string, error) {
	out := make([]string, len(slides))
	for i := range slides {
		out[i] = "narration"
	}
	return out, nil
}

type fakeJobs struct {
	payloads []render.Payload
	id       uuid.UUID
}

func (f *fakeJobs) CreateJob(_ context.Context, _ string, p render.Payload) (uuid.UUID, error) {
	f.payloads = append(f.payloads, p)
	return f.id, nil
}

func TestEngine_NarrateAndRender(t *testing.T) {
	jobs := &fakeJobs{id: uuid.New()}
	e := newEngine(t, newRoleLLM(passEval), &memDecks{}, newMemBlobs(), func(d *Deps) {
		d.Narrator = fakeNarrator{}
		d.Jobs = jobs
	})

	res, err := e.Run(context.Background(), NewRunContext("u", "topic"), Options{Narrate: true, Render: true})
	require.NoError(t, err)

	assert.Len(t, res.Narrations, 3)
	require.NotNil(t, res.RenderJobID)
	assert.Equal(t, jobs.id, *res.RenderJobID)
	require.Len(t, jobs.payloads, 1)
	p := jobs.payloads[0]
	assert.Equal(t, res.Deck.ID, p.DeckID)
	assert.Equal(t, "go-pipelines", p.Slug)
	assert.Equal(t, res.Narrations, p.Narrations)
}

func TestEngine_OptionalStagesOff(t *testing.T) {
	jobs := &fakeJobs{id: uuid.New()}
	e := newEngine(t, newRoleLLM(passEval), &memDecks{}, newMemBlobs(), func(d *Deps) {
		d.Narrator = fakeNarrator{}
		d.Jobs = jobs
	})

	res, err := e.Run(context.Background(), NewRunContext("u", "topic"), Options{})
	require.NoError(t, err)
	assert.Nil(t, res.RenderJobID)
	assert.Empty(t, res.Narrations)
	assert.Empty(t, jobs.payloads)
}

func TestEngine_CancelledContext(t *testing.T) {
	e := newEngine(t, newRoleLLM(passEval), &memDecks{}, newMemBlobs(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, NewRunContext("u", "topic"), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_DOT(t *testing.T) {
	e := newEngine(t, newRoleLLM(passEval), &memDecks{}, newMemBlobs(), nil)
	var buf bytes.Buffer
	require.NoError(t, e.DOT(&buf))
	dot := buf.String()
	assert.Contains(t, dot, "evaluate")
	assert.Contains(t, dot, "extract_key_points")
	assert.NotContains(t, dot, "enqueue_render")
}

func TestNewEngine_MissingStage(t *testing.T) {
	_, err := NewEngine([]Stage{NewBuildOutline(newRoleLLM(), "en")}, quality.DefaultGate(), discard)
	assert.ErrorIs(t, err, ErrMissingStage)
}

func TestPersist_EmptyDraftIsFatal(t *testing.T) {
	p := NewPersist(newRoleLLM(), &memDecks{}, newMemBlobs(), deck.HandoutOptions{}, discard)
	_, err := p.Run(context.Background(), &RunContext{Draft: "  "})
	assert.ErrorIs(t, err, ErrEmptyDraft)
}

func TestRunContext_ApplyMergeRules(t *testing.T) {
	rc := NewRunContext("u", "in")
	rc.Apply(Update{KeyPoints: []string{"a", "b"}, Title: ptr("T"), Log: []string{"one"}})
	rc.Apply(Update{Outline: []string{"x"}, Log: []string{"two"}})

	assert.Equal(t, []string{"a", "b"}, rc.KeyPoints, "nil slice leaves field unchanged")
	assert.Equal(t, "T", rc.Title)
	assert.Equal(t, []string{"one", "two"}, rc.Log)
	assert.Equal(t, 2, rc.Version)

	rc.Apply(Update{KeyPoints: []string{}})
	assert.Empty(t, rc.KeyPoints, "empty slice replaces")
	assert.NotNil(t, rc.KeyPoints)
}

func TestRunContext_RetryFeedback(t *testing.T) {
	rc := &RunContext{}
	assert.Empty(t, rc.retryFeedback())

	rc.Evaluation = &quality.Evaluation{Pass: true, Feedback: "fine"}
	assert.Empty(t, rc.retryFeedback())

	rc.Evaluation = &quality.Evaluation{Feedback: "thin", Suggestions: []string{"add a diagram"}}
	assert.Equal(t, "thin\n- add a diagram", rc.retryFeedback())
}

func TestParseOutline(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
		tier chunk.Tier
	}{
		{"json", "```json\n{\"toc\": [\"A\", \" \", \"B\"]}\n```", []string{"A", "B"}, chunk.TierJSON},
		{"bullets", "Here:\n- A\n- B\n3. C", []string{"A", "B", "C"}, chunk.TierList},
		{"capped", "- 1\n- 2\n- 3\n- 4\n- 5\n- 6\n- 7\n- 8\n- 9", []string{"1", "2", "3", "4", "5", "6", "7", "8"}, chunk.TierList},
		{"default", "no structure at all", DefaultOutline("ja"), chunk.TierNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, tier := ParseOutline(tt.raw, "ja")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.tier, tier)
		})
	}
}

func TestEngine_PassesOnThirdAttempt(t *testing.T) {
	fake := newRoleLLM(
		`{"score": 6.0, "feedback": "thin"}`,
		`{"score": 6.0, "feedback": "still thin"}`,
		`{"score": 9.0, "feedback": "good"}`,
	)
	decks, blobs := &memDecks{}, newMemBlobs()
	e := newEngine(t, fake, decks, blobs, nil)

	res, err := e.Run(context.Background(), NewRunContext("u", "topic"), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Attempts)
	assert.False(t, res.BestEffort)
	require.NotNil(t, res.Evaluation)
	assert.True(t, res.Evaluation.Pass)
	assert.Equal(t, 3, res.Evaluation.Attempt)
	assert.InDelta(t, 9.0, res.Evaluation.Score, 0.001)

	require.Len(t, decks.decks, 1, "persist runs once")
	assert.True(t, decks.decks[0].Passed)
	assert.Equal(t, 3, decks.decks[0].Attempts)
	assert.Equal(t, 1, fake.calls("slug"))
}

type countingSearcher struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSearcher) Search(context.Context, string) ([]source.Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return []source.Snippet{{Title: "Go blog", URL: "https://go.dev/blog", Content: "pipelines"}}, nil
}

type countingLoader struct {
	mu    sync.Mutex
	calls int
	text  string
}

func (l *countingLoader) Load(context.Context, source.Source) (source.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return source.Document{Text: l.text, Format: "pdf"}, nil
}

func TestEngine_RetryReusesCollectedSource(t *testing.T) {
	t.Run("topic", func(t *testing.T) {
		searcher := &countingSearcher{}
		e := newEngine(t, newRoleLLM(failEval), &memDecks{}, newMemBlobs(), func(d *Deps) {
			d.Searcher = searcher
		})

		rc := NewRunContext("u", "Go pipelines")
		res, err := e.Run(context.Background(), rc, Options{})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Attempts)
		assert.Equal(t, 1, searcher.calls)
		assert.Len(t, rc.Snippets, 1)
	})

	t.Run("document", func(t *testing.T) {
		loader := &countingLoader{text: strings.Repeat("a", 9000)}
		fake := newRoleLLM(failEval)
		e := newEngine(t, fake, &memDecks{}, newMemBlobs(), func(d *Deps) {
			d.Loader = loader
		})

		rc := NewRunContext("u", "uploads/u/report.pdf")
		res, err := e.Run(context.Background(), rc, Options{})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Attempts)
		assert.Equal(t, 1, loader.calls)
		assert.Len(t, rc.Chunks, 3)
		assert.Equal(t, 3, fake.calls("draft"))
	})
}

type failingDecks struct{}

func (failingDecks) CreateDeck(context.Context, *models.Deck) error {
	return errors.New("connection refused")
}

func TestPersist_DeckRecordFailureKeepsRun(t *testing.T) {
	blobs := newMemBlobs()
	jobs := &fakeJobs{id: uuid.New()}
	d := Deps{
		LLM:    newRoleLLM(passEval),
		Loader: fakeLoader{},
		Decks:  failingDecks{},
		Blobs:  blobs,
		Jobs:   jobs,
	}
	e, err := Build(d, config.PipelineConfig{Language: "en", Theme: "default"}, discard)
	require.NoError(t, err)

	res, err := e.Run(context.Background(), NewRunContext("user-1", "topic"), Options{Render: true})
	require.NoError(t, err)

	assert.Nil(t, res.Deck)
	assert.Empty(t, res.Error)
	assert.NotEmpty(t, res.Markdown)
	assert.Equal(t, res.Markdown, string(blobs.objects["decks/user-1/go-pipelines.md"]))
	assert.Nil(t, res.RenderJobID)
	assert.Empty(t, jobs.payloads)

	joined := strings.Join(res.Log, "\n")
	assert.Contains(t, joined, "[persist] deck record not saved")
	assert.Contains(t, joined, "[enqueue_render] skipped")
}
