package chunk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraichr/slidepilot/internal/llm"
)

func TestSplit_TwelveThousandCharsGivesFourChunks(t *testing.T) {
	text := strings.Repeat("abcdefghij", 1200)
	chunks := Split(text, 4000, 200)

	require.Len(t, chunks, 4)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, len([]rune(c.Text)), 4000)
	}
	assert.True(t, strings.HasSuffix(text, chunks[3].Text))
	assert.Equal(t, text, Reassemble(chunks, 200))
}

func TestSplit_AdjacentChunksOverlap(t *testing.T) {
	text := strings.Repeat("あいうえお", 300)
	chunks := Split(text, 400, 50)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		cur := []rune(chunks[i].Text)
		assert.Equal(t, string(prev[len(prev)-50:]), string(cur[:50]))
	}
	assert.Equal(t, text, Reassemble(chunks, 50))
}

func TestSplit_Edges(t *testing.T) {
	assert.Nil(t, Split("", 10, 2))

	short := Split("tiny", 10, 2)
	require.Len(t, short, 1)
	assert.Equal(t, "tiny", short[0].Text)

	// overlap >= size is ignored rather than looping forever
	chunks := Split("abcdefghij", 4, 4)
	assert.Equal(t, "abcdefghij", Reassemble(chunks, 0))
}

func TestPreviews(t *testing.T) {
	chunks := []Chunk{
		{Index: 0, Text: strings.Repeat("a", 20)},
		{Index: 1, Text: "   "},
		{Index: 2, Text: strings.Repeat("b", 20)},
		{Index: 3, Text: strings.Repeat("c", 20)},
	}
	got := Previews(chunks, 10, 20)
	assert.Equal(t, []string{strings.Repeat("a", 10), strings.Repeat("b", 10)}, got)
}

func TestParseStructured_Tiers(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
		tier Tier
	}{
		{"json object", "```json\n{\"points\": [\"a\", \" \", \"b\"]}\n```", []string{"a", "b"}, TierJSON},
		{"json array", `["x", "y"]`, []string{"x", "y"}, TierJSON},
		{"bullets with preamble", "Here are the points:\n- one\n• two\n* three\n・four\n", []string{"one", "two", "three", "four"}, TierList},
		{"numbered", "Summary\n1. first\n2) second\n", []string{"first", "second"}, TierList},
		{"prose", "nothing structured here", nil, TierNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, tier := ParseStructured(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.tier, tier)
		})
	}
}

func TestParsePoints_FallsBackToLinesAndLimits(t *testing.T) {
	got, tier := ParsePoints("alpha\n\nbeta\ngamma\ndelta", 3)
	assert.Equal(t, TierLines, tier)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, got)
}

func TestCondense(t *testing.T) {
	candidates := []string{"c1", "c2", "dup", "c3", "c4", "c5"}

	t.Run("truncates", func(t *testing.T) {
		got, tier := Condense("- a\n- b\n- c\n- d\n- e\n- f\n- g", candidates, 5)
		assert.Equal(t, TierList, tier)
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
	})

	t.Run("backfills skipping duplicates", func(t *testing.T) {
		got, _ := Condense("- dup\n- c1", candidates, 5)
		assert.Equal(t, []string{"dup", "c1", "c2", "c3", "c4"}, got)
	})

	t.Run("unstructured uses candidates", func(t *testing.T) {
		got, tier := Condense("sorry, I cannot", []string{"x", "x", "y"}, 5)
		assert.Equal(t, TierCandidates, tier)
		assert.Equal(t, []string{"x", "y"}, got)
	})
}

type scriptedLLM struct {
	mu      sync.Mutex
	prompts []string
	fn      func(prompt string) (string, error)
}

func (s *scriptedLLM) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	prompt := msgs[len(msgs)-1].Content
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.fn(prompt)
}

func (s *scriptedLLM) Model() string { return "scripted" }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func isReduce(prompt string) bool { return strings.Contains(prompt, "[candidate points]") }

func TestMapReducer_FailedChunkContributesNothing(t *testing.T) {
	fake := &scriptedLLM{fn: func(p string) (string, error) {
		switch {
		case isReduce(p):
			return "- merged one\n- merged two", nil
		case strings.Contains(p, "[excerpt 2]"):
			return "", errors.New("upstream 500")
		case strings.Contains(p, "[excerpt 1]"):
			return "- p1a\n- p1b\n- p1c\n- p1d", nil
		default:
			return "- p3a", nil
		}
	}}

	chunks := []Chunk{{Index: 0, Text: "first"}, {Index: 1, Text: "second"}, {Index: 2, Text: "third"}}
	mr := NewMapReducer(fake, DefaultConfig(), discard())

	res, err := mr.KeyPoints(context.Background(), chunks, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedChunks)
	assert.Equal(t, []string{"p1a", "p1b", "p1c", "p3a"}, res.Candidates)
	assert.Equal(t, []string{"merged one", "merged two", "p1a", "p1b", "p1c"}, res.Points)
	assert.Equal(t, TierList, res.Tier)
}

func TestMapReducer_AllChunksFailGivesSentinel(t *testing.T) {
	fake := &scriptedLLM{fn: func(string) (string, error) { return "", errors.New("down") }}
	mr := NewMapReducer(fake, DefaultConfig(), discard())

	res, err := mr.KeyPoints(context.Background(), Split(strings.Repeat("x", 9000), 4000, 200), "")
	require.NoError(t, err)
	assert.Equal(t, []string{SentinelPoint}, res.Points)
	assert.Equal(t, 3, res.FailedChunks)
}

func TestMapReducer_ReduceFailureUsesCandidates(t *testing.T) {
	fake := &scriptedLLM{fn: func(p string) (string, error) {
		if isReduce(p) {
			return "", errors.New("reduce timeout")
		}
		return "- a\n- b\n- c", nil
	}}
	mr := NewMapReducer(fake, DefaultConfig(), discard())

	res, err := mr.KeyPoints(context.Background(), []Chunk{{Index: 0, Text: "one"}, {Index: 1, Text: "two"}}, "")
	require.NoError(t, err)
	assert.Equal(t, TierCandidates, res.Tier)
	assert.Equal(t, []string{"a", "b", "c"}, res.Points)
}

func TestMapReducer_CapsChunksSkipsBlankAndForwardsFeedback(t *testing.T) {
	fake := &scriptedLLM{fn: func(p string) (string, error) { return "- point", nil }}
	cfg := DefaultConfig()
	cfg.MaxChunks = 3
	mr := NewMapReducer(fake, cfg, discard())

	chunks := []Chunk{{0, "a"}, {1, "  "}, {2, "c"}, {3, "d"}, {4, "e"}}
	_, err := mr.KeyPoints(context.Background(), chunks, "too vague")
	require.NoError(t, err)

	// two mapped chunks plus one reduce
	require.Len(t, fake.prompts, 3)
	for _, p := range fake.prompts {
		assert.Contains(t, p, "too vague")
		assert.NotContains(t, p, "[excerpt 4]")
	}
}
