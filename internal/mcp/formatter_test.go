package mcp

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/internal/pipeline"
	"github.com/maraichr/slidepilot/internal/quality"
	"github.com/maraichr/slidepilot/pkg/models"
)

func TestParseVerbosity_Defaults(t *testing.T) {
	tests := []struct {
		input    string
		expected Verbosity
	}{
		{"summary", VerbositySummary},
		{"SUMMARY", VerbositySummary},
		{"full", VerbosityFull},
		{"Full", VerbosityFull},
		{"standard", VerbosityStandard},
		{"", VerbosityStandard},
		{"bogus", VerbosityStandard},
	}
	for _, tt := range tests {
		if got := ParseVerbosity(tt.input); got != tt.expected {
			t.Errorf("ParseVerbosity(%q) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestResponseBuilder_DefaultMaxTokens(t *testing.T) {
	rb := NewResponseBuilder(0)
	if rb.maxTokens != defaultMaxTokens {
		t.Errorf("expected %d, got %d", defaultMaxTokens, rb.maxTokens)
	}
}

func TestResponseBuilder_AddLine_BudgetExceeded(t *testing.T) {
	rb := NewResponseBuilder(5)
	if !rb.AddLine("short") {
		t.Fatal("first line should fit")
	}
	if rb.AddLine(strings.Repeat("x", 200)) {
		t.Fatal("long line should exceed the budget")
	}
	if !rb.IsTruncated() {
		t.Error("expected truncated")
	}
	out := rb.Finalize(2, 1)
	if !strings.Contains(out, "Showing 1 of 2") {
		t.Errorf("expected truncation notice, got %q", out)
	}
}

func TestResponseBuilder_Finalize_NoTruncationWhenComplete(t *testing.T) {
	rb := NewResponseBuilder(100)
	rb.AddHeader("**Decks**")
	rb.AddLine("- one")
	out := rb.Finalize(1, 1)
	if strings.Contains(out, "Showing") {
		t.Errorf("unexpected notice in %q", out)
	}
}

func sampleResult() pipeline.Result {
	job := uuid.New()
	return pipeline.Result{
		RunID:     uuid.New(),
		Title:     "Go Concurrency",
		Markdown:  "---\nmarp: true\n---\n# Go Concurrency",
		KeyPoints: []string{"goroutines are cheap", "channels synchronize"},
		Deck:      &models.Deck{ID: uuid.New(), MarkdownKey: "decks/u/go.md"},
		Evaluation: &quality.Evaluation{
			Score:    6.5,
			Feedback: "needs examples",
			Attempt:  3,
		},
		Attempts:    3,
		BestEffort:  true,
		RenderJobID: &job,
	}
}

func TestFormatResult(t *testing.T) {
	res := sampleResult()

	summary := FormatResult(res, VerbositySummary, 0)
	if !strings.Contains(summary, "**Go Concurrency**") || !strings.Contains(summary, "best effort") {
		t.Errorf("summary missing title or status: %s", summary)
	}
	if strings.Contains(summary, "Key points") {
		t.Error("summary should not list key points")
	}
	if !strings.Contains(summary, "get_render_job") {
		t.Error("summary should point at get_render_job")
	}

	standard := FormatResult(res, VerbosityStandard, 0)
	if !strings.Contains(standard, "- goroutines are cheap") || !strings.Contains(standard, "needs examples") {
		t.Errorf("standard missing key points or feedback: %s", standard)
	}
	if strings.Contains(standard, "marp: true") {
		t.Error("standard should not include markdown")
	}

	full := FormatResult(res, VerbosityFull, 0)
	if !strings.Contains(full, "marp: true") {
		t.Error("full should include markdown")
	}
}

func TestFormatFailure(t *testing.T) {
	res := pipeline.Result{RunID: uuid.New(), Log: []string{"[collect] topic with 2 search results", "[draft] failed: timeout"}}

	out := FormatFailure("draft", errTimeout, res, 0)
	if !strings.Contains(out, "stage `draft`: timeout") {
		t.Errorf("missing stage: %s", out)
	}
	if !strings.Contains(out, "[collect] topic with 2 search results\n[draft] failed: timeout") {
		t.Errorf("missing log lines: %s", out)
	}
	if strings.Contains(out, "Showing") {
		t.Error("complete log should not be marked truncated")
	}

	long := pipeline.Result{Log: []string{strings.Repeat("x", 400), strings.Repeat("y", 400)}}
	if out := FormatFailure("", errTimeout, long, 150); !strings.Contains(out, "Showing 1 of 2") {
		t.Errorf("expected truncation notice: %s", out)
	}
}

type stringErr string

func (e stringErr) Error() string { return string(e) }

const errTimeout = stringErr("timeout")

func TestFormatDecks(t *testing.T) {
	if got := FormatDecks(nil, 0); got != "No decks found." {
		t.Errorf("unexpected: %q", got)
	}
	video := "u/intro_video.mp4"
	out := FormatDecks([]models.Deck{
		{ID: uuid.New(), Title: "Intro", Score: 8.5, CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), VideoURL: &video},
	}, 0)
	if !strings.Contains(out, "**Intro**") || !strings.Contains(out, "2026-01-02") || !strings.Contains(out, "video ready") {
		t.Errorf("unexpected listing: %s", out)
	}
}

func TestFormatJob(t *testing.T) {
	msg := "ffmpeg exploded"
	out := FormatJob(&models.RenderJob{ID: uuid.New(), Status: models.JobFailed, ErrorMessage: &msg})
	if !strings.Contains(out, "**failed**") || !strings.Contains(out, msg) {
		t.Errorf("unexpected: %s", out)
	}
}
