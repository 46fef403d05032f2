// Package mcp formats deck and render job results as token-budgeted Markdown
// for MCP tool responses.
package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/maraichr/slidepilot/internal/pipeline"
	"github.com/maraichr/slidepilot/pkg/models"
)

const defaultMaxTokens = 4000

// Verbosity controls how much of a run is echoed back.
type Verbosity string

const (
	VerbositySummary  Verbosity = "summary"
	VerbosityStandard Verbosity = "standard"
	VerbosityFull     Verbosity = "full"
)

// ParseVerbosity returns a Verbosity from a string, defaulting to standard.
func ParseVerbosity(s string) Verbosity {
	switch strings.ToLower(s) {
	case "summary":
		return VerbositySummary
	case "full":
		return VerbosityFull
	default:
		return VerbosityStandard
	}
}

// ResponseBuilder constructs token-budgeted Markdown responses for MCP tools.
type ResponseBuilder struct {
	buf           strings.Builder
	tokenEstimate int
	maxTokens     int
	truncated     bool
}

// NewResponseBuilder creates a builder with the given token budget.
// If maxTokens <= 0, defaultMaxTokens is used.
func NewResponseBuilder(maxTokens int) *ResponseBuilder {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &ResponseBuilder{maxTokens: maxTokens}
}

// AddHeader writes a header line. Headers are never dropped.
func (rb *ResponseBuilder) AddHeader(text string) {
	line := text + "\n\n"
	rb.buf.WriteString(line)
	rb.tokenEstimate += len(line) / 4
}

// AddLine writes a single line to the response, returning false if budget exceeded.
func (rb *ResponseBuilder) AddLine(text string) bool {
	return rb.add(text + "\n")
}

// AddSection writes a headed block, returning false if budget exceeded.
func (rb *ResponseBuilder) AddSection(heading, content string) bool {
	return rb.add(fmt.Sprintf("\n### %s\n\n%s\n", heading, content))
}

func (rb *ResponseBuilder) add(s string) bool {
	cost := len(s) / 4
	if rb.tokenEstimate+cost > rb.maxTokens {
		rb.truncated = true
		return false
	}
	rb.buf.WriteString(s)
	rb.tokenEstimate += cost
	return true
}

// Finalize returns the response with a truncation notice if anything was dropped.
func (rb *ResponseBuilder) Finalize(totalCount, returnedCount int) string {
	if rb.truncated || returnedCount < totalCount {
		rb.buf.WriteString(fmt.Sprintf(
			"\n---\n*Showing %d of %d items (truncated to ~%d tokens).*\n",
			returnedCount, totalCount, rb.maxTokens))
	}
	return rb.buf.String()
}

func (rb *ResponseBuilder) IsTruncated() bool {
	return rb.truncated
}

// FormatResult renders a run snapshot.
func FormatResult(res pipeline.Result, verbosity Verbosity, maxTokens int) string {
	rb := NewResponseBuilder(maxTokens)
	rb.AddHeader(fmt.Sprintf("**%s**", res.Title))

	rb.AddLine(fmt.Sprintf("- run: `%s`", res.RunID))
	if res.Deck != nil {
		rb.AddLine(fmt.Sprintf("- deck: `%s` (%s)", res.Deck.ID, res.Deck.MarkdownKey))
	}
	if ev := res.Evaluation; ev != nil {
		status := "passed"
		switch {
		case res.BestEffort:
			status = "best effort"
		case !ev.Pass:
			status = "failed"
		}
		rb.AddLine(fmt.Sprintf("- score: %.1f (%s, %d attempts)", ev.Score, status, res.Attempts))
	}
	if res.RenderJobID != nil {
		rb.AddLine(fmt.Sprintf("- render job: `%s` (poll with `get_render_job`)", *res.RenderJobID))
	}
	if verbosity == VerbositySummary {
		return rb.Finalize(0, 0)
	}

	if len(res.KeyPoints) > 0 {
		rb.AddSection("Key points", bulletList(res.KeyPoints))
	}
	if ev := res.Evaluation; ev != nil && ev.Feedback != "" {
		rb.AddSection("Reviewer feedback", ev.Feedback)
	}
	if verbosity == VerbosityFull && res.Markdown != "" {
		rb.AddSection("Markdown", res.Markdown)
	}
	return rb.Finalize(0, 0)
}

// FormatFailure renders a failed run with its stage and as much of the run
// log as the budget allows.
func FormatFailure(stage string, err error, res pipeline.Result, maxTokens int) string {
	rb := NewResponseBuilder(maxTokens)
	if stage != "" {
		rb.AddHeader(fmt.Sprintf("**Deck generation failed** at stage `%s`: %v", stage, err))
	} else {
		rb.AddHeader(fmt.Sprintf("**Deck generation failed**: %v", err))
	}
	rb.AddLine(fmt.Sprintf("- run: `%s`", res.RunID))
	if len(res.Log) == 0 {
		return rb.Finalize(0, 0)
	}
	rb.AddLine("")
	shown := 0
	for _, line := range res.Log {
		if !rb.AddLine(line) {
			break
		}
		shown++
	}
	return rb.Finalize(len(res.Log), shown)
}

// FormatDecks renders a deck listing.
func FormatDecks(decks []models.Deck, maxTokens int) string {
	if len(decks) == 0 {
		return "No decks found."
	}
	rb := NewResponseBuilder(maxTokens)
	rb.AddHeader(fmt.Sprintf("**Decks** (%d found)", len(decks)))
	shown := 0
	for _, d := range decks {
		line := fmt.Sprintf("- **%s** (`%s`) score %.1f, %s", d.Title, d.ID, d.Score, d.CreatedAt.Format(time.DateOnly))
		if d.VideoURL != nil {
			line += ", video ready"
		}
		if !rb.AddLine(line) {
			break
		}
		shown++
	}
	return rb.Finalize(len(decks), shown)
}

// FormatJob renders a render job status.
func FormatJob(j *models.RenderJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Render job `%s`: **%s**\n", j.ID, j.Status)
	if j.ResultRef != nil {
		fmt.Fprintf(&b, "- video: %s\n", *j.ResultRef)
	}
	if j.ErrorMessage != nil {
		fmt.Fprintf(&b, "- error: %s\n", *j.ErrorMessage)
	}
	fmt.Fprintf(&b, "- updated: %s\n", j.UpdatedAt.UTC().Format(time.RFC3339))
	return b.String()
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
