package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maraichr/slidepilot/internal/deck"
	"github.com/maraichr/slidepilot/internal/llm"
)

// Draft writes the Marp deck. The title is generated on the first attempt
// and kept across retries.
type Draft struct {
	llm      llm.Completer
	language string
	theme    string
	logger   *slog.Logger
}

func NewDraft(c llm.Completer, language, theme string, logger *slog.Logger) *Draft {
	return &Draft{llm: c, language: language, theme: theme, logger: logger}
}

func (s *Draft) Name() string { return StageDraft }

func (s *Draft) Run(ctx context.Context, rc *RunContext) (Update, error) {
	title := rc.Title
	if title == "" {
		title = s.title(ctx, rc)
	}

	raw, err := llm.Ask(ctx, s.llm, draftSystem(s.language), draftPrompt(rc, title))
	if err != nil {
		return Update{}, fmt.Errorf("complete draft: %w", err)
	}

	body := deck.StripFences(raw)
	md, err := deck.WithFrontMatter(body, deck.FrontMatter{
		Marp:     true,
		Theme:    s.theme,
		Paginate: true,
		Title:    title,
	})
	if err != nil {
		return Update{}, err
	}

	return Update{
		Title: &title,
		Draft: &md,
		Log: []string{fmt.Sprintf("[draft] %d chars, %d slides, title %q",
			len([]rune(md)), len(deck.SplitSlides(md)), title)},
	}, nil
}

// title asks for a title and falls back to the hint (file stem or topic).
func (s *Draft) title(ctx context.Context, rc *RunContext) string {
	raw, err := llm.Ask(ctx, s.llm, titleSystem(s.language), titlePrompt(rc.TitleHint, rc.KeyPoints))
	if err != nil {
		s.logger.Warn("title generation failed, using hint",
			slog.String("run_id", rc.RunID.String()),
			slog.String("error", err.Error()))
	} else if t := deck.CleanTitle(strings.NewReplacer(`"`, "", "'", "").Replace(raw)); t != "" {
		return deck.TruncateTitle(t)
	}
	return deck.TruncateTitle(rc.TitleHint)
}
