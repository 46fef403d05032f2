// Package narration writes per-slide narration scripts and synthesizes them
// to audio.
package narration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maraichr/slidepilot/internal/batch"
	"github.com/maraichr/slidepilot/internal/llm"
)

// maxSlideRunes bounds the slide content placed in each narration prompt.
const maxSlideRunes = 500

// FallbackText is the narration used when generation fails for slide n
// (1-based).
func FallbackText(n int, language string) string {
	if language == "ja" {
		return fmt.Sprintf("%d枚目のスライドです。", n)
	}
	return fmt.Sprintf("Slide %d.", n)
}

// Narrator produces one narration script per slide.
type Narrator struct {
	llm            llm.Completer
	language       string
	maxConcurrency int
	unitTimeout    time.Duration
	logger         *slog.Logger
}

func NewNarrator(c llm.Completer, language string, maxConcurrency int, unitTimeout time.Duration, logger *slog.Logger) *Narrator {
	return &Narrator{
		llm:            c,
		language:       language,
		maxConcurrency: maxConcurrency,
		unitTimeout:    unitTimeout,
		logger:         logger,
	}
}

// Narrate returns len(slides) scripts in slide order. A slide whose
// completion fails gets FallbackText; only ctx cancellation is an error.
func (n *Narrator) Narrate(ctx context.Context, slides []string) ([]string, error) {
	worker := func(ctx context.Context, i int, slide string) (string, error) {
		raw, err := llm.Ask(ctx, n.llm, n.systemPrompt(), userPrompt(slide))
		if err != nil {
			return "", err
		}
		text := strings.Trim(strings.TrimSpace(raw), "\"'「」")
		if text == "" {
			return "", fmt.Errorf("empty narration")
		}
		return text, nil
	}

	out, err := batch.Run(ctx, slides, worker, batch.Options[string, string]{
		MaxConcurrency: n.maxConcurrency,
		Policy:         batch.Fallback,
		UnitTimeout:    n.unitTimeout,
		Fallback: func(i int, _ string, _ error) string {
			return FallbackText(i+1, n.language)
		},
		OnError: func(i int, err error) {
			n.logger.Warn("narration failed, using fallback",
				slog.Int("slide", i+1),
				slog.String("error", err.Error()))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("narrate slides: %w", err)
	}
	return out, nil
}

func (n *Narrator) systemPrompt() string {
	s := "You write spoken narration for presentation slides. Write 150 to 250 characters of " +
		"natural, conversational speech. Turn bullet points into sentences, briefly explain " +
		"technical terms and never read out emoji or symbols. Output the narration only."
	if n.language != "" {
		s += " Write in language: " + n.language + "."
	}
	return s
}

func userPrompt(slide string) string {
	r := []rune(slide)
	if len(r) > maxSlideRunes {
		r = r[:maxSlideRunes]
	}
	return "Slide content:\n" + string(r)
}
