package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maraichr/slidepilot/internal/chunk"
	"github.com/maraichr/slidepilot/internal/llm"
)

const maxOutline = 8

var defaultOutline = map[string][]string{
	"ja": {"はじめに", "背景", "実装手順", "評価と改善", "公開・運用", "まとめ"},
	"en": {"Introduction", "Background", "Implementation", "Evaluation and Improvement", "Operations", "Summary"},
}

// DefaultOutline is the last-resort section list for language.
func DefaultOutline(language string) []string {
	if o, ok := defaultOutline[language]; ok {
		return append([]string(nil), o...)
	}
	return append([]string(nil), defaultOutline["en"]...)
}

// ParseOutline reads {"toc": [...]}, then bullet lines, then falls back to
// DefaultOutline. At most eight sections are kept.
func ParseOutline(raw, language string) ([]string, chunk.Tier) {
	if obj, ok := llm.ExtractJSON(raw); ok {
		var payload struct {
			TOC []string `json:"toc"`
		}
		if json.Unmarshal([]byte(obj), &payload) == nil {
			var toc []string
			for _, t := range payload.TOC {
				if t = strings.TrimSpace(t); t != "" {
					toc = append(toc, t)
				}
			}
			if len(toc) > 0 {
				return capOutline(toc), chunk.TierJSON
			}
		}
	}

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if chunk.IsListItem(line) {
			if t := chunk.StripMarker(line); t != "" {
				lines = append(lines, t)
			}
		}
	}
	if len(lines) > 0 {
		return capOutline(lines), chunk.TierList
	}
	return DefaultOutline(language), chunk.TierNone
}

func capOutline(toc []string) []string {
	if len(toc) > maxOutline {
		return toc[:maxOutline]
	}
	return toc
}

// BuildOutline turns key points into chapter titles.
type BuildOutline struct {
	llm      llm.Completer
	language string
}

func NewBuildOutline(c llm.Completer, language string) *BuildOutline {
	return &BuildOutline{llm: c, language: language}
}

func (s *BuildOutline) Name() string { return StageOutline }

func (s *BuildOutline) Run(ctx context.Context, rc *RunContext) (Update, error) {
	raw, err := llm.Ask(ctx, s.llm, outlineSystem(s.language), outlinePrompt(rc.KeyPoints))
	if err != nil {
		return Update{}, fmt.Errorf("complete outline: %w", err)
	}
	toc, tier := ParseOutline(raw, s.language)
	return Update{
		Outline: toc,
		Log:     []string{fmt.Sprintf("[outline] %d sections (tier %s)", len(toc), tier)},
	}, nil
}
