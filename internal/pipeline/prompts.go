package pipeline

import (
	"fmt"
	"strings"

	"github.com/maraichr/slidepilot/internal/chunk"
	"github.com/maraichr/slidepilot/internal/quality"
)

const (
	previewPerChunk = 1500
	previewTotal    = 15000
	snippetRunes    = 1200
	evalDeckRunes   = 20000
)

func languageLine(lang string) string {
	if lang == "" {
		return ""
	}
	return "\nWrite in language: " + lang + "."
}

func keyPointsSystem(lang string) string {
	return "You extract the most important points for a slide presentation. " +
		"Answer with a bulleted list, one point per line, no preamble." + languageLine(lang)
}

func topicKeyPointsPrompt(topic string, snippets []string, target int, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\n", topic)
	if len(snippets) > 0 {
		b.WriteString("[search results]\n")
		for _, s := range snippets {
			b.WriteString(s)
			b.WriteString("\n\n")
		}
	}
	fmt.Fprintf(&b, "List the %d most important points a presentation on this topic must cover.", target)
	if feedback != "" {
		b.WriteString("\n\n[reviewer feedback on the previous attempt]\n")
		b.WriteString(feedback)
	}
	return b.String()
}

func outlineSystem(lang string) string {
	return "You structure presentations into chapters." + languageLine(lang)
}

func outlinePrompt(points []string) string {
	return "From the key points below, propose 5 to 8 chapter titles that a beginner can follow. " +
		"Return JSON in the form {\"toc\": [ ... ]}.\n\n[key points]\n" + bullets(points)
}

func titleSystem(lang string) string {
	return "You write concise presentation titles. Answer with the title only, at most 30 characters." + languageLine(lang)
}

func titlePrompt(hint string, points []string) string {
	return fmt.Sprintf("Source: %s\n\n[key points]\n%s\nPropose one title for this presentation.", hint, bullets(points))
}

func draftSystem(lang string) string {
	return "You write Marp markdown slide decks. Separate slides with a line containing only ---. " +
		"Start with a title slide using a single # heading. Use ## headings and short bullet lists on " +
		"content slides, and at most one mermaid diagram per slide where a diagram helps. " +
		"Do not wrap the answer in a code fence and do not write front matter." + languageLine(lang)
}

func draftPrompt(rc *RunContext, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\n[outline]\n%s\n[key points]\n%s\n", title, bullets(rc.Outline), bullets(rc.KeyPoints))

	if len(rc.Chunks) > 0 {
		b.WriteString("[source excerpts]\n")
		for i, p := range chunk.Previews(rc.Chunks, previewPerChunk, previewTotal) {
			fmt.Fprintf(&b, "## Section %d\n%s\n\n", i+1, p)
		}
	} else if len(rc.Snippets) > 0 {
		b.WriteString("[search results]\n")
		for _, s := range snippetTexts(rc) {
			b.WriteString(s)
			b.WriteString("\n\n")
		}
	}
	b.WriteString("Write the full deck, one slide per outline chapter plus a title slide and a summary slide.")
	if fb := rc.retryFeedback(); fb != "" {
		b.WriteString("\n\n[reviewer feedback on the previous attempt]\n")
		b.WriteString(fb)
	}
	return b.String()
}

func evaluateSystem() string {
	return "You are a strict reviewer of presentation slides. Answer with JSON only."
}

func evaluatePrompt(md string, outline []string, topic string, weights quality.Weights) string {
	r := []rune(md)
	if len(r) > evalDeckRunes {
		r = r[:evalDeckRunes]
	}
	dims := weights.Dimensions()
	return fmt.Sprintf(`Score the deck below from 0 to 10.

Topic: %s
Planned outline:
%s
Return JSON:
{"score": number, "subscores": {%s}, "reasons": {dimension: text}, "suggestions": [text], "risk_flags": [text], "pass": boolean, "feedback": text}

Scoring dimensions: %s.

[deck]
%s`, topic, bullets(outline), quotedKeys(dims), strings.Join(dims, ", "), string(r))
}

func slugSystem() string {
	return "You produce short English file names. Answer with 2 to 6 lowercase English words separated by hyphens, nothing else."
}

func slugPrompt(title string) string {
	return "Presentation title: " + title
}

func bullets(items []string) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteByte('\n')
	}
	return b.String()
}

func quotedKeys(keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%q: number", k)
	}
	return strings.Join(parts, ", ")
}

func snippetTexts(rc *RunContext) []string {
	out := make([]string, 0, len(rc.Snippets))
	for _, s := range rc.Snippets {
		content := []rune(s.Content)
		if len(content) > snippetRunes {
			content = content[:snippetRunes]
		}
		out = append(out, fmt.Sprintf("### %s (%s)\n%s", s.Title, s.URL, string(content)))
	}
	return out
}
