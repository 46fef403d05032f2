// Package deck reads and writes Marp markdown decks.
package deck

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SlideSeparator divides slides in Marp markdown.
const SlideSeparator = "\n---\n"

// FrontMatter is the Marp header of a deck.
type FrontMatter struct {
	Marp     bool   `yaml:"marp"`
	Theme    string `yaml:"theme,omitempty"`
	Paginate bool   `yaml:"paginate"`
	Title    string `yaml:"title,omitempty"`
}

var frontMatterRe = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---\r?\n?`)

// SplitFrontMatter separates a leading YAML front matter block from the body.
// ok is false when md has none.
func SplitFrontMatter(md string) (fm FrontMatter, body string, ok bool) {
	trimmed := strings.TrimLeft(md, " \t\r\n")
	m := frontMatterRe.FindStringSubmatchIndex(trimmed)
	if m == nil {
		return FrontMatter{}, md, false
	}
	if err := yaml.Unmarshal([]byte(trimmed[m[2]:m[3]]), &fm); err != nil {
		return FrontMatter{}, md, false
	}
	return fm, trimmed[m[1]:], true
}

// WithFrontMatter replaces any existing front matter in md with fm.
func WithFrontMatter(md string, fm FrontMatter) (string, error) {
	_, body, _ := SplitFrontMatter(md)
	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshal front matter: %w", err)
	}
	return "---\n" + string(header) + "---\n\n" + strings.TrimLeft(body, "\r\n"), nil
}

// StripFences removes a code fence that wraps the whole document, as models
// often return markdown inside ```markdown ... ```.
func StripFences(md string) string {
	t := strings.TrimSpace(md)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	} else {
		return ""
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}
