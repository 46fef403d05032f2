package deck

import (
	"regexp"
	"strings"
)

const (
	maxSlugLen    = 80
	maxTitleRunes = 30
	defaultSlug   = "slide"
	titleEllipsis = "..."
)

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases title, collapses every run of non ASCII alphanumerics
// into one hyphen and trims hyphens. The result is at most 80 bytes and is
// "slide" when nothing survives.
func Slugify(title string) string {
	s := nonSlugRe.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	if s == "" {
		return defaultSlug
	}
	return s
}

var titlePrefixRe = regexp.MustCompile(`(?i)^(title|suggested|タイトル|案)\s*[:：]\s*`)

// CleanTitle takes the first line of a model answer and strips quotes,
// brackets and "Title:" style prefixes.
func CleanTitle(raw string) string {
	t := strings.TrimSpace(raw)
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimLeft(t, "# ")
	t = titlePrefixRe.ReplaceAllString(t, "")
	return strings.Trim(t, "「」『』\"'` 　:：*")
}

// TruncateTitle cuts title to 30 runes followed by "...".
func TruncateTitle(title string) string {
	r := []rune(title)
	if len(r) <= maxTitleRunes {
		return title
	}
	return string(r[:maxTitleRunes]) + titleEllipsis
}
