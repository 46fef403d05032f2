package chunk

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/maraichr/slidepilot/internal/llm"
)

// Tier records which parse rule produced a point list.
type Tier int

const (
	TierNone Tier = iota
	// TierJSON: {"points": [...]} or a bare JSON array of strings.
	TierJSON
	// TierList: lines whose leading marker is -, •, *, ・, N. or N).
	TierList
	// TierLines: every non-empty line, markers stripped.
	TierLines
	// TierCandidates: the model answer was unusable; points came from the candidates.
	TierCandidates
)

func (t Tier) String() string {
	switch t {
	case TierJSON:
		return "json"
	case TierList:
		return "list"
	case TierLines:
		return "lines"
	case TierCandidates:
		return "candidates"
	default:
		return "none"
	}
}

var numberedRe = regexp.MustCompile(`^\d+[.)]\s*`)

// IsListItem reports whether line starts with a bullet or numbered marker.
func IsListItem(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" {
		return false
	}
	if strings.HasPrefix(t, "-") || strings.HasPrefix(t, "•") ||
		strings.HasPrefix(t, "*") || strings.HasPrefix(t, "・") {
		return true
	}
	return numberedRe.MatchString(t)
}

// StripMarker removes a leading bullet or number marker and surrounding space.
func StripMarker(line string) string {
	t := strings.TrimSpace(line)
	if loc := numberedRe.FindStringIndex(t); loc != nil {
		t = t[loc[1]:]
	}
	t = strings.TrimLeft(t, "・-•* \t")
	return strings.TrimSpace(t)
}

// ParseStructured applies the JSON tier, then the list-item tier. It returns
// TierNone and no points when neither matches.
func ParseStructured(raw string) ([]string, Tier) {
	if pts := parseJSONPoints(raw); len(pts) > 0 {
		return pts, TierJSON
	}
	var pts []string
	for _, line := range strings.Split(raw, "\n") {
		if !IsListItem(line) {
			continue
		}
		if p := StripMarker(line); p != "" {
			pts = append(pts, p)
		}
	}
	if len(pts) > 0 {
		return pts, TierList
	}
	return nil, TierNone
}

// ParsePoints extracts up to limit points from a model answer, falling back
// to every non-empty line when no structured tier matches.
func ParsePoints(raw string, limit int) ([]string, Tier) {
	pts, tier := ParseStructured(raw)
	if tier == TierNone {
		for _, line := range strings.Split(llm.StripFences(raw), "\n") {
			if p := StripMarker(line); p != "" {
				pts = append(pts, p)
			}
		}
		if len(pts) > 0 {
			tier = TierLines
		}
	}
	if limit > 0 && len(pts) > limit {
		pts = pts[:limit]
	}
	return pts, tier
}

// Condense turns a reduce answer into exactly target points when enough
// material exists: structured points are truncated to target, then padded
// from candidates in order, skipping exact duplicates. When the answer has no
// structured points the result is the first target unique candidates.
func Condense(raw string, candidates []string, target int) ([]string, Tier) {
	pts, tier := ParseStructured(raw)
	if tier == TierNone {
		tier = TierCandidates
	}
	if len(pts) > target {
		pts = pts[:target]
	}
	return backfill(pts, candidates, target), tier
}

func backfill(pts, candidates []string, target int) []string {
	seen := make(map[string]bool, len(pts))
	out := make([]string, 0, target)
	for _, p := range pts {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, c := range candidates {
		if len(out) >= target {
			break
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func parseJSONPoints(raw string) []string {
	var list []string

	if obj, ok := llm.ExtractJSON(raw); ok {
		var payload struct {
			Points []string `json:"points"`
		}
		if json.Unmarshal([]byte(obj), &payload) == nil {
			list = payload.Points
		}
	} else {
		t := llm.StripFences(raw)
		if strings.HasPrefix(t, "[") {
			_ = json.Unmarshal([]byte(t), &list)
		}
	}

	var out []string
	for _, p := range list {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
