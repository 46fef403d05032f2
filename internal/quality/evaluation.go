package quality

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/maraichr/slidepilot/internal/llm"
)

// Weights maps a scoring dimension to its share of the overall score.
type Weights map[string]float64

var (
	// DocumentWeights score decks built from a source document.
	DocumentWeights = Weights{
		"structure":         0.20,
		"comprehensiveness": 0.25,
		"clarity":           0.25,
		"readability":       0.15,
		"engagement":        0.15,
	}
	// TopicWeights score decks built from a free-text topic.
	TopicWeights = Weights{
		"structure":    0.20,
		"practicality": 0.25,
		"accuracy":     0.25,
		"readability":  0.15,
		"conciseness":  0.15,
	}
)

// Dimensions returns the weight keys in a stable order.
func (w Weights) Dimensions() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Weighted sums score*weight over the dimensions present in scores.
func (w Weights) Weighted(scores map[string]float64) float64 {
	var total float64
	for dim, weight := range w {
		total += scores[dim] * weight
	}
	return total
}

// Evaluation is one immutable scoring of a draft.
type Evaluation struct {
	Score           float64            `json:"score" validate:"gte=0,lte=10"`
	DimensionScores map[string]float64 `json:"dimension_scores,omitempty" validate:"omitempty,dive,gte=0,lte=10"`
	Pass            bool               `json:"pass"`
	Feedback        string             `json:"feedback"`
	Reasons         map[string]string  `json:"reasons,omitempty"`
	Suggestions     []string           `json:"suggestions,omitempty"`
	RiskFlags       []string           `json:"risk_flags,omitempty"`
	Attempt         int                `json:"attempt_number" validate:"gte=1"`
}

type rawEvaluation struct {
	Score       *float64           `json:"score"`
	Subscores   map[string]float64 `json:"subscores"`
	Reasons     map[string]string  `json:"reasons"`
	Suggestions []string           `json:"suggestions"`
	RiskFlags   []string           `json:"risk_flags"`
	Pass        *bool              `json:"pass"`
	Feedback    string             `json:"feedback"`
}

var validate = validator.New()

// ParseEvaluation reads an evaluator answer. The JSON object is located by
// fence stripping and brace matching. A missing score is the weighted sum of
// the dimension scores; pass defaults to score >= threshold unless the
// payload sets it explicitly.
func ParseEvaluation(raw string, attempt int, weights Weights, threshold float64) (Evaluation, error) {
	obj, ok := llm.ExtractJSON(raw)
	if !ok {
		return Evaluation{}, fmt.Errorf("parse evaluation: no JSON object in response")
	}

	var re rawEvaluation
	if err := json.Unmarshal([]byte(obj), &re); err != nil {
		return Evaluation{}, fmt.Errorf("parse evaluation: %w", err)
	}

	ev := Evaluation{
		DimensionScores: re.Subscores,
		Feedback:        re.Feedback,
		Reasons:         re.Reasons,
		Suggestions:     re.Suggestions,
		RiskFlags:       re.RiskFlags,
		Attempt:         attempt,
	}
	switch {
	case re.Score != nil:
		ev.Score = *re.Score
	case len(re.Subscores) > 0:
		ev.Score = weights.Weighted(re.Subscores)
	default:
		return Evaluation{}, fmt.Errorf("parse evaluation: neither score nor subscores present")
	}

	if re.Pass != nil {
		ev.Pass = *re.Pass
	} else {
		ev.Pass = ev.Score >= threshold
	}

	if err := validate.Struct(ev); err != nil {
		return Evaluation{}, fmt.Errorf("validate evaluation: %w", err)
	}
	return ev, nil
}

// Unparsable is the evaluation recorded when the evaluator answer cannot be
// read: a failing score of zero with the raw answer as feedback.
func Unparsable(raw string, attempt int) Evaluation {
	return Evaluation{Score: 0, Pass: false, Feedback: raw, Attempt: attempt}
}
