package triage

import (
	"context"
	"math"
	"strings"
)

// Categories is the closed label set for incident classification. The
// external zero-shot classifier picks from exactly these labels; the fallback
// path uses the caller's hint or "Other".
var Categories = []string{
	"Harassment",
	"Theft",
	"Suspicious Activity",
	"Medical",
	"Vandalism",
	"Other",
}

// FallbackModel names the deterministic keyword scorer in classification
// metadata, so operators can tell which path produced a category.
const FallbackModel = "fallback-keywords"

// Prediction is the top label and confidence from an external classifier.
type Prediction struct {
	Label      string
	Confidence float64
}

// Classifier is an external zero-shot text classifier. Implementations must
// honour ctx cancellation; any error is recovered by the engine via the
// fallback path.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (*Prediction, error)
}

// keywordBoost weights. A single description can hit several terms; the total
// boost is capped so keyword density alone cannot saturate the score.
const (
	highSeverityWeight = 18
	medSeverityWeight  = 8
	maxKeywordBoost    = 60
	summaryMaxLen      = 160
	confidenceWeight   = 20
)

var highSeverityTerms = []string{
	"weapon", "gun", "knife", "blood", "attack", "assault",
	"stalking", "follow", "unconscious", "overdose", "fire", "threat",
}

var medSeverityTerms = []string{
	"harass", "steal", "theft", "rob", "suspicious",
	"vandal", "injury", "hurt", "unsafe", "creepy",
}

// baseScore is the fixed per-category urgency floor.
func baseScore(category string) int {
	switch category {
	case "Medical":
		return 65
	case "Harassment":
		return 55
	case "Suspicious Activity":
		return 50
	case "Theft":
		return 40
	case "Vandalism":
		return 30
	default:
		return 20
	}
}

// keywordBoost scans the lowercased description for weighted severity terms.
// Matching is substring-based on purpose: "guns", "fired", "knifepoint" all
// count. Capped at maxKeywordBoost.
func keywordBoost(description string) int {
	t := strings.ToLower(description)

	score := 0
	for _, w := range highSeverityTerms {
		if strings.Contains(t, w) {
			score += highSeverityWeight
		}
	}
	for _, w := range medSeverityTerms {
		if strings.Contains(t, w) {
			score += medSeverityWeight
		}
	}

	if score > maxKeywordBoost {
		return maxKeywordBoost
	}
	return score
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// summarize renders the operator-facing one-liner, truncating long
// descriptions with an ellipsis marker.
func summarize(category, description string) string {
	short := description
	if runes := []rune(short); len(runes) > summaryMaxLen {
		short = string(runes[:summaryMaxLen]) + "…"
	}
	return category + ": " + short
}

// fallbackClassification is the deterministic path: category from the hint
// (or "Other"), urgency from the category base plus keyword boost. Identical
// input always yields identical output. warning records why the external path
// was not used, empty when it was never configured.
func fallbackClassification(description, hint, warning string) *Classification {
	category := hint
	if category == "" {
		category = "Other"
	}

	urgency := clampScore(baseScore(category) + keywordBoost(description))

	return &Classification{
		Category:     category,
		UrgencyScore: urgency,
		Summary:      summarize(category, description),
		Model:        FallbackModel,
		Warning:      warning,
	}
}

// blendClassification combines an external prediction with the keyword
// heuristic: the model's label picks the base, and its confidence adds up to
// confidenceWeight points on top of the keyword boost.
func blendClassification(description string, pred *Prediction, model string) *Classification {
	urgency := clampScore(
		baseScore(pred.Label) + keywordBoost(description) + int(math.Round(pred.Confidence*confidenceWeight)),
	)

	return &Classification{
		Category:     pred.Label,
		UrgencyScore: urgency,
		Summary:      summarize(pred.Label, description),
		Model:        model,
		Confidence:   pred.Confidence,
	}
}
