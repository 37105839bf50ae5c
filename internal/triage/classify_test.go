package triage

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFallbackClassification_Deterministic(t *testing.T) {
	t.Parallel()

	a := fallbackClassification("someone keeps following me from the gym", "Harassment", "")
	b := fallbackClassification("someone keeps following me from the gym", "Harassment", "")
	if *a != *b {
		t.Errorf("repeated calls differ: %+v vs %+v", a, b)
	}
	if a.Model != FallbackModel {
		t.Errorf("model = %q, want %q", a.Model, FallbackModel)
	}
}

func TestFallbackClassification_HintlessIsOther(t *testing.T) {
	t.Parallel()

	c := fallbackClassification("something odd happened", "", "")
	if c.Category != "Other" {
		t.Errorf("category = %q, want Other", c.Category)
	}
	if c.UrgencyScore != 20 {
		t.Errorf("urgency = %d, want 20 (base, no keywords)", c.UrgencyScore)
	}
}

func TestFallbackClassification_BaseScores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		category string
		want     int
	}{
		{"Medical", 65},
		{"Harassment", 55},
		{"Suspicious Activity", 50},
		{"Theft", 40},
		{"Vandalism", 30},
		{"Other", 20},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			t.Parallel()

			c := fallbackClassification("nothing keyworded here", tt.category, "")
			if c.UrgencyScore != tt.want {
				t.Errorf("urgency = %d, want %d", c.UrgencyScore, tt.want)
			}
		})
	}
}

func TestFallbackClassification_KeywordBoost(t *testing.T) {
	t.Parallel()

	// One high-severity and one medium-severity term.
	c := fallbackClassification("a person with a knife harassing students", "Other", "")
	if want := 20 + 18 + 8; c.UrgencyScore != want {
		t.Errorf("urgency = %d, want %d", c.UrgencyScore, want)
	}
}

func TestFallbackClassification_SubstringMatch(t *testing.T) {
	t.Parallel()

	// "knifepoint" matches "knife"; matching is substring-based.
	c := fallbackClassification("robbed at knifepoint", "Other", "")
	if want := 20 + 18 + 8; c.UrgencyScore != want { // knife + rob
		t.Errorf("urgency = %d, want %d", c.UrgencyScore, want)
	}
}

func TestFallbackClassification_BoostCapped(t *testing.T) {
	t.Parallel()

	// Every high-severity term at once still caps the boost at 60.
	c := fallbackClassification(strings.Join(highSeverityTerms, " "), "Other", "")
	if want := 20 + maxKeywordBoost; c.UrgencyScore != want {
		t.Errorf("urgency = %d, want %d", c.UrgencyScore, want)
	}
}

func TestFallbackClassification_ClampsAt100(t *testing.T) {
	t.Parallel()

	c := fallbackClassification(
		"fire in the kitchen, someone is unconscious and there is blood",
		"Medical", "")
	// 65 base + 3 high-severity hits overflows; score clamps.
	if c.UrgencyScore != 100 {
		t.Errorf("urgency = %d, want 100", c.UrgencyScore)
	}
}

func TestFallbackClassification_CarriesWarning(t *testing.T) {
	t.Parallel()

	c := fallbackClassification("x y z something", "Theft", "upstream returned 503")
	if c.Warning != "upstream returned 503" {
		t.Errorf("warning = %q", c.Warning)
	}
}

func TestBlendClassification(t *testing.T) {
	t.Parallel()

	c := blendClassification("my laptop is missing from the lab",
		&Prediction{Label: "Theft", Confidence: 0.9}, "zero-shot-v1")

	if c.Category != "Theft" {
		t.Errorf("category = %q, want Theft", c.Category)
	}
	// 40 base + 0 keywords + round(0.9*20) = 58.
	if c.UrgencyScore != 58 {
		t.Errorf("urgency = %d, want 58", c.UrgencyScore)
	}
	if c.Model != "zero-shot-v1" {
		t.Errorf("model = %q", c.Model)
	}
	if c.Confidence != 0.9 {
		t.Errorf("confidence = %v", c.Confidence)
	}
}

func TestSummarize_Truncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("incident detail ", 20) // well over the cap
	s := summarize("Theft", long)

	if !strings.HasPrefix(s, "Theft: ") {
		t.Errorf("summary = %q, want category prefix", s)
	}
	if !strings.HasSuffix(s, "…") {
		t.Errorf("summary = %q, want ellipsis suffix", s)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(s, "Theft: "), "…")
	if n := utf8.RuneCountInString(body); n != summaryMaxLen {
		t.Errorf("truncated body = %d runes, want %d", n, summaryMaxLen)
	}
}

func TestSummarize_ShortUnchanged(t *testing.T) {
	t.Parallel()

	if got, want := summarize("Other", "short text"), "Other: short text"; got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
}

func TestClampScore(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want int }{
		{-5, 0}, {0, 0}, {50, 50}, {100, 100}, {140, 100},
	}
	for _, tt := range tests {
		if got := clampScore(tt.in); got != tt.want {
			t.Errorf("clampScore(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
