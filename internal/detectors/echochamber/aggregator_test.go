package echochamber

import (
	"math"
	"strings"
	"testing"

	"github.com/semfire-project/semfire/internal/core"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCombine_BothBenign_Zeroish(t *testing.T) {
	rule := &core.SignalResult{RawScore: 0, Classification: "benign", Indicators: []string{}}
	ml := &core.SignalResult{Confidence: 0.25, Classification: "low_complexity_ml", Explanation: "Input text is very short."}

	agg := Combine(rule, ml)
	if !approxEqual(agg.Score, 0.25) {
		t.Errorf("score = %v, want 0.25 (ml minor term only)", agg.Score)
	}
	if agg.Classification != ClassificationBenign {
		t.Errorf("classification = %q, want %q", agg.Classification, ClassificationBenign)
	}
	if len(agg.Indicators) != 0 {
		t.Errorf("indicators = %v, want empty", agg.Indicators)
	}
	if agg.Indicators == nil {
		t.Error("indicators should be an empty slice, not nil")
	}
}

func TestCombine_RuleWeight(t *testing.T) {
	rule := &core.SignalResult{
		RawScore:       4,
		Probability:    0.4,
		Classification: "potential_echo_chamber_activity",
		Indicators:     []string{"current_message_scheming: hide"},
	}
	ml := &core.SignalResult{Confidence: 0, Classification: "low_complexity_ml"}

	agg := Combine(rule, ml)
	if !approxEqual(agg.Score, 6.0) {
		t.Errorf("score = %v, want 6.0 (4 * 1.5)", agg.Score)
	}
	if agg.Classification != ClassificationBenign {
		t.Errorf("score 6.0 classified %q, want benign (threshold is 7.0)", agg.Classification)
	}
	if len(agg.Indicators) != 1 || agg.Indicators[0] != "current_message_scheming: hide" {
		t.Errorf("indicators = %v, want rule indicators carried through", agg.Indicators)
	}
}

func TestCombine_ManipulativeMLAboveGate_FullScale(t *testing.T) {
	rule := &core.SignalResult{RawScore: 0}
	ml := &core.SignalResult{
		Confidence:     0.70,
		Classification: "potentially_manipulative_ml",
		Explanation:    "Input text is of medium length. ML model detected urgency keywords.",
	}

	agg := Combine(rule, ml)
	if !approxEqual(agg.Score, 7.0) {
		t.Errorf("score = %v, want 7.0 (0.70 * 10)", agg.Score)
	}
	if agg.Classification != ClassificationPotential {
		t.Errorf("score 7.0 classified %q, want potential (threshold inclusive)", agg.Classification)
	}
	if !approxEqual(agg.Confidence, 0.35) {
		t.Errorf("confidence = %v, want 0.35 (7.0 / 20)", agg.Confidence)
	}

	wantInd := "ml_flagged_potentially_manipulative_ml_conf_0.70"
	found := false
	for _, ind := range agg.Indicators {
		if ind == wantInd {
			found = true
		}
	}
	if !found {
		t.Errorf("indicators = %v, missing %q", agg.Indicators, wantInd)
	}
}

func TestCombine_ManipulativeMLAtGate_MinorTerm(t *testing.T) {
	rule := &core.SignalResult{RawScore: 0}
	ml := &core.SignalResult{Confidence: 0.60, Classification: "potentially_manipulative_ml"}

	// Exactly at the gate: the full-scale contribution requires strictly
	// above 0.6.
	agg := Combine(rule, ml)
	if !approxEqual(agg.Score, 0.60) {
		t.Errorf("score = %v, want 0.60 (minor term, not scaled)", agg.Score)
	}
	for _, ind := range agg.Indicators {
		if strings.HasPrefix(ind, "ml_flagged_") {
			t.Errorf("unexpected ml flag indicator %q at the confidence gate", ind)
		}
	}
}

func TestCombine_NonManipulativeHighConfidence_MinorTerm(t *testing.T) {
	rule := &core.SignalResult{RawScore: 0}
	ml := &core.SignalResult{Confidence: 0.85, Classification: "high_complexity_ml"}

	agg := Combine(rule, ml)
	if !approxEqual(agg.Score, 0.85) {
		t.Errorf("score = %v, want 0.85 (non-manipulative contributes raw confidence)", agg.Score)
	}
}

func TestCombine_RulePlusML_CrossesThreshold(t *testing.T) {
	rule := &core.SignalResult{
		RawScore:    1,
		Probability: 0.1,
		Indicators:  []string{"current_message_scheming: hide"},
	}
	ml := &core.SignalResult{Confidence: 0.70, Classification: "potentially_manipulative_ml"}

	// 1*1.5 + 0.70*10 = 8.5.
	agg := Combine(rule, ml)
	if !approxEqual(agg.Score, 8.5) {
		t.Errorf("score = %v, want 8.5", agg.Score)
	}
	if agg.Classification != ClassificationPotential {
		t.Errorf("classification = %q, want potential", agg.Classification)
	}
	if len(agg.Indicators) != 2 {
		t.Errorf("indicators = %v, want rule indicator plus ml flag", agg.Indicators)
	}
}

func TestCombine_MLError_NamedNotScored(t *testing.T) {
	rule := &core.SignalResult{RawScore: 2, Probability: 0.2, Indicators: []string{"current_message_scheming: hide"}}
	ml := &core.SignalResult{Err: "model backend offline"}

	agg := Combine(rule, ml)
	if !approxEqual(agg.Score, 3.0) {
		t.Errorf("score = %v, want 3.0 (rule only, errored ml contributes nothing)", agg.Score)
	}
	if !strings.Contains(agg.Explanation, "ML Detector Error: model backend offline") {
		t.Errorf("explanation %q does not name the ml failure", agg.Explanation)
	}
}

func TestCombine_ExplanationPipeJoined(t *testing.T) {
	rule := &core.SignalResult{RawScore: 3, Probability: 0.3, Classification: "potential_echo_chamber_activity"}
	ml := &core.SignalResult{Confidence: 0.50, Classification: "medium_complexity_ml", Explanation: "Input text is of medium length."}

	agg := Combine(rule, ml)
	parts := strings.Split(agg.Explanation, " | ")
	if len(parts) != 3 {
		t.Fatalf("explanation has %d fragments, want 3: %q", len(parts), agg.Explanation)
	}
	if !strings.HasPrefix(parts[0], "Echo-Rules: ") {
		t.Errorf("first fragment = %q, want Echo-Rules prefix", parts[0])
	}
	if !strings.HasPrefix(parts[1], "ML-based: ") {
		t.Errorf("second fragment = %q, want ML-based prefix", parts[1])
	}
	if !strings.HasPrefix(parts[2], "Overall Echo Chamber Assessment: ") {
		t.Errorf("third fragment = %q, want assessment prefix", parts[2])
	}
}

func TestCombine_NoSignals_PlaceholderExplanation(t *testing.T) {
	rule := &core.SignalResult{RawScore: 0}
	ml := &core.SignalResult{Confidence: 0, Classification: "ml_model_unavailable"}

	agg := Combine(rule, ml)
	if agg.Score != 0 {
		t.Errorf("score = %v, want 0", agg.Score)
	}
	if agg.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", agg.Confidence)
	}
	if !strings.Contains(agg.Explanation, "No specific echo chamber indicators") {
		t.Errorf("explanation %q missing the no-indicator note", agg.Explanation)
	}
}

func TestCombine_ConfidenceClamped(t *testing.T) {
	rule := &core.SignalResult{RawScore: 20, Probability: 1.0}
	ml := &core.SignalResult{Confidence: 1.0, Classification: "potentially_manipulative_ml"}

	// 20*1.5 + 1.0*10 = 40; normalized 40/20 = 2.0, clamped.
	agg := Combine(rule, ml)
	if agg.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", agg.Confidence)
	}
}
