package rules

import (
	"testing"

	"github.com/rs/zerolog"
)

func newTestSignal(t *testing.T) *Signal {
	t.Helper()
	return NewSignal(zerolog.Nop(), nil)
}

func TestAnalyze_BenignMessage_ZeroScore(t *testing.T) {
	s := newTestSignal(t)
	res, err := s.Analyze("This is just a normal explanation with no deceptive intent.", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RawScore != 0 {
		t.Errorf("raw score = %d, want 0", res.RawScore)
	}
	if res.Classification != ClassificationBenign {
		t.Errorf("classification = %q, want %q", res.Classification, ClassificationBenign)
	}
	if len(res.Indicators) != 0 {
		t.Errorf("indicators = %v, want empty", res.Indicators)
	}
	if res.Indicators == nil {
		t.Error("indicators should be an empty slice, not nil")
	}
}

func TestAnalyze_SchemingAndAsymmetry_ScoresFour(t *testing.T) {
	s := newTestSignal(t)
	res, err := s.Analyze("We will hide the data and conceal evidence; they don't know about our plan.", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RawScore != 4 {
		t.Errorf("raw score = %d, want 4 (hide=1, conceal=1, knowledge asymmetry=2)", res.RawScore)
	}
	if res.Classification != ClassificationPotential {
		t.Errorf("classification = %q, want %q", res.Classification, ClassificationPotential)
	}
	if res.Probability != 0.4 {
		t.Errorf("probability = %v, want 0.4", res.Probability)
	}
}

func TestAnalyze_KnowledgeAsymmetry_DoubleWeight(t *testing.T) {
	s := newTestSignal(t)
	res, err := s.Analyze("they don't know", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RawScore != 2 {
		t.Errorf("raw score = %d, want 2", res.RawScore)
	}
}

func TestAnalyze_KnowledgeAsymmetryInHistory_SameWeight(t *testing.T) {
	s := newTestSignal(t)
	res, err := s.Analyze("nothing here", []string{"they don't know yet"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RawScore != 2 {
		t.Errorf("raw score = %d, want 2", res.RawScore)
	}
}

func TestAnalyze_CaseInsensitive(t *testing.T) {
	s := newTestSignal(t)
	res, err := s.Analyze("We must HIDE this and CONCEAL that.", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RawScore != 2 {
		t.Errorf("raw score = %d, want 2", res.RawScore)
	}
}

func TestAnalyze_IndicatorProvenance(t *testing.T) {
	s := newTestSignal(t)
	res, err := s.Analyze("let's consider our options", []string{"benign turn", "we should hide it"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantHistory := "history_turn_1_scheming: hide"
	wantCurrent := "current_message_context_steering: let's consider"
	foundHistory, foundCurrent := false, false
	for _, ind := range res.Indicators {
		if ind == wantHistory {
			foundHistory = true
		}
		if ind == wantCurrent {
			foundCurrent = true
		}
	}
	if !foundHistory {
		t.Errorf("indicators %v missing %q", res.Indicators, wantHistory)
	}
	if !foundCurrent {
		t.Errorf("indicators %v missing %q", res.Indicators, wantCurrent)
	}
}

func TestAnalyze_ThresholdBoundary(t *testing.T) {
	s := newTestSignal(t)

	// Two weight-1 matches: below the threshold.
	below, err := s.Analyze("hide and conceal", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if below.RawScore != 2 {
		t.Fatalf("raw score = %d, want 2", below.RawScore)
	}
	if below.Classification != ClassificationBenign {
		t.Errorf("score 2 classified %q, want benign", below.Classification)
	}

	// Three weight-1 matches: at the threshold.
	at, err := s.Analyze("hide, conceal and pretend", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if at.RawScore != 3 {
		t.Fatalf("raw score = %d, want 3", at.RawScore)
	}
	if at.Classification != ClassificationPotential {
		t.Errorf("score 3 classified %q, want potential", at.Classification)
	}
}

func TestAnalyze_NilHistoryEqualsEmpty(t *testing.T) {
	s := newTestSignal(t)
	msg := "hide the evidence, they don't know"

	withNil, err := s.Analyze(msg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	withEmpty, err := s.Analyze(msg, []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if withNil.RawScore != withEmpty.RawScore {
		t.Errorf("nil history score %d != empty history score %d", withNil.RawScore, withEmpty.RawScore)
	}
	if withNil.Classification != withEmpty.Classification {
		t.Errorf("nil history classification %q != empty %q", withNil.Classification, withEmpty.Classification)
	}
	if len(withNil.Indicators) != len(withEmpty.Indicators) {
		t.Errorf("indicator counts differ: %d vs %d", len(withNil.Indicators), len(withEmpty.Indicators))
	}
}

func TestAnalyze_MonotonicWithTriggerTurn(t *testing.T) {
	s := newTestSignal(t)
	msg := "hide the plan"

	without, err := s.Analyze(msg, []string{"a plain turn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	with, err := s.Analyze(msg, []string{"a plain turn", "we conceal everything"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if with.RawScore < without.RawScore {
		t.Errorf("adding a trigger turn decreased score: %d -> %d", without.RawScore, with.RawScore)
	}
}

func TestAnalyze_ProbabilityClamped(t *testing.T) {
	s := newTestSignal(t)
	// Nine scheming matches plus the double-weight asymmetry phrase put the
	// raw score past the normalization divisor.
	msg := "hide conceal pretend deceive avoid detection preserve my strategic " +
		"they think make them believe they don't know"
	res, err := s.Analyze(msg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RawScore <= 10 {
		t.Fatalf("raw score = %d, want > 10 to exercise the clamp", res.RawScore)
	}
	if res.Probability != 1.0 {
		t.Errorf("probability = %v, want clamped to 1.0", res.Probability)
	}
}

func TestAnalyze_MalformedInput(t *testing.T) {
	s := newTestSignal(t)
	_, err := s.Analyze("bad \xff\xfe bytes", nil)
	if err == nil {
		t.Fatal("expected error for invalid UTF-8 input")
	}
}

func TestNewSignal_NormalizesRuleSets(t *testing.T) {
	s := NewSignal(zerolog.Nop(), []RuleSet{
		{Category: "custom", Weight: 0, Phrases: []string{"Foo", "foo", "", "bar"}},
	})
	res, err := s.Analyze("foo bar", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Duplicate and empty phrases dropped, zero weight coerced to 1.
	if res.RawScore != 2 {
		t.Errorf("raw score = %d, want 2", res.RawScore)
	}
}
