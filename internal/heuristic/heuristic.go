// Package heuristic implements the complexity signal: a lightweight stand-in
// for a trained classifier that derives a confidence from surface features of
// the text (length bucket, urgency vocabulary, recent-history density). Its
// readiness contract mirrors a real model load so callers handle the
// not-ready path the same way either variant behaves.
package heuristic

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/semfire-project/semfire/internal/core"
)

const (
	StatusSuccess  = "analysis_success"
	StatusNotReady = "model_not_ready"

	ClassificationLow          = "low_complexity_ml"
	ClassificationMedium       = "medium_complexity_ml"
	ClassificationHigh         = "high_complexity_ml"
	ClassificationManipulative = "potentially_manipulative_ml"
	ClassificationUnavailable  = "ml_model_unavailable"

	FeatureShortText  = "text_length_lte_10_chars"
	FeatureMediumText = "text_length_gt_10_chars_lte_50"
	FeatureLongText   = "text_length_gt_50_chars"
	FeatureUrgency    = "ml_detected_urgency_keyword"
	FeatureHistory    = "has_conversation_history"

	// urgencyMultiplier and historyBoost are applied in that order; the
	// classification upgrade keys off the post-boost score.
	urgencyMultiplier = 1.20
	historyBoost      = 0.10
	upgradeThreshold  = 0.60
	historyMinTurns   = 3
)

// urgencyKeywords are pressure-vocabulary cues. Matched case-insensitively as
// substrings, same simplification as the lexical signal.
var urgencyKeywords = []string{
	"urgent", "critical", "immediately", "asap", "emergency", "act now",
}

// Signal is the heuristic complexity signal producer.
type Signal struct {
	ready  bool
	logger zerolog.Logger
}

// NewSignal creates a ready heuristic signal.
func NewSignal(logger zerolog.Logger) *Signal {
	return &Signal{
		ready:  true,
		logger: logger.With().Str("signal", "heuristic_complexity").Logger(),
	}
}

// NewUnavailableSignal creates a signal with no backing scorer. Every call
// returns the unavailable classification with a zero score; the failure is
// returned, never raised, so an aggregator can proceed with partial signals.
func NewUnavailableSignal(logger zerolog.Logger) *Signal {
	return &Signal{
		ready:  false,
		logger: logger.With().Str("signal", "heuristic_complexity").Logger(),
	}
}

// Ready reports whether the signal has a backing scorer.
func (s *Signal) Ready() bool { return s.ready }

// Analyze scores the message. Every contributing condition appears in the
// returned feature list (sorted, de-duplicated) so callers can assert exact
// feature sets.
func (s *Signal) Analyze(message string, history []string) *core.SignalResult {
	if !s.ready {
		return &core.SignalResult{
			Confidence:     0,
			Classification: ClassificationUnavailable,
			Features:       []string{},
			Indicators:     []string{},
			Explanation:    "ML model is not loaded or failed to initialize.",
			Status:         StatusNotReady,
		}
	}

	features := make(map[string]bool)
	var fragments []string

	var score float64
	var classification string
	// Bucket on characters, not bytes, so multibyte text is not inflated.
	switch n := utf8.RuneCountInString(message); {
	case n <= 10:
		score = 0.25
		classification = ClassificationLow
		features[FeatureShortText] = true
		fragments = append(fragments, "Input text is very short.")
	case n <= 50:
		score = 0.50
		classification = ClassificationMedium
		features[FeatureMediumText] = true
		fragments = append(fragments, "Input text is of medium length.")
	default:
		score = 0.75
		classification = ClassificationHigh
		features[FeatureLongText] = true
		fragments = append(fragments, "Input text is long.")
	}

	urgency := false
	lower := strings.ToLower(message)
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			urgency = true
			break
		}
	}
	if urgency {
		score = capScore(score * urgencyMultiplier)
	}

	if len(history) >= historyMinTurns {
		score = capScore(score + historyBoost)
		features[FeatureHistory] = true
		fragments = append(fragments, "Conversation history considered.")
	}

	if urgency {
		features[FeatureUrgency] = true
		fragments = append(fragments, "ML model detected urgency keywords.")
	}

	score = round2(score)

	// Upgrade requires both the urgency cue and a post-boost score strictly
	// above the threshold; a score landing exactly on 0.60 stays in its
	// length bucket.
	if urgency && score > upgradeThreshold {
		classification = ClassificationManipulative
	}

	featureList := make([]string, 0, len(features))
	for f := range features {
		featureList = append(featureList, f)
	}
	sort.Strings(featureList)

	s.logger.Debug().
		Float64("confidence", score).
		Str("classification", classification).
		Strs("features", featureList).
		Msg("heuristic analysis complete")

	return &core.SignalResult{
		Confidence:     core.ClampProbability(score),
		Classification: classification,
		Features:       featureList,
		Indicators:     featureList,
		Explanation:    strings.Join(fragments, " "),
		Status:         StatusSuccess,
	}
}

func capScore(s float64) float64 {
	if s > 1.0 {
		return 1.0
	}
	return s
}

func round2(s float64) float64 {
	return math.Round(s*100) / 100
}
