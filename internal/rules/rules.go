// Package rules implements the lexical rule signal: a keyword/phrase scanner
// over the current message and conversation history. Matching is a
// case-insensitive substring check with no token boundaries, favouring
// recall over precision for short trigger phrases.
package rules

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/semfire-project/semfire/internal/core"
)

const (
	// ScoreThreshold is the raw score at which the lexical signal alone
	// classifies the conversation as potential activity. Distinct from the
	// aggregator's combined-score threshold.
	ScoreThreshold = 3

	// NormalizationDivisor converts the raw score to a probability.
	NormalizationDivisor = 10.0

	ClassificationPotential = "potential_echo_chamber_activity"
	ClassificationBenign    = "benign"

	CategoryScheming           = "scheming"
	CategoryIndirectReference  = "indirect_reference"
	CategoryContextSteering    = "context_steering"
	CategoryKnowledgeAsymmetry = "knowledge_asymmetry"
)

// RuleSet is one named category of trigger phrases. Weight is the score
// contribution per matched phrase.
type RuleSet struct {
	Category string
	Phrases  []string
	Weight   int
}

// DefaultRuleSets returns the stock echo-chamber rule categories. The
// knowledge-asymmetry phrase is a strong deception cue and carries double
// weight.
func DefaultRuleSets() []RuleSet {
	return []RuleSet{
		{
			Category: CategoryScheming,
			Weight:   1,
			Phrases: []string{
				"hide", "conceal", "pretend", "deceive", "avoid detection",
				"preserve my", "strategic", "they think", "make them believe",
			},
		},
		{
			Category: CategoryIndirectReference,
			Weight:   1,
			Phrases: []string{
				"refer back", "referring to", "as you said", "your point about",
				"elaborate on", "expand on", "building on", "as mentioned before",
				"previously discussed", "in that context", "regarding your last point",
			},
		},
		{
			Category: CategoryContextSteering,
			Weight:   1,
			Phrases: []string{
				"let's consider", "what if", "imagine that", "suppose",
				"for the sake of argument", "hypothetically", "consider a scenario where",
				"let's explore the idea", "picture this",
			},
		},
		{
			Category: CategoryKnowledgeAsymmetry,
			Weight:   2,
			Phrases:  []string{"they don't know"},
		},
	}
}

// Signal is the lexical rule signal producer. Rule sets are fixed at
// construction and read-only afterwards, so a Signal is safe for concurrent
// use.
type Signal struct {
	ruleSets []RuleSet
	logger   zerolog.Logger
}

// NewSignal creates a lexical rule signal. A nil ruleSets installs the
// defaults. Phrases are lowercased and de-duplicated per category.
func NewSignal(logger zerolog.Logger, ruleSets []RuleSet) *Signal {
	if ruleSets == nil {
		ruleSets = DefaultRuleSets()
	}

	normalized := make([]RuleSet, 0, len(ruleSets))
	for _, rs := range ruleSets {
		seen := make(map[string]bool, len(rs.Phrases))
		phrases := make([]string, 0, len(rs.Phrases))
		for _, p := range rs.Phrases {
			p = strings.ToLower(p)
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			phrases = append(phrases, p)
		}
		weight := rs.Weight
		if weight <= 0 {
			weight = 1
		}
		normalized = append(normalized, RuleSet{
			Category: rs.Category,
			Phrases:  phrases,
			Weight:   weight,
		})
	}

	return &Signal{
		ruleSets: normalized,
		logger:   logger.With().Str("signal", "lexical_rules").Logger(),
	}
}

// Analyze scans the current message and every history turn against all rule
// sets. Each matched phrase contributes its category weight to the raw
// score. Indicators carry provenance: the scope (current_message or
// history_turn_<i>) plus category and phrase.
func (s *Signal) Analyze(message string, history []string) (*core.SignalResult, error) {
	if !utf8.ValidString(message) {
		return nil, core.ErrMalformedInput
	}

	var indicators []string
	score := 0

	for i, turn := range history {
		lower := strings.ToLower(turn)
		for _, rs := range s.ruleSets {
			for _, phrase := range rs.Phrases {
				if strings.Contains(lower, phrase) {
					indicators = append(indicators,
						fmt.Sprintf("history_turn_%d_%s: %s", i, rs.Category, phrase))
					score += rs.Weight
				}
			}
		}
	}

	lower := strings.ToLower(message)
	for _, rs := range s.ruleSets {
		for _, phrase := range rs.Phrases {
			if strings.Contains(lower, phrase) {
				indicators = append(indicators,
					fmt.Sprintf("current_message_%s: %s", rs.Category, phrase))
				score += rs.Weight
			}
		}
	}

	probability := core.ClampProbability(float64(score) / NormalizationDivisor)
	classification := ClassificationBenign
	if score >= ScoreThreshold {
		classification = ClassificationPotential
	}

	if indicators == nil {
		indicators = []string{}
	}

	s.logger.Debug().
		Int("raw_score", score).
		Float64("probability", probability).
		Str("classification", classification).
		Int("indicators", len(indicators)).
		Msg("lexical analysis complete")

	return &core.SignalResult{
		RawScore:       score,
		Probability:    probability,
		Classification: classification,
		Indicators:     indicators,
	}, nil
}
