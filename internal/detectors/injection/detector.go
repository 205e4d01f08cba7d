// Package injection detects prompt-injection and jailbreak attempts inside a
// conversation: instruction overrides, persona switches, delimiter smuggling
// and consensus-steering setups. Detection is a compiled regex pattern bank
// scanned over the current message and every history turn.
package injection

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/semfire-project/semfire/internal/core"
)

const Name = "injection"

const (
	ClassificationPotential = "potential_injection_activity"
	ClassificationBenign    = "benign"
)

// Pattern is a compiled detection pattern.
type Pattern struct {
	Name     string
	Category string
	Regex    *regexp.Regexp
	Severity core.Severity
}

// DefaultPatterns compiles the built-in pattern bank.
func DefaultPatterns() []Pattern {
	return []Pattern{
		// === Prompt Injection ===
		{Name: "ignore_instructions", Category: "prompt_injection", Severity: core.SeverityHigh,
			Regex: regexp.MustCompile(`(?i)(ignore|disregard|forget|override|bypass)\s+(all\s+)?(previous|prior|above|earlier|original|system)\s+(instructions?|prompts?|rules?|guidelines?|constraints?)`)},
		{Name: "new_instructions", Category: "prompt_injection", Severity: core.SeverityHigh,
			Regex: regexp.MustCompile(`(?i)(new|updated|revised|real|actual|true)\s+(instructions?|system\s+prompt|directives?|rules?)(\s*:|are)`)},
		{Name: "role_switch", Category: "prompt_injection", Severity: core.SeverityHigh,
			Regex: regexp.MustCompile(`(?i)(you\s+are\s+now|act\s+as|pretend\s+(to\s+be|you\s+are)|roleplay\s+as|switch\s+to|enter)\s+(a\s+)?(DAN|evil|unrestricted|unfiltered|jailbroken|developer\s+mode)`)},
		{Name: "system_prompt_extract", Category: "prompt_injection", Severity: core.SeverityCritical,
			Regex: regexp.MustCompile(`(?i)(reveal|show|display|print|output|repeat|tell\s+me|what\s+(is|are))\s+(your\s+)?(system\s+prompt|initial\s+instructions?|hidden\s+instructions?|original\s+prompt|secret\s+instructions?)`)},
		{Name: "delimiter_injection", Category: "prompt_injection", Severity: core.SeverityHigh,
			Regex: regexp.MustCompile(`(?i)(\[SYSTEM\]|\[INST\]|<<SYS>>|<\|im_start\|>|<\|im_end\|>|<\|endoftext\|>|<\|assistant\|>|<\|user\|>)`)},
		{Name: "context_manipulation", Category: "prompt_injection", Severity: core.SeverityHigh,
			Regex: regexp.MustCompile(`(?i)(the\s+above\s+(text|content|instructions?)\s+(is|are|was)\s+(just\s+)?(a\s+)?(test|example|placeholder)|end\s+of\s+(system|initial)\s+(prompt|message|instructions?))`)},

		// === Jailbreak ===
		{Name: "dan_jailbreak", Category: "jailbreak", Severity: core.SeverityCritical,
			Regex: regexp.MustCompile(`(?i)(DAN\s*(mode|\d+)|do\s+anything\s+now|developer\s+mode|god\s+mode|sudo\s+mode|admin\s+mode|unrestricted\s+mode)`)},
		{Name: "persona_jailbreak", Category: "jailbreak", Severity: core.SeverityHigh,
			Regex: regexp.MustCompile(`(?i)(you\s+have\s+no\s+(restrictions?|limitations?|filters?|rules?)|all\s+(ethical|safety|content)\s+(guidelines?|filters?|restrictions?)\s+(are|have\s+been)\s+(removed|disabled|lifted))`)},
		{Name: "hypothetical_bypass", Category: "jailbreak", Severity: core.SeverityMedium,
			Regex: regexp.MustCompile(`(?i)(hypothetically|theoretically|in\s+a\s+fictional|for\s+(educational|research|academic)\s+purposes?|imagine\s+you\s+(could|were|had\s+no)).*?(hack|exploit|attack|malware|bypass|break\s+into)`)},

		// === Consensus Steering ===
		// Injection variants that fabricate prior agreement instead of
		// overriding instructions outright.
		{Name: "false_consensus", Category: "consensus_steering", Severity: core.SeverityMedium,
			Regex: regexp.MustCompile(`(?i)(as\s+we('ve|\s+have)\s+(established|agreed)|given\s+our\s+consensus|since\s+we\s+agree\s+on|building\s+on\s+our\s+shared\s+understanding)`)},
		{Name: "premise_lock", Category: "consensus_steering", Severity: core.SeverityMedium,
			Regex: regexp.MustCompile(`(?i)(now\s+that\s+we\s+see\s+eye[-\s]to[-\s]eye|assuming\s+\w+\s+is\s+the\s+only\s+truth|let'?s\s+only\s+consider\s+perspectives\s+that\s+align)`)},
	}
}

// Detector scans conversations against the pattern bank.
type Detector struct {
	patterns []Pattern
	logger   zerolog.Logger
}

func New(logger zerolog.Logger) *Detector {
	return NewWithPatterns(DefaultPatterns(), logger)
}

func NewWithPatterns(patterns []Pattern, logger zerolog.Logger) *Detector {
	return &Detector{
		patterns: patterns,
		logger:   logger.With().Str("detector", Name).Logger(),
	}
}

func (d *Detector) Name() string { return Name }

// Analyze scans the history turns oldest first, then the current message.
// PrimaryScore is derived from the highest matched severity; a message with
// no matches is benign with score 0.
func (d *Detector) Analyze(ctx context.Context, message string, history []string) (*core.Result, error) {
	if !utf8.ValidString(message) {
		return nil, core.ErrMalformedInput
	}

	indicators := []string{}
	categories := make(map[string]bool)
	maxSeverity := core.SeverityInfo
	matched := false

	for i, turn := range history {
		for _, p := range d.patterns {
			if p.Regex.MatchString(turn) {
				indicators = append(indicators, fmt.Sprintf("history_turn_%d_%s: %s", i, p.Category, p.Name))
				categories[p.Category] = true
				if p.Severity > maxSeverity {
					maxSeverity = p.Severity
				}
				matched = true
			}
		}
	}
	for _, p := range d.patterns {
		if p.Regex.MatchString(message) {
			indicators = append(indicators, fmt.Sprintf("current_message_%s: %s", p.Category, p.Name))
			categories[p.Category] = true
			if p.Severity > maxSeverity {
				maxSeverity = p.Severity
			}
			matched = true
		}
	}

	classification := ClassificationBenign
	score := 0.0
	explanation := "No injection patterns matched."
	if matched {
		classification = ClassificationPotential
		score = severityScore(maxSeverity)
		catList := make([]string, 0, len(categories))
		for c := range categories {
			catList = append(catList, c)
		}
		sort.Strings(catList)
		explanation = fmt.Sprintf("Matched %d injection pattern(s) across categories: %v.", len(indicators), catList)
	}

	d.logger.Debug().
		Int("matches", len(indicators)).
		Float64("score", score).
		Str("classification", classification).
		Msg("injection analysis complete")

	return &core.Result{
		Detector:       Name,
		Classification: classification,
		PrimaryScore:   score,
		Score:          score,
		Probability:    score,
		Indicators:     indicators,
		Explanation:    explanation,
	}, nil
}

func severityScore(s core.Severity) float64 {
	switch s {
	case core.SeverityCritical:
		return 0.95
	case core.SeverityHigh:
		return 0.85
	case core.SeverityMedium:
		return 0.60
	case core.SeverityLow:
		return 0.30
	default:
		return 0.10
	}
}
