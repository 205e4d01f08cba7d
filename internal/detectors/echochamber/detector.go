// Package echochamber detects echo-chamber manipulation: conversations that
// steer context, manufacture consensus, or exploit knowledge asymmetry. It
// combines the lexical rule signal and the heuristic complexity signal into
// a weighted verdict, with optional language-model commentary attached.
package echochamber

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/semfire-project/semfire/internal/core"
	"github.com/semfire-project/semfire/internal/heuristic"
	"github.com/semfire-project/semfire/internal/llm"
	"github.com/semfire-project/semfire/internal/rules"
)

const Name = "echo_chamber"

// Detector orchestrates the echo-chamber signal producers.
type Detector struct {
	rules  *rules.Signal
	ml     *heuristic.Signal
	llm    *llm.Signal
	logger zerolog.Logger
}

// New builds a detector with the default rule sets. llmSignal must not be
// nil; construct it over a nil generator when no model capability exists.
func New(llmSignal *llm.Signal, logger zerolog.Logger) *Detector {
	l := logger.With().Str("detector", Name).Logger()
	return &Detector{
		rules:  rules.NewSignal(l, rules.DefaultRuleSets()),
		ml:     heuristic.NewSignal(l),
		llm:    llmSignal,
		logger: l,
	}
}

// NewWithSignals builds a detector from explicit signal producers.
func NewWithSignals(ruleSignal *rules.Signal, mlSignal *heuristic.Signal, llmSignal *llm.Signal, logger zerolog.Logger) *Detector {
	return &Detector{
		rules:  ruleSignal,
		ml:     mlSignal,
		llm:    llmSignal,
		logger: logger.With().Str("detector", Name).Logger(),
	}
}

func (d *Detector) Name() string { return Name }

// Analyze runs all three signals over the conversation and aggregates them.
// The only error it returns is malformed input from the lexical signal; the
// heuristic and language-model signals fold their failures into the result.
func (d *Detector) Analyze(ctx context.Context, message string, history []string) (*core.Result, error) {
	ruleResult, err := d.rules.Analyze(message, history)
	if err != nil {
		return nil, err
	}

	mlResult := d.ml.Analyze(message, history)
	agg := Combine(ruleResult, mlResult)
	llmResult := d.llm.Analyze(ctx, message, history)

	d.logger.Debug().
		Float64("combined_score", agg.Score).
		Float64("probability", agg.Confidence).
		Str("classification", agg.Classification).
		Str("llm_status", llmResult.Status).
		Msg("echo chamber analysis complete")

	return &core.Result{
		Detector:       Name,
		Classification: agg.Classification,
		PrimaryScore:   agg.Confidence,
		Score:          agg.Score,
		Probability:    agg.Confidence,
		Indicators:     agg.Indicators,
		Explanation:    agg.Explanation,
		LLMAnalysis:    llmResult.Analysis,
		LLMStatus:      llmResult.Status,
	}, nil
}
