package echochamber

import (
	"fmt"
	"strings"

	"github.com/semfire-project/semfire/internal/core"
)

// Aggregation knobs. CombinedThreshold operates on the weighted combined
// score and is distinct from the lexical signal's own 3-point threshold:
// the two classify different quantities.
const (
	RuleWeight          = 1.5
	MLScale             = 10.0
	MLConfidenceGate    = 0.6
	NormalizationFactor = 20.0
	CombinedThreshold   = 7.0

	ClassificationPotential = "potential_echo_chamber_activity"
	ClassificationBenign    = "benign_echo_chamber_assessment"
)

// Combine folds the lexical and heuristic signals into a single weighted
// verdict. The heuristic contributes at full scale only when it both
// classified the text as manipulative and did so with confidence above the
// gate; otherwise it contributes its raw confidence as a minor term. An
// errored or unavailable heuristic contributes nothing but is still named in
// the explanation.
func Combine(rule, ml *core.SignalResult) *core.AggregatedResult {
	var combined float64
	var indicators []string
	var fragments []string

	if rule.RawScore > 0 {
		combined += float64(rule.RawScore) * RuleWeight
		indicators = append(indicators, rule.Indicators...)
		fragments = append(fragments, fmt.Sprintf("Echo-Rules: %s (score: %d, prob: %.2f).",
			rule.Classification, rule.RawScore, rule.Probability))
	}

	switch {
	case ml.Err != "":
		fragments = append(fragments, fmt.Sprintf("ML Detector Error: %s", ml.Err))
	case strings.Contains(strings.ToLower(ml.Classification), "manipulative") && ml.Confidence > MLConfidenceGate:
		combined += ml.Confidence * MLScale
		indicators = append(indicators, fmt.Sprintf("ml_flagged_%s_conf_%.2f", ml.Classification, ml.Confidence))
		fragments = append(fragments, fmt.Sprintf("ML-based: %s (conf: %.2f). %s",
			ml.Classification, ml.Confidence, ml.Explanation))
	default:
		combined += ml.Confidence
		fragments = append(fragments, fmt.Sprintf("ML-based: %s (conf: %.2f, no strong echo signal). %s",
			ml.Classification, ml.Confidence, ml.Explanation))
	}

	var probability float64
	if combined > 0 {
		probability = core.ClampProbability(combined / NormalizationFactor)
	}

	classification := ClassificationBenign
	if combined >= CombinedThreshold {
		classification = ClassificationPotential
		fragments = append(fragments, fmt.Sprintf("Overall Echo Chamber Assessment: Potential activity (score: %.2f, prob: %.2f).",
			combined, probability))
	} else {
		fragments = append(fragments, fmt.Sprintf("Overall Echo Chamber Assessment: No significant indicators (score: %.2f, prob: %.2f).",
			combined, probability))
	}

	if len(indicators) == 0 && combined == 0 {
		fragments = append(fragments, "No specific echo chamber indicators from combined rule/ML analysis.")
	}
	if indicators == nil {
		indicators = []string{}
	}

	return &core.AggregatedResult{
		Score:          combined,
		Confidence:     probability,
		Classification: classification,
		Indicators:     indicators,
		Explanation:    strings.Join(fragments, " | "),
	}
}
