package core

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformedInput is returned when a caller supplies a message that is not
// valid text. This is the only failure class that reaches the caller as an
// error; everything else degrades to a structured status inside a Result.
var ErrMalformedInput = errors.New("malformed input: message is not valid UTF-8 text")

// SignalResult is the output of one signal producer (lexical rule matcher,
// heuristic scorer). It is created fresh per analysis call and never mutated
// after return.
type SignalResult struct {
	RawScore       int      `json:"raw_score"`
	Probability    float64  `json:"probability"`
	Confidence     float64  `json:"confidence"`
	Classification string   `json:"classification"`
	Indicators     []string `json:"indicators"`
	Features       []string `json:"features,omitempty"`
	Explanation    string   `json:"explanation,omitempty"`
	Status         string   `json:"status,omitempty"`
	Err            string   `json:"error,omitempty"`
}

// LLMResult is the output of the language-model signal. The analysis text is
// advisory context only and never feeds the numeric score.
type LLMResult struct {
	Analysis string `json:"llm_analysis"`
	Status   string `json:"llm_status"`
}

// AggregatedResult combines one or more SignalResults into a final
// classification, confidence and explanation. Ephemeral, one per call.
type AggregatedResult struct {
	Score          float64  `json:"score"`
	Confidence     float64  `json:"confidence"`
	Classification string   `json:"classification"`
	Indicators     []string `json:"detected_indicators"`
	Explanation    string   `json:"explanation"`
}

// Result is the uniform record every detector returns. PrimaryScore is
// populated consistently (a probability or confidence in [0,1]) so the
// firewall can threshold without switching on detector type.
type Result struct {
	Detector       string   `json:"detector"`
	Classification string   `json:"classification"`
	PrimaryScore   float64  `json:"primary_score"`
	Score          float64  `json:"score"`
	Probability    float64  `json:"probability"`
	Indicators     []string `json:"detected_indicators"`
	Explanation    string   `json:"explanation,omitempty"`
	LLMAnalysis    string   `json:"llm_analysis,omitempty"`
	LLMStatus      string   `json:"llm_status,omitempty"`
}

// Concerning reports whether the classification indicates manipulative or
// otherwise flagged activity. Benign and unavailable classifications are
// never concerning regardless of score.
func (r *Result) Concerning() bool {
	c := strings.ToLower(r.Classification)
	if strings.Contains(c, "benign") || strings.Contains(c, "unavailable") {
		return false
	}
	return strings.Contains(c, "manipulative") ||
		strings.Contains(c, "concern") ||
		strings.Contains(c, "potential")
}

// ReportEntry is one detector's slot in a firewall report: either a Result or
// an error message, never both.
type ReportEntry struct {
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Report maps detector name to its outcome for one analysis call.
type Report map[string]ReportEntry

// Marshal serializes the report to JSON.
func (r Report) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Flagged returns the names of detectors whose successful result is
// concerning with PrimaryScore at or above threshold, in no particular order.
func (r Report) Flagged(threshold float64) []string {
	var names []string
	for name, entry := range r {
		if entry.Error != "" || entry.Result == nil {
			continue
		}
		if entry.Result.Concerning() && entry.Result.PrimaryScore >= threshold {
			names = append(names, name)
		}
	}
	return names
}

// ClampProbability bounds a probability or confidence to [0,1].
func ClampProbability(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
