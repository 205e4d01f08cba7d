package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Severity represents the severity level of a verdict event or alert.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "INFO":
		*s = SeverityInfo
	case "LOW":
		*s = SeverityLow
	case "MEDIUM":
		*s = SeverityMedium
	case "HIGH":
		*s = SeverityHigh
	case "CRITICAL":
		*s = SeverityCritical
	default:
		*s = SeverityInfo
	}
	return nil
}

// SeverityForConfidence maps an aggregated confidence to an alert severity.
// Anything below the default detection threshold stays informational.
func SeverityForConfidence(confidence float64) Severity {
	switch {
	case confidence >= 0.9:
		return SeverityCritical
	case confidence >= 0.75:
		return SeverityHigh
	case confidence >= 0.5:
		return SeverityMedium
	case confidence >= 0.25:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// AnalysisEvent is the standard verdict event published to the event bus
// after a conversation has been analyzed. It carries the verdict, not the
// conversation text, so subscribers do not end up persisting conversations.
type AnalysisEvent struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	Source       string                 `json:"source,omitempty"`
	Detector     string                 `json:"detector"`
	Type         string                 `json:"type"`
	Severity     Severity               `json:"severity"`
	Summary      string                 `json:"summary"`
	Details      map[string]interface{} `json:"details,omitempty"`
	HistoryLen   int                    `json:"history_len"`
	Manipulative bool                   `json:"manipulative"`
}

// NewAnalysisEvent creates an AnalysisEvent with a generated ID and current
// UTC timestamp.
func NewAnalysisEvent(detector, eventType string, severity Severity, summary string) *AnalysisEvent {
	return &AnalysisEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Detector:  detector,
		Type:      eventType,
		Severity:  severity,
		Summary:   summary,
		Details:   make(map[string]interface{}),
	}
}

// Marshal serializes the event to JSON.
func (e *AnalysisEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalAnalysisEvent deserializes an AnalysisEvent from JSON.
func UnmarshalAnalysisEvent(data []byte) (*AnalysisEvent, error) {
	var event AnalysisEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
