package core

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AlertStatus tracks the triage lifecycle of an alert.
type AlertStatus int

const (
	AlertStatusOpen AlertStatus = iota
	AlertStatusAcknowledged
	AlertStatusResolved
	AlertStatusFalsePositive
)

func (s AlertStatus) String() string {
	switch s {
	case AlertStatusOpen:
		return "OPEN"
	case AlertStatusAcknowledged:
		return "ACKNOWLEDGED"
	case AlertStatusResolved:
		return "RESOLVED"
	case AlertStatusFalsePositive:
		return "FALSE_POSITIVE"
	default:
		return "UNKNOWN"
	}
}

func (s AlertStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *AlertStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, _ := ParseAlertStatus(str)
	*s = parsed
	return nil
}

// ParseAlertStatus converts a status string (case-insensitive, "ack" accepted)
// to an AlertStatus.
func ParseAlertStatus(s string) (AlertStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPEN":
		return AlertStatusOpen, true
	case "ACKNOWLEDGED", "ACK":
		return AlertStatusAcknowledged, true
	case "RESOLVED":
		return AlertStatusResolved, true
	case "FALSE_POSITIVE":
		return AlertStatusFalsePositive, true
	default:
		return AlertStatusOpen, false
	}
}

// Alert is a flagged-conversation record produced when a detector verdict
// crosses the firewall threshold.
type Alert struct {
	ID          string                 `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	Detector    string                 `json:"detector"`
	Type        string                 `json:"type"`
	Severity    Severity               `json:"severity"`
	Status      AlertStatus            `json:"status"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	EventIDs    []string               `json:"event_ids,omitempty"`
	Indicators  []string               `json:"detected_indicators,omitempty"`
	Mitigations []string               `json:"mitigations,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewAlert creates an Alert from the verdict event that triggered it.
func NewAlert(event *AnalysisEvent, title, description string) *Alert {
	return &Alert{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		Detector:    event.Detector,
		Type:        event.Type,
		Severity:    event.Severity,
		Status:      AlertStatusOpen,
		Title:       title,
		Description: description,
		EventIDs:    []string{event.ID},
		Metadata:    make(map[string]interface{}),
	}
}

// Marshal serializes the alert to JSON.
func (a *Alert) Marshal() ([]byte, error) {
	return json.Marshal(a)
}

// AlertHandler is invoked for every alert accepted by the pipeline.
type AlertHandler func(alert *Alert)

// AlertPipeline receives alerts, stores a bounded window of them in memory
// and fans them out to registered handlers (console log, webhooks, bus).
// Nothing is persisted to disk.
type AlertPipeline struct {
	mu       sync.RWMutex
	alerts   []*Alert
	handlers []AlertHandler
	maxStore int
	dedup    *AlertDedup
	logger   zerolog.Logger
}

// NewAlertPipeline creates a pipeline storing at most maxStore alerts.
func NewAlertPipeline(logger zerolog.Logger, maxStore int) *AlertPipeline {
	if maxStore <= 0 {
		maxStore = 10000
	}
	return &AlertPipeline{
		alerts:   make([]*Alert, 0, 256),
		maxStore: maxStore,
		logger:   logger.With().Str("component", "alert_pipeline").Logger(),
	}
}

// SetDedup installs a deduplication cache. Duplicate alerts within the dedup
// window are dropped before storage and handlers.
func (p *AlertPipeline) SetDedup(d *AlertDedup) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dedup = d
}

// AddHandler registers a handler called synchronously for every alert.
func (p *AlertPipeline) AddHandler(h AlertHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, h)
}

// Process stores the alert and invokes all handlers.
func (p *AlertPipeline) Process(alert *Alert) {
	p.mu.Lock()
	if p.dedup != nil && p.dedup.IsDuplicate(alert) {
		p.mu.Unlock()
		p.logger.Debug().Str("alert_id", alert.ID).Msg("duplicate alert dropped")
		return
	}

	p.alerts = append(p.alerts, alert)
	if len(p.alerts) > p.maxStore {
		// Drop the oldest 10% in one go to avoid per-alert shifting.
		drop := p.maxStore / 10
		if drop < 1 {
			drop = 1
		}
		p.alerts = p.alerts[drop:]
	}
	handlers := make([]AlertHandler, len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.Unlock()

	for _, h := range handlers {
		h(alert)
	}
}

// GetAlerts returns up to limit alerts at or above minSeverity, most recent
// first.
func (p *AlertPipeline) GetAlerts(minSeverity Severity, limit int) []*Alert {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*Alert, 0, limit)
	for i := len(p.alerts) - 1; i >= 0 && len(result) < limit; i-- {
		if p.alerts[i].Severity >= minSeverity {
			result = append(result, p.alerts[i])
		}
	}
	return result
}

// GetAlertByID returns the alert with the given ID, or nil.
func (p *AlertPipeline) GetAlertByID(id string) *Alert {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, a := range p.alerts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// UpdateAlertStatus sets the status of the alert with the given ID.
func (p *AlertPipeline) UpdateAlertStatus(id string, status AlertStatus) (*Alert, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.alerts {
		if a.ID == id {
			a.Status = status
			return a, true
		}
	}
	return nil, false
}

// DeleteAlert removes the alert with the given ID.
func (p *AlertPipeline) DeleteAlert(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, a := range p.alerts {
		if a.ID == id {
			p.alerts = append(p.alerts[:i], p.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// ClearAlerts removes all stored alerts and returns how many were dropped.
func (p *AlertPipeline) ClearAlerts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.alerts)
	p.alerts = p.alerts[:0]
	return n
}

// Count returns the number of stored alerts.
func (p *AlertPipeline) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.alerts)
}
