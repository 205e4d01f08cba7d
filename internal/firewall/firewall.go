// Package firewall runs a roster of conversation detectors over a message
// and reduces their results to one report or one boolean verdict. The roster
// is fixed at construction; detectors run concurrently and are isolated from
// each other's failures.
package firewall

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/semfire-project/semfire/internal/core"
)

// Detector is one named analysis strategy. Implementations must be safe for
// concurrent use.
type Detector interface {
	Name() string
	Analyze(ctx context.Context, message string, history []string) (*core.Result, error)
}

// Firewall fans a conversation out to its detectors.
type Firewall struct {
	detectors []Detector
	logger    zerolog.Logger
}

// New builds a firewall over an ordered detector roster. Duplicate names are
// rejected since the report is keyed by name.
func New(logger zerolog.Logger, detectors ...Detector) (*Firewall, error) {
	seen := make(map[string]bool, len(detectors))
	for _, d := range detectors {
		if seen[d.Name()] {
			return nil, fmt.Errorf("duplicate detector name %q", d.Name())
		}
		seen[d.Name()] = true
	}
	return &Firewall{
		detectors: detectors,
		logger:    logger.With().Str("component", "firewall").Logger(),
	}, nil
}

// Detectors returns the roster names in registration order.
func (f *Firewall) Detectors() []string {
	names := make([]string, len(f.detectors))
	for i, d := range f.detectors {
		names[i] = d.Name()
	}
	return names
}

// AnalyzeConversation runs every detector concurrently and returns the report
// keyed by detector name. A detector that errors or panics gets an error
// entry; the others still report. The only error returned to the caller is
// malformed input, checked once before any detector runs. A nil history is
// treated as empty.
func (f *Firewall) AnalyzeConversation(ctx context.Context, message string, history []string) (core.Report, error) {
	if !utf8.ValidString(message) {
		return nil, core.ErrMalformedInput
	}
	if history == nil {
		history = []string{}
	}

	report := make(core.Report, len(f.detectors))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, d := range f.detectors {
		wg.Add(1)
		go func(d Detector) {
			defer wg.Done()
			entry := f.safeAnalyze(ctx, d, message, history)
			mu.Lock()
			report[d.Name()] = entry
			mu.Unlock()
		}(d)
	}
	wg.Wait()

	return report, nil
}

// safeAnalyze calls the detector inside a recover() so a panicking detector
// cannot take down the firewall. Panics are logged and reported as errors.
func (f *Firewall) safeAnalyze(ctx context.Context, d Detector, message string, history []string) (entry core.ReportEntry) {
	defer func() {
		if rec := recover(); rec != nil {
			f.logger.Error().
				Str("detector", d.Name()).
				Interface("panic", rec).
				Msg("DETECTOR PANIC — recovered, detector did not crash firewall")
			entry = core.ReportEntry{Error: fmt.Sprintf("detector panicked: %v", rec)}
		}
	}()

	result, err := d.Analyze(ctx, message, history)
	if err != nil {
		f.logger.Warn().Err(err).Str("detector", d.Name()).Msg("detector failed")
		return core.ReportEntry{Error: err.Error()}
	}
	return core.ReportEntry{Result: result}
}

// IsManipulative reduces a full analysis to a boolean: true iff any
// successful detector produced a concerning classification with a primary
// score at or above threshold.
func (f *Firewall) IsManipulative(ctx context.Context, message string, history []string, threshold float64) (bool, error) {
	report, err := f.AnalyzeConversation(ctx, message, history)
	if err != nil {
		return false, err
	}
	return len(report.Flagged(threshold)) > 0, nil
}
