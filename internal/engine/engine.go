// Package engine wires the semfire components together: config, logging,
// the detector roster behind the firewall, the alert pipeline and the
// optional event bus. The HTTP adapter and CLI both drive an Engine.
package engine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/semfire-project/semfire/internal/core"
	"github.com/semfire-project/semfire/internal/detectors/echochamber"
	"github.com/semfire-project/semfire/internal/detectors/injection"
	"github.com/semfire-project/semfire/internal/firewall"
	"github.com/semfire-project/semfire/internal/heuristic"
	"github.com/semfire-project/semfire/internal/llm"
	"github.com/semfire-project/semfire/internal/rules"
	"github.com/semfire-project/semfire/internal/spotlight"
)

// Engine is the composed semfire runtime.
type Engine struct {
	Config   *core.Config
	Firewall *firewall.Firewall
	Pipeline *core.AlertPipeline
	Bus      *core.EventBus
	Logger   zerolog.Logger

	llmSignal  *llm.Signal
	gemini     *llm.GeminiGenerator
	dispatcher *webhookDispatcher
	ctx        context.Context
	cancel     context.CancelFunc
}

// New builds an engine from config. The bus is not connected until Start.
func New(cfg *core.Config) (*Engine, error) {
	logger := NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())

	pipeline := core.NewAlertPipeline(logger, cfg.Alerts.MaxStore)
	if cfg.Alerts.DedupWindowMS > 0 {
		pipeline.SetDedup(core.NewAlertDedup(time.Duration(cfg.Alerts.DedupWindowMS)*time.Millisecond, 0))
	}

	engineLogger := logger.With().Str("component", "engine").Logger()

	if cfg.Alerts.EnableConsole {
		pipeline.AddHandler(func(alert *core.Alert) {
			engineLogger.Warn().
				Str("alert_id", alert.ID).
				Str("detector", alert.Detector).
				Str("severity", alert.Severity.String()).
				Str("title", alert.Title).
				Str("description", alert.Description).
				Msg("CONVERSATION ALERT")
		})
	}
	var dispatcher *webhookDispatcher
	if len(cfg.Alerts.WebhookURLs) > 0 {
		dispatcher = newWebhookDispatcher(logger)
		for _, url := range cfg.Alerts.WebhookURLs {
			webhookURL := url
			pipeline.AddHandler(func(alert *core.Alert) {
				dispatcher.Enqueue(webhookURL, alert)
			})
		}
	}

	var gen llm.Generator
	var gemini *llm.GeminiGenerator
	if cfg.LLM.Enabled {
		if g := llm.NewGeminiGenerator(cfg.LLM, logger); g != nil {
			gen = g
			gemini = g
		} else {
			engineLogger.Warn().Msg("language model enabled but no API key configured, signal will report unavailable")
		}
	}
	llmSignal := llm.NewSignal(gen, cfg.LLM.MaxOutputTokens, logger)
	if cfg.LLM.Spotlight != "" {
		sp, err := spotlight.New(cfg.LLM.Spotlight)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("configuring spotlighting: %w", err)
		}
		llmSignal.UseSpotlight(sp)
	}

	var roster []firewall.Detector
	if cfg.IsDetectorEnabled(echochamber.Name) {
		settings := cfg.GetDetectorSettings(echochamber.Name)
		if custom := core.StringSliceSetting(settings, "custom_phrases"); len(custom) > 0 {
			ruleSets := append(rules.DefaultRuleSets(), rules.RuleSet{
				Category: "custom",
				Phrases:  custom,
				Weight:   1,
			})
			roster = append(roster, echochamber.NewWithSignals(
				rules.NewSignal(logger, ruleSets),
				heuristic.NewSignal(logger),
				llmSignal,
				logger,
			))
		} else {
			roster = append(roster, echochamber.New(llmSignal, logger))
		}
	}
	if cfg.IsDetectorEnabled(injection.Name) {
		roster = append(roster, injection.New(logger))
	}
	if len(roster) == 0 {
		cancel()
		return nil, fmt.Errorf("no detectors enabled")
	}

	fw, err := firewall.New(logger, roster...)
	if err != nil {
		cancel()
		return nil, err
	}

	return &Engine{
		Config:     cfg,
		Firewall:   fw,
		Pipeline:   pipeline,
		Logger:     engineLogger,
		llmSignal:  llmSignal,
		gemini:     gemini,
		dispatcher: dispatcher,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// NewLogger builds the root logger from config.
func NewLogger(cfg *core.Config) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.Logging.Format == "json" {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	switch cfg.LogLevel() {
	case "debug":
		logger = logger.Level(zerolog.DebugLevel)
	case "warn":
		logger = logger.Level(zerolog.WarnLevel)
	case "error":
		logger = logger.Level(zerolog.ErrorLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger
}

// Start connects the event bus when enabled and wires alert publication.
func (e *Engine) Start() error {
	e.Logger.Info().Strs("detectors", e.Firewall.Detectors()).Msg("starting semfire engine")

	if e.Config.Bus.Enabled {
		bus, err := core.NewEventBus(&e.Config.Bus, e.Logger)
		if err != nil {
			return fmt.Errorf("starting event bus: %w", err)
		}
		e.Bus = bus

		e.Pipeline.AddHandler(func(alert *core.Alert) {
			if err := e.Bus.PublishAlert(alert); err != nil {
				e.Logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert to bus")
			}
		})
	}

	e.Logger.Info().Bool("bus", e.Bus != nil).Bool("llm", e.llmSignal.Ready()).Msg("semfire engine started")
	return nil
}

// Analyze runs the firewall over the conversation, records a verdict event
// and raises alerts for flagged detectors.
func (e *Engine) Analyze(ctx context.Context, message string, history []string) (core.Report, error) {
	report, err := e.Firewall.AnalyzeConversation(ctx, message, history)
	if err != nil {
		return nil, err
	}

	flagged := report.Flagged(e.Config.Firewall.Threshold)
	e.recordVerdict(report, flagged, len(history))

	return report, nil
}

// IsManipulative reduces an analysis to the boolean verdict using the
// configured threshold.
func (e *Engine) IsManipulative(ctx context.Context, message string, history []string) (bool, error) {
	report, err := e.Analyze(ctx, message, history)
	if err != nil {
		return false, err
	}
	return len(report.Flagged(e.Config.Firewall.Threshold)) > 0, nil
}

// Threshold returns the configured verdict threshold.
func (e *Engine) Threshold() float64 {
	return e.Config.Firewall.Threshold
}

// LLMKeyStatus reports per-key health of the Gemini backend, or nil when no
// Gemini generator is configured.
func (e *Engine) LLMKeyStatus() []llm.KeyStatus {
	if e.gemini == nil {
		return nil
	}
	return e.gemini.KeyStatus()
}

// WebhookStats reports webhook dispatcher counters, or nil when no webhook
// URLs are configured.
func (e *Engine) WebhookStats() map[string]interface{} {
	if e.dispatcher == nil {
		return nil
	}
	return e.dispatcher.Stats()
}

// recordVerdict publishes an analysis event and raises one alert per flagged
// detector.
func (e *Engine) recordVerdict(report core.Report, flagged []string, historyLen int) {
	manipulative := len(flagged) > 0

	var maxScore float64
	for _, name := range flagged {
		if entry, ok := report[name]; ok && entry.Result != nil && entry.Result.PrimaryScore > maxScore {
			maxScore = entry.Result.PrimaryScore
		}
	}

	severity := core.SeverityInfo
	summary := "conversation analyzed: no detector flagged"
	if manipulative {
		severity = core.SeverityForConfidence(maxScore)
		summary = fmt.Sprintf("conversation flagged by %d detector(s)", len(flagged))
	}

	event := core.NewAnalysisEvent("firewall", "conversation_analyzed", severity, summary)
	event.HistoryLen = historyLen
	event.Manipulative = manipulative
	event.Details["flagged"] = flagged
	event.Details["detectors"] = e.Firewall.Detectors()

	if e.Bus != nil {
		if err := e.Bus.PublishEvent(event); err != nil {
			e.Logger.Error().Err(err).Msg("failed to publish verdict event")
		}
	}

	for _, name := range flagged {
		entry := report[name]
		if entry.Result == nil {
			continue
		}
		alert := core.NewAlert(event,
			fmt.Sprintf("Manipulative conversation: %s", entry.Result.Classification),
			entry.Result.Explanation)
		alert.Detector = name
		alert.Severity = core.SeverityForConfidence(entry.Result.PrimaryScore)
		alert.Indicators = entry.Result.Indicators
		e.Pipeline.Process(alert)
	}
}

// Run starts the engine and blocks until a shutdown signal arrives.
func (e *Engine) Run() error {
	if err := e.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		e.Logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-e.ctx.Done():
		e.Logger.Info().Msg("context cancelled")
	}

	return e.Shutdown()
}

// Shutdown stops the engine.
func (e *Engine) Shutdown() error {
	e.Logger.Info().Msg("shutting down semfire engine")
	e.cancel()

	if e.dispatcher != nil {
		e.dispatcher.Stop()
	}

	if e.Bus != nil {
		if err := e.Bus.Close(); err != nil {
			e.Logger.Error().Err(err).Msg("error closing event bus")
		}
	}

	e.Logger.Info().Msg("semfire engine stopped")
	return nil
}

// Context returns the engine's root context.
func (e *Engine) Context() context.Context {
	return e.ctx
}
