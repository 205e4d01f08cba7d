package core

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the entire semfire configuration.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Bus       BusConfig                 `yaml:"bus"`
	Alerts    AlertConfig               `yaml:"alerts"`
	Firewall  FirewallConfig            `yaml:"firewall"`
	LLM       LLMConfig                 `yaml:"llm"`
	Detectors map[string]DetectorConfig `yaml:"detectors"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	APIKeys     []string `yaml:"api_keys"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// BusConfig holds NATS event bus settings.
type BusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Embedded bool   `yaml:"embedded"`
	DataDir  string `yaml:"data_dir"`
	Port     int    `yaml:"port"`
}

// AlertConfig holds alert pipeline settings.
type AlertConfig struct {
	MaxStore      int      `yaml:"max_store"`
	WebhookURLs   []string `yaml:"webhook_urls"`
	EnableConsole bool     `yaml:"enable_console"`
	DedupWindowMS int      `yaml:"dedup_window_ms"`
}

// FirewallConfig holds verdict policy knobs. The two thresholds are distinct
// on purpose: Threshold gates the boolean verdict over per-detector primary
// scores; the detectors carry their own internal classification thresholds.
type FirewallConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// LLMConfig holds the generative-capability settings for the language-model
// signal.
type LLMConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Model           string   `yaml:"model"`
	APIBaseURL      string   `yaml:"api_base_url"`
	APIKeys         []string `yaml:"api_keys"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	// Spotlight names the content-hardening transform applied to
	// conversation content before it reaches the model. Empty disables it.
	Spotlight string `yaml:"spotlight"`
}

// DetectorConfig holds per-detector configuration.
type DetectorConfig struct {
	Enabled  bool                   `yaml:"enabled"`
	Settings map[string]interface{} `yaml:"settings"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sane defaults — zero-config works out
// of the box (the language-model signal simply reports itself unavailable
// when no API key is present).
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8741,
		},
		Bus: BusConfig{
			Enabled:  false,
			URL:      "nats://127.0.0.1:4222",
			Embedded: true,
			DataDir:  "./data/nats",
			Port:     4222,
		},
		Alerts: AlertConfig{
			MaxStore:      10000,
			EnableConsole: true,
			DedupWindowMS: 30000,
		},
		Firewall: FirewallConfig{
			Threshold: 0.75,
		},
		LLM: LLMConfig{
			Enabled:         true,
			Model:           "gemini-flash-lite-latest",
			APIBaseURL:      "https://generativelanguage.googleapis.com/v1beta/models",
			MaxOutputTokens: 150,
			TimeoutSeconds:  30,
		},
		Detectors: map[string]DetectorConfig{
			"echo_chamber": {Enabled: true, Settings: map[string]interface{}{}},
			"injection":    {Enabled: true, Settings: map[string]interface{}{}},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		cfg.loadEnv()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.loadEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.loadEnv()
	return cfg, nil
}

// loadEnv fills secrets from the environment when the config file left them
// unset.
func (c *Config) loadEnv() {
	if len(c.Server.APIKeys) == 0 {
		if envKey := os.Getenv("SEMFIRE_API_KEY"); envKey != "" {
			c.Server.APIKeys = []string{envKey}
		}
	}
	if len(c.LLM.APIKeys) == 0 {
		if envKey := os.Getenv("SEMFIRE_GEMINI_API_KEY"); envKey != "" {
			c.LLM.APIKeys = []string{envKey}
		}
	}
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// IsDetectorEnabled checks if a detector is enabled in the configuration.
// Unknown detectors are enabled by default.
func (c *Config) IsDetectorEnabled(name string) bool {
	d, ok := c.Detectors[name]
	if !ok {
		return true
	}
	return d.Enabled
}

// GetDetectorSettings returns the settings map for a detector.
func (c *Config) GetDetectorSettings(name string) map[string]interface{} {
	d, ok := c.Detectors[name]
	if !ok || d.Settings == nil {
		return map[string]interface{}{}
	}
	return d.Settings
}

// StringSliceSetting extracts a []string from a detector settings map.
// YAML unmarshals sequences as []interface{}, so both shapes are accepted.
func StringSliceSetting(settings map[string]interface{}, key string) []string {
	val, ok := settings[key]
	if !ok {
		return nil
	}
	switch v := val.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// LogLevel returns the parsed log level string.
func (c *Config) LogLevel() string {
	return strings.ToLower(c.Logging.Level)
}

// AuthEnabled returns true if API key authentication is configured.
func (c *Config) AuthEnabled() bool {
	return len(c.Server.APIKeys) > 0
}

// ValidateAPIKey checks if the provided key matches any configured API key.
// Uses constant-time comparison to prevent timing attacks.
func (c *Config) ValidateAPIKey(key string) bool {
	for _, valid := range c.Server.APIKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}
