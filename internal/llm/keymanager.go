package llm

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Cooldown durations by failure class.
const (
	rateLimitCooldown      = 60 * time.Second // 429 rate limit
	quotaExhaustedCooldown = 10 * time.Minute // quota exhausted
	invalidKeyCooldown     = 24 * time.Hour   // 401 / invalid key
)

const minKeyLength = 10

// rotatablePatterns are error substrings that indicate key-level rate limiting.
var rotatablePatterns = []string{
	"resource_exhausted",
	"rate_limit_exceeded",
	"quota",
	"rate limit",
	"too many requests",
	"429",
}

// apiKey is one credential with its cooldown deadline. A key is usable when
// its deadline is zero or in the past.
type apiKey struct {
	secret       string
	coolingUntil time.Time
	lastError    string
	failures     int
}

func (k *apiKey) usable(now time.Time) bool {
	return k.coolingUntil.IsZero() || now.After(k.coolingUntil)
}

// KeyManager rotates across multiple Gemini API keys. Rate limits are
// per-key, so switching to a fresh key on 429 keeps throughput up while the
// limited key cools down.
type KeyManager struct {
	mu      sync.Mutex
	keys    []*apiKey
	current int
	logger  zerolog.Logger
}

// NewKeyManager creates a KeyManager from a list of API key strings.
// Empty or short strings are silently ignored.
func NewKeyManager(keys []string, logger zerolog.Logger) *KeyManager {
	km := &KeyManager{
		logger: logger.With().Str("component", "key_manager").Logger(),
	}

	for _, k := range keys {
		if k = strings.TrimSpace(k); len(k) >= minKeyLength {
			km.keys = append(km.keys, &apiKey{secret: k})
		}
	}

	if len(km.keys) == 0 {
		km.logger.Warn().Msg("no Gemini API keys configured")
	} else {
		km.logger.Info().Int("count", len(km.keys)).Msg("API keys loaded")
	}

	return km
}

// HasKeys returns true if at least one key was loaded.
func (km *KeyManager) HasKeys() bool {
	return len(km.keys) > 0
}

// TotalCount returns the total number of loaded keys.
func (km *KeyManager) TotalCount() int {
	return len(km.keys)
}

// CurrentKey returns a usable key, preferring the current one, or the empty
// string when every key is cooling down.
func (km *KeyManager) CurrentKey() string {
	km.mu.Lock()
	defer km.mu.Unlock()

	now := time.Now()
	if km.current < len(km.keys) && km.keys[km.current].usable(now) {
		return km.keys[km.current].secret
	}
	for i, k := range km.keys {
		if k.usable(now) {
			km.current = i
			return k.secret
		}
	}
	return ""
}

// IsRotatableError returns true if the error indicates a per-key rate limit
// that can be resolved by switching to a different key.
func IsRotatableError(statusCode int, errMsg string) bool {
	switch statusCode {
	case 429:
		return true
	case 503:
		// Model overload, not key-specific.
		return false
	}
	lower := strings.ToLower(errMsg)
	for _, pattern := range rotatablePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// cooldownFor classifies the failure into a cooldown duration.
func cooldownFor(statusCode int, errMsg string) time.Duration {
	lower := strings.ToLower(errMsg)
	switch {
	case strings.Contains(lower, "quota"):
		return quotaExhaustedCooldown
	case statusCode == 401 || strings.Contains(lower, "invalid"):
		return invalidKeyCooldown
	default:
		return rateLimitCooldown
	}
}

// RotateOnError puts the current key on cooldown and advances to the next
// usable one. Returns the new key, or empty string when all keys are
// exhausted. If the current key is already cooling (a concurrent request hit
// the same wall) it is not penalized again.
func (km *KeyManager) RotateOnError(statusCode int, errMsg string) string {
	km.mu.Lock()
	defer km.mu.Unlock()

	if len(km.keys) == 0 {
		return ""
	}

	now := time.Now()
	failed := km.keys[km.current]
	if failed.usable(now) {
		cooldown := cooldownFor(statusCode, errMsg)
		failed.coolingUntil = now.Add(cooldown)
		failed.lastError = truncateStr(errMsg, 200)
		failed.failures++

		km.logger.Warn().
			Int("key_index", km.current+1).
			Str("cooldown", cooldown.String()).
			Str("error", failed.lastError).
			Msg("key rate limited, rotating")
	}

	next := km.advance(now)
	if next == "" {
		km.logger.Error().Msg("all keys exhausted, no healthy keys available")
	} else {
		km.logger.Info().Int("key_index", km.current+1).Msg("rotated to new key")
	}
	return next
}

// advance moves current to the next usable key, round-robin. Caller holds
// the lock.
func (km *KeyManager) advance(now time.Time) string {
	for i := 1; i <= len(km.keys); i++ {
		idx := (km.current + i) % len(km.keys)
		if km.keys[idx].usable(now) {
			km.current = idx
			return km.keys[idx].secret
		}
	}
	return ""
}

// HealthyCount returns how many keys are currently usable.
func (km *KeyManager) HealthyCount() int {
	km.mu.Lock()
	defer km.mu.Unlock()

	now := time.Now()
	n := 0
	for _, k := range km.keys {
		if k.usable(now) {
			n++
		}
	}
	return n
}

// KeyStatus is the health snapshot of a single key (for the /status API).
type KeyStatus struct {
	Index             int           `json:"index"`
	Healthy           bool          `json:"healthy"`
	InCooldown        bool          `json:"in_cooldown"`
	CooldownRemaining time.Duration `json:"cooldown_remaining_ms,omitempty"`
	LastError         string        `json:"last_error,omitempty"`
	ErrorCount        int           `json:"error_count"`
}

// Status returns a snapshot of all key states.
func (km *KeyManager) Status() []KeyStatus {
	km.mu.Lock()
	defer km.mu.Unlock()

	now := time.Now()
	out := make([]KeyStatus, len(km.keys))
	for i, k := range km.keys {
		st := KeyStatus{
			Index:      i + 1,
			Healthy:    k.usable(now),
			LastError:  k.lastError,
			ErrorCount: k.failures,
		}
		if !st.Healthy {
			st.InCooldown = true
			st.CooldownRemaining = k.coolingUntil.Sub(now)
		}
		out[i] = st
	}
	return out
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
