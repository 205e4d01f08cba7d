package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/semfire-project/semfire/internal/core"
)

// Gemini API types
type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  map[string]interface{} `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// GeminiGenerator implements Generator against the Gemini generateContent
// endpoint. Calls run inside a circuit breaker; per-key rate limits are
// handled by rotating through the configured keys.
type GeminiGenerator struct {
	url        string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	keyMgr     *KeyManager
	logger     zerolog.Logger
}

// NewGeminiGenerator builds a generator from config. Returns nil when no
// usable API key is configured, which callers treat as capability absent.
func NewGeminiGenerator(cfg core.LLMConfig, logger zerolog.Logger) *GeminiGenerator {
	l := logger.With().Str("component", "gemini_generator").Logger()

	keyMgr := NewKeyManager(cfg.APIKeys, l)
	if !keyMgr.HasKeys() {
		return nil
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GeminiGenerator{
		url:        fmt.Sprintf("%s/%s:generateContent", cfg.APIBaseURL, cfg.Model),
		httpClient: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "GeminiAPI",
			MaxRequests: 3,
			Interval:    10 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		keyMgr: keyMgr,
		logger: l,
	}
}

// Generate calls the Gemini API and returns the first candidate's text.
func (g *GeminiGenerator) Generate(ctx context.Context, systemInstruction, userContent string, maxOutputTokens int) (string, error) {
	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemInstruction}}},
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: userContent}}},
		},
		GenerationConfig: map[string]interface{}{
			"maxOutputTokens": maxOutputTokens,
			"temperature":     0.1,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	// Retry loop: attempt with current key, rotate on rate limit
	maxAttempts := g.keyMgr.TotalCount()
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if maxAttempts > 4 {
		maxAttempts = 4
	}

	result, cbErr := g.cb.Execute(func() (interface{}, error) {
		var lastErr error
		for attempt := 0; attempt < maxAttempts; attempt++ {
			apiKey := g.keyMgr.CurrentKey()
			if apiKey == "" {
				return "", fmt.Errorf("no healthy API keys available")
			}

			fullURL := fmt.Sprintf("%s?key=%s", g.url, apiKey)
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
			if err != nil {
				return "", fmt.Errorf("creating request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := g.httpClient.Do(req)
			if err != nil {
				return "", fmt.Errorf("calling Gemini API: %w", err)
			}

			respBody, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return "", fmt.Errorf("reading response: %w", err)
			}

			// Rate limit / quota errors are per-key — rotate and retry
			if IsRotatableError(resp.StatusCode, string(respBody)) {
				lastErr = fmt.Errorf("Gemini API rate limited (status %d)", resp.StatusCode)
				if g.keyMgr.RotateOnError(resp.StatusCode, string(respBody)) == "" {
					return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
				}
				continue
			}

			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("Gemini API error (status %d): %s", resp.StatusCode, string(respBody))
			}

			var gemResp geminiResponse
			if err := json.Unmarshal(respBody, &gemResp); err != nil {
				return "", fmt.Errorf("parsing Gemini response: %w", err)
			}

			if gemResp.Error != nil {
				errMsg := gemResp.Error.Message
				if IsRotatableError(gemResp.Error.Code, errMsg) {
					lastErr = fmt.Errorf("Gemini API error: %s", errMsg)
					if g.keyMgr.RotateOnError(gemResp.Error.Code, errMsg) == "" {
						return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
					}
					continue
				}
				return "", fmt.Errorf("Gemini API error: %s", errMsg)
			}

			if len(gemResp.Candidates) == 0 || len(gemResp.Candidates[0].Content.Parts) == 0 {
				return "", nil
			}

			return gemResp.Candidates[0].Content.Parts[0].Text, nil
		}

		if lastErr != nil {
			return "", lastErr
		}
		return "", fmt.Errorf("no healthy API keys available")
	})

	if cbErr != nil {
		return "", cbErr
	}

	return result.(string), nil
}

// KeyStatus exposes the key manager snapshot for the status API.
func (g *GeminiGenerator) KeyStatus() []KeyStatus {
	return g.keyMgr.Status()
}
