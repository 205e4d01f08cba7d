package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/semfire-project/semfire/internal/core"
)

func generatorWithURL(t *testing.T, baseURL string, keys ...string) *GeminiGenerator {
	t.Helper()
	if len(keys) == 0 {
		keys = []string{"longenoughkey1"}
	}
	g := NewGeminiGenerator(core.LLMConfig{
		Model:      "gemini-test",
		APIBaseURL: baseURL,
		APIKeys:    keys,
	}, zerolog.Nop())
	if g == nil {
		t.Fatal("generator should be constructable with a usable key")
	}
	return g
}

func candidateResponse(text string) geminiResponse {
	var resp geminiResponse
	resp.Candidates = make([]struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	}, 1)
	resp.Candidates[0].Content.Parts = []struct {
		Text string `json:"text"`
	}{{Text: text}}
	return resp
}

func TestNewGeminiGenerator_NoKeys_Nil(t *testing.T) {
	g := NewGeminiGenerator(core.LLMConfig{Model: "gemini-test"}, zerolog.Nop())
	if g != nil {
		t.Error("generator over no keys should be nil")
	}
}

func TestNewGeminiGenerator_ShortKeysFiltered_Nil(t *testing.T) {
	g := NewGeminiGenerator(core.LLMConfig{Model: "gemini-test", APIKeys: []string{"short"}}, zerolog.Nop())
	if g != nil {
		t.Error("generator over only too-short keys should be nil")
	}
}

func TestGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(candidateResponse("a considered assessment"))
	}))
	defer server.Close()

	g := generatorWithURL(t, server.URL)
	text, err := g.Generate(context.Background(), "system", "user", 150)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if text != "a considered assessment" {
		t.Errorf("text = %q, want candidate text", text)
	}
}

func TestGenerate_EmptyCandidates_NoError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{})
	}))
	defer server.Close()

	// An empty candidate list is not a transport failure; the signal maps it
	// to its empty-response status.
	g := generatorWithURL(t, server.URL)
	text, err := g.Generate(context.Background(), "system", "user", 150)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}

func TestGenerate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "internal server error", "code": 500}}`))
	}))
	defer server.Close()

	g := generatorWithURL(t, server.URL)
	_, err := g.Generate(context.Background(), "system", "user", 150)
	if err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestGenerate_RateLimit_RotatesKey(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "RESOURCE_EXHAUSTED", "code": 429}}`))
			return
		}
		json.NewEncoder(w).Encode(candidateResponse("after rotation"))
	}))
	defer server.Close()

	g := generatorWithURL(t, server.URL, "longenoughkey1", "longenoughkey2")
	text, err := g.Generate(context.Background(), "system", "user", 150)
	if err != nil {
		t.Fatalf("Generate() error after rotation: %v", err)
	}
	if text != "after rotation" {
		t.Errorf("text = %q, want response from the rotated key", text)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2 (initial + retry)", calls)
	}
}

func TestGenerate_AllKeysExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "RESOURCE_EXHAUSTED", "code": 429}}`))
	}))
	defer server.Close()

	g := generatorWithURL(t, server.URL, "longenoughkey1", "longenoughkey2")
	_, err := g.Generate(context.Background(), "system", "user", 150)
	if err == nil {
		t.Error("expected error when every key is rate limited")
	}
}
