package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"appraze/internal/domain/generation"
	"appraze/internal/platform/config"
)

func testConfig(baseURL, key string) config.Config {
	return config.Config{
		LLMProvider: config.LLMProviderOpenAI,
		LLMAPIKey:   key,
		LLMModel:    "gpt-4o",
		LLMBaseURL:  baseURL,
		LLMTimeout:  5 * time.Second,
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL, ""))
	_, err := client.Complete(context.Background(), generation.ChatRequest{Model: "gpt-4o"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if called {
		t.Fatal("no request should be sent without a key")
	}
}

func TestCompleteOpenAISendsChatCompletion(t *testing.T) {
	var body struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"## Review"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL, "sk-test"))
	text, err := client.Complete(context.Background(), generation.ChatRequest{
		Model:       "gpt-4o",
		System:      "system",
		User:        "user",
		Temperature: generation.Temperature,
		MaxTokens:   generation.MaxTokens,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "## Review" {
		t.Fatalf("unexpected text %q", text)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("expected bearer auth, got %q", auth)
	}
	if body.Model != "gpt-4o" || body.MaxTokens != 2048 {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Temperature < 0.69 || body.Temperature > 0.71 {
		t.Fatalf("expected temperature 0.7, got %v", body.Temperature)
	}
	if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages %+v", body.Messages)
	}
}

func TestCompleteOpenAIEmbedsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL, "sk-bad"))
	_, err := client.Complete(context.Background(), generation.ChatRequest{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected provider error")
	}
	if !strings.Contains(err.Error(), "Incorrect API key provided") {
		t.Fatalf("expected raw provider message in error, got %v", err)
	}
}

func TestCompleteRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig("", "key")
	cfg.LLMProvider = "mystery"
	if _, err := New(cfg).Complete(context.Background(), generation.ChatRequest{}); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}

func TestNewLeavesDeadlineToContext(t *testing.T) {
	cfg := testConfig("", "key")
	cfg.LLMTimeout = 0
	if got := New(cfg).httpClient.Timeout; got != 0 {
		t.Fatalf("expected no client timeout by default, got %s", got)
	}
	cfg.LLMTimeout = 90 * time.Second
	if got := New(cfg).httpClient.Timeout; got != 90*time.Second {
		t.Fatalf("expected configured cap, got %s", got)
	}
}

func TestCompleteStopsAtContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL, "sk-test")
	cfg.LLMTimeout = 0
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := New(cfg).Complete(ctx, generation.ChatRequest{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected the request to be cut off")
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Fatalf("expected the context deadline to end the call, took %s", elapsed)
	}
}
