package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"flux_comfy_bot/entities"
)

func newTestEnhancer(t *testing.T, server *httptest.Server) *OpenAIEnhancer {
	t.Helper()

	enhancer, err := NewOpenAIEnhancer(Options{
		APIKey:   "test-key",
		Model:    "test-model",
		BaseURL:  server.URL,
		Provider: "test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return enhancer
}

func TestEnhanceMinCreativitySkipsProvider(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer server.Close()

	enhancer := newTestEnhancer(t, server)
	enhancement, err := enhancer.Enhance(context.Background(), "a red fox", entities.MinCreativity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if enhancement.Enhanced != "a red fox" {
		t.Errorf("enhanced = %q, want the prompt untouched", enhancement.Enhanced)
	}
	if enhancement.Provider != "none" {
		t.Errorf("provider = %q, want none", enhancement.Provider)
	}
	if got := atomic.LoadInt32(&requests); got != 0 {
		t.Errorf("provider saw %d requests, want 0", got)
	}
}

func TestEnhance(t *testing.T) {
	var body chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("error decoding request: %v", err)
		}
		fmt.Fprint(w, `{"choices": [{"message": {"content": "  \"a vivid red fox under moonlight\"  "}}]}`)
	}))
	defer server.Close()

	enhancer := newTestEnhancer(t, server)
	enhancement, err := enhancer.Enhance(context.Background(), "a red fox", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if enhancement.Enhanced != "a vivid red fox under moonlight" {
		t.Errorf("enhanced = %q, want quotes and whitespace stripped", enhancement.Enhanced)
	}
	if enhancement.Original != "a red fox" || enhancement.Creativity != 7 || enhancement.Provider != "test" {
		t.Errorf("enhancement = %+v", enhancement)
	}

	if body.Model != "test-model" {
		t.Errorf("model = %q", body.Model)
	}
	if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", body.Messages)
	}
	if !strings.Contains(body.Messages[1].Content, instructions[7]) {
		t.Errorf("user message is missing the creativity instructions: %q", body.Messages[1].Content)
	}
	if !strings.Contains(body.Messages[1].Content, "a red fox") {
		t.Errorf("user message is missing the prompt: %q", body.Messages[1].Content)
	}
}

func TestEnhanceClampsCreativity(t *testing.T) {
	var body chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		fmt.Fprint(w, `{"choices": [{"message": {"content": "enhanced"}}]}`)
	}))
	defer server.Close()

	enhancer := newTestEnhancer(t, server)
	enhancement, err := enhancer.Enhance(context.Background(), "prompt", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enhancement.Creativity != entities.MaxCreativity {
		t.Errorf("creativity = %d, want clamped to %d", enhancement.Creativity, entities.MaxCreativity)
	}
	if !strings.Contains(body.Messages[1].Content, instructions[entities.MaxCreativity]) {
		t.Errorf("expected max creativity instructions, got %q", body.Messages[1].Content)
	}
}

func TestEnhanceErrors(t *testing.T) {
	responses := map[string]struct {
		status int
		body   string
	}{
		"server error":   {http.StatusInternalServerError, ""},
		"no choices":     {http.StatusOK, `{"choices": []}`},
		"empty content":  {http.StatusOK, `{"choices": [{"message": {"content": "  "}}]}`},
		"malformed json": {http.StatusOK, `{`},
	}

	for name, response := range responses {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(response.status)
				fmt.Fprint(w, response.body)
			}))
			defer server.Close()

			enhancer := newTestEnhancer(t, server)
			if _, err := enhancer.Enhance(context.Background(), "prompt", 5); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestNewOpenAIEnhancerRequiresModel(t *testing.T) {
	if _, err := NewOpenAIEnhancer(Options{}); err == nil {
		t.Fatal("expected an error for a missing model")
	}
}
