package refine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dictalabs/dicta-core/internal/config"
)

func TestPromptEmbedsRawTextVerbatim(t *testing.T) {
	raw := "helo wrld"
	p := Prompt(raw)
	if !strings.HasSuffix(p, raw) {
		t.Fatalf("prompt does not embed raw text verbatim: %q", p)
	}
	if strings.Count(p, raw) != 1 {
		t.Fatalf("raw text embedded more than once: %q", p)
	}
}

func TestOpenAIRefineWithoutCredential(t *testing.T) {
	r := NewOpenAIRefiner(config.RefineConfig{Mode: "openai", Model: "gpt-4o-mini"})
	_, err := r.Refine(context.Background(), "helo wrld")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestOllamaRefineWithoutEndpoint(t *testing.T) {
	r := NewOllamaRefiner(config.RefineConfig{Mode: "ollama"})
	_, err := r.Refine(context.Background(), "helo wrld")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestOllamaRefine(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		gotPrompt = req.Prompt
		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: "Hello world.", Done: true})
	}))
	defer srv.Close()

	r := NewOllamaRefiner(config.RefineConfig{Mode: "ollama", Endpoint: srv.URL, Model: "llama3.2"})
	text, err := r.Refine(context.Background(), "helo wrld")
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if text != "Hello world." {
		t.Fatalf("completion not returned verbatim: %q", text)
	}
	if !strings.Contains(gotPrompt, "helo wrld") {
		t.Fatalf("prompt does not carry the raw transcript: %q", gotPrompt)
	}
}

func TestOllamaRefineServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewOllamaRefiner(config.RefineConfig{Mode: "ollama", Endpoint: srv.URL})
	_, err := r.Refine(context.Background(), "helo wrld")
	if !errors.Is(err, ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(config.RefineConfig{Mode: "bard"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
