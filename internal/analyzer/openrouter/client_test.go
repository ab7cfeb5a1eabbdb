package openrouter_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/complyscan/complyscan/internal/analyzer/domain"
	"github.com/complyscan/complyscan/internal/analyzer/openrouter"
	"github.com/complyscan/complyscan/internal/config"
	"go.uber.org/zap"
)

func newClient(t *testing.T, handler http.HandlerFunc) (*openrouter.Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.AnalyzerConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Model:   "anthropic/claude-3.5-sonnet",
		Timeout: 5 * time.Second,
	}
	return openrouter.New(cfg, zap.NewNop()), srv
}

func TestAnalyzeReturnsContent(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any

	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "gen_1",
			"model": "anthropic/claude-3.5-sonnet",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "## Red Flags\n- none"}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150},
		})
	})

	analysis, err := client.Analyze(context.Background(), domain.Request{
		ScanKind:     "basic",
		DocumentText: "Invoice #42, cash payment $15,000",
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.Content != "## Red Flags\n- none" {
		t.Fatalf("unexpected content: %q", analysis.Content)
	}
	if analysis.TokensUsed != 150 {
		t.Fatalf("expected 150 tokens, got %d", analysis.TokensUsed)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotBody["model"] != "anthropic/claude-3.5-sonnet" {
		t.Fatalf("unexpected model: %v", gotBody["model"])
	}

	messages := gotBody["messages"].([]any)
	content := messages[0].(map[string]any)["content"].(string)
	if !strings.Contains(content, "Invoice #42") {
		t.Fatalf("prompt does not embed the document: %q", content)
	}
}

func TestAnalyzeRejectsEmptyDocument(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("provider must not be called for an empty document")
	})

	_, err := client.Analyze(context.Background(), domain.Request{ScanKind: "basic", DocumentText: "   "})
	if !errors.Is(err, domain.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestAnalyzeMapsProviderErrors(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusUnauthorized, domain.ErrProviderAuth},
		{http.StatusTooManyRequests, domain.ErrProviderRateLimit},
		{http.StatusBadRequest, domain.ErrProviderBadRequest},
		{http.StatusBadGateway, domain.ErrProviderDown},
	}

	for _, tt := range tests {
		client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})

		_, err := client.Analyze(context.Background(), domain.Request{ScanKind: "basic", DocumentText: "x"})
		if !errors.Is(err, tt.wantErr) {
			t.Fatalf("status %d: expected %v, got %v", tt.status, tt.wantErr, err)
		}
	}
}
