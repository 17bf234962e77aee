package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/kanoon/internal/remote"
)

func newOllama(t *testing.T, models ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		var list []map[string]string
		for _, m := range models {
			list = append(list, map[string]string{"name": m, "model": m})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"models": list})
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if req.Options["num_predict"] != float64(300) {
			t.Errorf("num_predict = %v", req.Options["num_predict"])
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Model: req.Model, Response: "An affidavit is a sworn statement.", Done: true})
	})
	return httptest.NewServer(mux)
}

func TestOllamaGenerator_Generate(t *testing.T) {
	srv := newOllama(t, "tinyllama:latest")
	defer srv.Close()
	client, _ := remote.NewClient(remote.Config{BaseURL: srv.URL})

	g, err := NewOllamaGenerator(context.Background(), OllamaConfig{Client: client, Model: "tinyllama"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := g.Generate(context.Background(), "Legal response:", 300)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one candidate, got %d", len(out))
	}
	if !strings.HasPrefix(out[0], "Legal response:") || !strings.Contains(out[0], "sworn statement") {
		t.Errorf("unexpected output %q", out[0])
	}
}

func TestNewOllamaGenerator_missingModel(t *testing.T) {
	srv := newOllama(t, "tinyllama:latest")
	defer srv.Close()
	client, _ := remote.NewClient(remote.Config{BaseURL: srv.URL})
	if _, err := NewOllamaGenerator(context.Background(), OllamaConfig{Client: client, Model: "llama3.2"}); err == nil {
		t.Error("expected load failure for a model that is not pulled")
	}
}

func TestModelMatches(t *testing.T) {
	tests := []struct {
		want, have string
		match      bool
	}{
		{"llama3.2", "llama3.2", true},
		{"llama3.2", "llama3.2:latest", true},
		{"llama3.2:1b", "llama3.2:latest", false},
		{"llama3.2", "", false},
	}
	for _, tt := range tests {
		if got := modelMatches(tt.want, tt.have); got != tt.match {
			t.Errorf("modelMatches(%q, %q) = %v", tt.want, tt.have, got)
		}
	}
}
