package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLibreTranslator_Translate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			http.NotFound(w, r)
			return
		}
		var req translateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Source != "auto" || req.Target != "hi" || req.APIKey != "k" {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(translateResponse{TranslatedText: "कानूनी नोटिस"})
	}))
	defer srv.Close()

	t.Setenv("TEST_LIBRE_KEY", "k")
	tr, err := New(Config{Endpoint: srv.URL, APIKeyEnv: "TEST_LIBRE_KEY"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := tr.Translate(context.Background(), "legal notice", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if got != "कानूनी नोटिस" {
		t.Errorf("Translate() = %q", got)
	}
}

func TestLibreTranslator_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unsupported language"}`, http.StatusBadRequest)
	}))
	defer srv.Close()
	tr, _ := New(Config{Endpoint: srv.URL})
	if _, err := tr.Translate(context.Background(), "x", "zz"); err == nil {
		t.Error("expected error")
	}
}

func TestNew_requiresEndpoint(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without endpoint")
	}
}
