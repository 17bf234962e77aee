package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
cache:
  capacity: 50
backends:
  invoke_timeout: 5s
  qa:
    candidates:
      - type: http
        endpoint: "http://qa.local"
      - type: extractive
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Cache.Capacity != 50 {
		t.Errorf("cache capacity: got %d", cfg.Cache.Capacity)
	}
	if cfg.Backends.InvokeTimeout != 5*time.Second {
		t.Errorf("invoke timeout: got %v", cfg.Backends.InvokeTimeout)
	}
	if len(cfg.Backends.QA.Candidates) != 2 || cfg.Backends.QA.Candidates[0].Endpoint != "http://qa.local" {
		t.Errorf("qa candidates: got %+v", cfg.Backends.QA.Candidates)
	}
	if cfg.Backends.QA.IsRequired() {
		t.Error("qa should not be required by default")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/corpus.db"
corpus:
  directories: ["./corpus"]
backends:
  embedder:
    candidates:
      - type: onnx
        model_path: "./models/minilm.onnx"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "corpus.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Corpus.Directories) != 1 || cfg.Corpus.Directories[0] != filepath.Join(dir, "corpus") {
		t.Errorf("corpus directories: got %v", cfg.Corpus.Directories)
	}
	if got := cfg.Backends.Embedder.Candidates[0].ModelPath; got != filepath.Join(dir, "models", "minilm.onnx") {
		t.Errorf("model_path = %s", got)
	}
}

func TestLoad_dotEnvAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("KANOON_PORT=9191\nKANOON_GENERATOR_ENDPOINT=http://gpu-box:11434/\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("KANOON_PORT")
		_ = os.Unsetenv("KANOON_GENERATOR_ENDPOINT")
	})
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port from .env: got %d", cfg.Server.Port)
	}
	for _, c := range cfg.Backends.Generator.Candidates {
		if c.Endpoint != "http://gpu-box:11434" {
			t.Errorf("generator endpoint override: got %s", c.Endpoint)
		}
	}
}

func TestLoad_invalidEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: false\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KANOON_PORT", "not-a-port")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid KANOON_PORT")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Cache.Capacity != 100 {
		t.Errorf("default cache capacity: got %d", cfg.Cache.Capacity)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("default top_k: got %d", cfg.Retrieval.TopK)
	}
	if cfg.Generation.MinAnswerLength != 10 {
		t.Errorf("default min answer length: got %d", cfg.Generation.MinAnswerLength)
	}
	gen := cfg.Backends.Generator
	if len(gen.Candidates) != 2 || gen.Candidates[0].Model != "llama3.2" || gen.Candidates[1].Model != "tinyllama" {
		t.Errorf("generator candidates: got %+v", gen.Candidates)
	}
	if !gen.IsRequired() {
		t.Error("generator should be required by default")
	}
	if gen.Candidates[0].Endpoint != defaultOllamaEndpoint {
		t.Errorf("ollama endpoint default: got %s", gen.Candidates[0].Endpoint)
	}
	emb := cfg.Backends.Embedder.Candidates
	if len(emb) != 2 || emb[0].Type != "onnx" || emb[1].Type != "hash" || emb[1].Dimensions != 384 {
		t.Errorf("embedder candidates: got %+v", emb)
	}
	if cfg.Corpus.Extensions == nil || cfg.Corpus.Extensions[0] != ".txt" {
		t.Errorf("corpus extensions: got %v", cfg.Corpus.Extensions)
	}
}

func TestApplyDefaults_explicitOptionalGenerator(t *testing.T) {
	f := false
	cfg := &Config{Backends: BackendsConfig{Generator: SlotConfig{Required: &f}}}
	ApplyDefaults(cfg)
	if cfg.Backends.Generator.IsRequired() {
		t.Error("explicit required: false must be kept")
	}
}

func TestCorpusConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		c := &CorpusConfig{}
		if got := c.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		c := &CorpusConfig{Recursive: &f}
		if got := c.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestBackendsConfig_Slot(t *testing.T) {
	b := &BackendsConfig{}
	for _, role := range []string{"generator", "qa", "summarizer", "embedder"} {
		if _, ok := b.Slot(role); !ok {
			t.Errorf("Slot(%q) not found", role)
		}
	}
	if _, ok := b.Slot("vision"); ok {
		t.Error("unknown role should not resolve")
	}
}

func TestCandidateConfig_DisplayName(t *testing.T) {
	tests := []struct {
		c    CandidateConfig
		want string
	}{
		{CandidateConfig{Type: "ollama", Model: "tinyllama"}, "ollama:tinyllama"},
		{CandidateConfig{Type: "hash"}, "hash"},
		{CandidateConfig{Type: "http", Name: "court-qa"}, "court-qa"},
	}
	for _, tt := range tests {
		if got := tt.c.DisplayName(); got != tt.want {
			t.Errorf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
