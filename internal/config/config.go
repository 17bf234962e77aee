// Package config provides configuration loading and structs for the kanoon server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	Cache       CacheConfig       `yaml:"cache"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Generation  GenerationConfig  `yaml:"generation"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Library     LibraryConfig     `yaml:"library"`
	Backends    BackendsConfig    `yaml:"backends"`
	Translation TranslationConfig `yaml:"translation"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds paths for the corpus database and keyword index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// CorpusConfig holds the reference corpus directories and chunking settings.
type CorpusConfig struct {
	Directories  []string `yaml:"directories"`
	Extensions   []string `yaml:"extensions"`
	Recursive    *bool    `yaml:"recursive"`
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (c *CorpusConfig) RecursiveOrDefault() bool {
	if c.Recursive != nil {
		return *c.Recursive
	}
	return true
}

// CacheConfig sizes the response cache.
type CacheConfig struct {
	Capacity     int  `yaml:"capacity"`
	SingleFlight bool `yaml:"single_flight"`
}

// RetrievalConfig controls how much context is retrieved for grounded answers.
type RetrievalConfig struct {
	TopK            int `yaml:"top_k"`
	MaxContextChars int `yaml:"max_context_chars"`
}

// GenerationConfig holds per-request generation bounds.
type GenerationConfig struct {
	ChatMaxLength    int `yaml:"chat_max_length"`
	NoticeMaxLength  int `yaml:"notice_max_length"`
	RoadmapMaxLength int `yaml:"roadmap_max_length"`
	AskMaxLength     int `yaml:"ask_max_length"`
	MinAnswerLength  int `yaml:"min_answer_length"`
}

// AnalysisConfig holds document analysis limits.
type AnalysisConfig struct {
	MaxInputChars int `yaml:"max_input_chars"`
}

// LibraryConfig tunes hybrid search over the reference corpus.
type LibraryConfig struct {
	KeywordWeight  float64 `yaml:"keyword_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	TitleBoost     float64 `yaml:"title_boost"`
	Candidates     int     `yaml:"candidates"`
	Fuzzy          bool    `yaml:"fuzzy"`
}

// BackendsConfig lists the candidate implementations for every backend slot.
type BackendsConfig struct {
	InvokeTimeout time.Duration `yaml:"invoke_timeout"`
	Generator     SlotConfig    `yaml:"generator"`
	QA            SlotConfig    `yaml:"qa"`
	Summarizer    SlotConfig    `yaml:"summarizer"`
	Embedder      SlotConfig    `yaml:"embedder"`
}

// Slot returns the slot config for a role name ("generator", "qa", "summarizer", "embedder").
func (b *BackendsConfig) Slot(role string) (*SlotConfig, bool) {
	switch role {
	case "generator":
		return &b.Generator, true
	case "qa":
		return &b.QA, true
	case "summarizer":
		return &b.Summarizer, true
	case "embedder":
		return &b.Embedder, true
	default:
		return nil, false
	}
}

// SlotConfig is an ordered candidate list; the first candidate that loads wins.
type SlotConfig struct {
	Required   *bool             `yaml:"required"`
	Candidates []CandidateConfig `yaml:"candidates"`
}

// IsRequired reports whether a load failure of this slot should stop startup.
func (s *SlotConfig) IsRequired() bool {
	return s.Required != nil && *s.Required
}

// CandidateConfig describes one backend implementation to try.
type CandidateConfig struct {
	Type         string        `yaml:"type"`
	Name         string        `yaml:"name,omitempty"`
	Endpoint     string        `yaml:"endpoint,omitempty"`
	Model        string        `yaml:"model,omitempty"`
	ModelPath    string        `yaml:"model_path,omitempty"`
	APIKeyEnv    string        `yaml:"api_key_env,omitempty"`
	MaxTokens    int           `yaml:"max_tokens,omitempty"`
	MaxSentences int           `yaml:"max_sentences,omitempty"`
	Dimensions   int           `yaml:"dimensions,omitempty"`
	CacheSize    int           `yaml:"cache_size,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
}

// DisplayName returns Name, or "type:model" when no name was given.
func (c *CandidateConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Model != "" {
		return c.Type + ":" + c.Model
	}
	return c.Type
}

// TranslationConfig points at a LibreTranslate-compatible service.
type TranslationConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Load reads and parses the config file at path, loads a sibling .env file if present,
// applies defaults and environment overrides, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	configDir := filepath.Dir(path)
	// Missing .env files are fine; values already in the environment win.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	_ = godotenv.Load()

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	for i := range cfg.Corpus.Directories {
		cfg.Corpus.Directories[i] = expandPath(cfg.Corpus.Directories[i], configDir)
	}
	for i := range cfg.Backends.Embedder.Candidates {
		c := &cfg.Backends.Embedder.Candidates[i]
		if c.ModelPath != "" {
			c.ModelPath = expandPath(c.ModelPath, configDir)
		}
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets deployments change the most common settings without editing YAML.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("KANOON_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid KANOON_DEBUG %q: %w", v, err)
		}
		cfg.Debug = b
	}
	if v := os.Getenv("KANOON_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("KANOON_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid KANOON_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("KANOON_GENERATOR_ENDPOINT"); v != "" {
		for i := range cfg.Backends.Generator.Candidates {
			cfg.Backends.Generator.Candidates[i].Endpoint = strings.TrimRight(v, "/")
		}
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
