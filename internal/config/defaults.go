package config

import "time"

const (
	defaultOllamaEndpoint = "http://127.0.0.1:11434"
	defaultDimensions     = 384
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kanoon/data/db/corpus.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/kanoon/data/indices/bleve"
	}
	if cfg.Corpus.Extensions == nil {
		cfg.Corpus.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".xlsx"}
	}
	if len(cfg.Corpus.Directories) > 0 && cfg.Corpus.Recursive == nil {
		t := true
		cfg.Corpus.Recursive = &t
	}
	if cfg.Corpus.ChunkSize == 0 {
		cfg.Corpus.ChunkSize = 200
	}
	if cfg.Corpus.ChunkOverlap == 0 {
		cfg.Corpus.ChunkOverlap = 20
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = 100
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = 2000
	}
	if cfg.Generation.ChatMaxLength == 0 {
		cfg.Generation.ChatMaxLength = 300
	}
	if cfg.Generation.NoticeMaxLength == 0 {
		cfg.Generation.NoticeMaxLength = 500
	}
	if cfg.Generation.RoadmapMaxLength == 0 {
		cfg.Generation.RoadmapMaxLength = 500
	}
	if cfg.Generation.AskMaxLength == 0 {
		cfg.Generation.AskMaxLength = 400
	}
	if cfg.Generation.MinAnswerLength == 0 {
		cfg.Generation.MinAnswerLength = 10
	}
	if cfg.Analysis.MaxInputChars == 0 {
		cfg.Analysis.MaxInputChars = 4000
	}
	if cfg.Library.KeywordWeight == 0 && cfg.Library.SemanticWeight == 0 {
		cfg.Library.KeywordWeight = 0.5
		cfg.Library.SemanticWeight = 0.5
	}
	if cfg.Library.TitleBoost == 0 {
		cfg.Library.TitleBoost = 2
	}
	if cfg.Library.Candidates == 0 {
		cfg.Library.Candidates = 20
	}
	if cfg.Translation.Timeout == 0 {
		cfg.Translation.Timeout = 15 * time.Second
	}
	applyBackendDefaults(&cfg.Backends)
}

func applyBackendDefaults(b *BackendsConfig) {
	if b.InvokeTimeout == 0 {
		b.InvokeTimeout = 60 * time.Second
	}

	// Larger model first, degrade to a tiny one.
	if len(b.Generator.Candidates) == 0 {
		b.Generator.Candidates = []CandidateConfig{
			{Type: "ollama", Model: "llama3.2"},
			{Type: "ollama", Model: "tinyllama"},
		}
	}
	if b.Generator.Required == nil {
		t := true
		b.Generator.Required = &t
	}
	if len(b.QA.Candidates) == 0 {
		b.QA.Candidates = []CandidateConfig{{Type: "extractive"}}
	}
	if len(b.Summarizer.Candidates) == 0 {
		b.Summarizer.Candidates = []CandidateConfig{{Type: "frequency", MaxSentences: 5}}
	}
	if len(b.Embedder.Candidates) == 0 {
		b.Embedder.Candidates = []CandidateConfig{
			{Type: "onnx", ModelPath: "/usr/local/var/kanoon/data/models/all-MiniLM-L6-v2.onnx"},
			{Type: "hash"},
		}
	}

	for _, slot := range []*SlotConfig{&b.Generator, &b.QA, &b.Summarizer, &b.Embedder} {
		for i := range slot.Candidates {
			applyCandidateDefaults(&slot.Candidates[i])
		}
	}
}

func applyCandidateDefaults(c *CandidateConfig) {
	switch c.Type {
	case "ollama":
		if c.Endpoint == "" {
			c.Endpoint = defaultOllamaEndpoint
		}
		if c.Model == "" {
			c.Model = "llama3.2"
		}
	case "onnx":
		if c.Dimensions == 0 {
			c.Dimensions = defaultDimensions
		}
		if c.MaxTokens == 0 {
			c.MaxTokens = 256
		}
		if c.CacheSize == 0 {
			c.CacheSize = 10000
		}
	case "hash":
		if c.Dimensions == 0 {
			c.Dimensions = defaultDimensions
		}
	case "frequency":
		if c.MaxSentences == 0 {
			c.MaxSentences = 5
		}
	}
	if c.Type == "http" && c.CacheSize == 0 {
		c.CacheSize = 10000
	}
}
