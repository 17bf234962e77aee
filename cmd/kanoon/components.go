package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/backend"
	"github.com/hyperjump/kanoon/internal/cache"
	"github.com/hyperjump/kanoon/internal/config"
	"github.com/hyperjump/kanoon/internal/extract"
	"github.com/hyperjump/kanoon/internal/indexer"
	"github.com/hyperjump/kanoon/internal/keyword"
	"github.com/hyperjump/kanoon/internal/loader"
	"github.com/hyperjump/kanoon/internal/orchestrator"
	"github.com/hyperjump/kanoon/internal/search"
	"github.com/hyperjump/kanoon/internal/storage"
	"github.com/hyperjump/kanoon/internal/translate"
	"github.com/hyperjump/kanoon/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Config       *config.Config
	Registry     *backend.Registry
	Storage      storage.Storage
	KeywordIndex *keyword.BleveIndex
	Vectors      *vector.Store
	Extractor    *extract.Extractor
	Orchestrator *orchestrator.Orchestrator
	Indexer      *indexer.Indexer
	Library      *search.Engine
}

func (c *Components) Close() {
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

// initializeComponents wires storage, indices and the orchestrator. Backend slots are
// left empty; call loadBackends to fill them.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	reg := backend.NewRegistry(
		backend.WithLogger(logger),
		backend.WithInvokeTimeout(cfg.Backends.InvokeTimeout),
	)
	vectors := vector.NewStore(backend.NewSlotEmbedder(reg))

	orchOpts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if cfg.Translation.Endpoint != "" {
		tr, err := translate.New(translate.Config{
			Endpoint:  cfg.Translation.Endpoint,
			APIKeyEnv: cfg.Translation.APIKeyEnv,
			Timeout:   cfg.Translation.Timeout,
			Logger:    logger,
		})
		if err != nil {
			logger.Warn("Translation disabled", zap.Error(err))
		} else {
			orchOpts = append(orchOpts, orchestrator.WithTranslator(tr))
		}
	}
	responses := cache.New(cfg.Cache.Capacity, cache.WithSingleFlight(cfg.Cache.SingleFlight))
	orch := orchestrator.New(reg, responses, vectors, orchestrator.NewConfig(cfg), orchOpts...)

	extractor := extract.NewExtractor()
	idx := indexer.New(store, vectors, keywordIndex, cfg.Corpus,
		indexer.WithLogger(logger),
		indexer.WithExtractor(extractor),
		indexer.WithOnChange(func() { orch.CorpusChanged() }),
	)
	library := search.NewEngine(store, keywordIndex, vectors, cfg.Library, logger)

	return &Components{
		Config:       cfg,
		Registry:     reg,
		Storage:      store,
		KeywordIndex: keywordIndex,
		Vectors:      vectors,
		Extractor:    extractor,
		Orchestrator: orch,
		Indexer:      idx,
		Library:      library,
	}, nil
}

// loadBackends fills the backend slots. Without the generator only the QA, summarizer
// and embedder slots are loaded, for commands that never generate text.
func (c *Components) loadBackends(ctx context.Context, withGenerator bool, logger *zap.Logger) error {
	if withGenerator {
		return loader.LoadAll(ctx, c.Registry, &c.Config.Backends, logger)
	}
	return loader.LoadRoles(ctx, c.Registry, &c.Config.Backends, logger,
		backend.RoleQA, backend.RoleSummarizer, backend.RoleEmbedder)
}

// restoreCorpus repopulates the vector store and indexes the configured directories.
func (c *Components) restoreCorpus(ctx context.Context, logger *zap.Logger) error {
	if _, err := c.Indexer.Restore(ctx); err != nil {
		return fmt.Errorf("restore corpus: %w", err)
	}
	for _, dir := range c.Config.Corpus.Directories {
		indexed, failed, err := c.Indexer.IndexDirectory(ctx, dir, c.Config.Corpus.RecursiveOrDefault())
		if err != nil {
			logger.Warn("Failed to index corpus directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		logger.Info("Corpus directory indexed",
			zap.String("dir", dir),
			zap.Int("indexed", indexed),
			zap.Int("failed", failed))
	}
	return nil
}
