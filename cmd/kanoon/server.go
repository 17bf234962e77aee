package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/server"
	"github.com/hyperjump/kanoon/internal/watcher"
	"github.com/hyperjump/kanoon/pkg/utils"
)

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (backend loading, corpus changes, requests)")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The listener comes up first so /health answers "starting" while models load.
	srv := server.NewServer(
		components.Orchestrator,
		components.Indexer,
		components.Library,
		components.Extractor,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()
	logger.Info("Server listening", zap.String("host", cfg.Server.Host), zap.Int("port", cfg.Server.Port))

	if err := components.loadBackends(ctx, true, logger); err != nil {
		logger.Fatal("Failed to load backends", zap.Error(err))
	}
	if err := components.restoreCorpus(ctx, logger); err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}

	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.New(components.Indexer, cfg.Corpus.Directories, cfg.Corpus.RecursiveOrDefault(), watchOpts...)
	if len(cfg.Corpus.Directories) > 0 {
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	components.Registry.MarkReady()
	logger.Info("Ready", zap.Int("passages", components.Vectors.Size()))

	<-ctx.Done()

	logger.Info("Shutting down...")
	_ = watchSvc.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}
