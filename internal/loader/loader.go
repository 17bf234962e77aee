// Package loader turns configured candidate lists into backend.Candidate values.
package loader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/backend"
	"github.com/hyperjump/kanoon/internal/config"
	"github.com/hyperjump/kanoon/internal/embedding"
	"github.com/hyperjump/kanoon/internal/llm"
	"github.com/hyperjump/kanoon/internal/qa"
	"github.com/hyperjump/kanoon/internal/remote"
	"github.com/hyperjump/kanoon/internal/summarizer"
	"github.com/hyperjump/kanoon/pkg/utils"
)

type factory func(ctx context.Context, c config.CandidateConfig, logger *zap.Logger) (backend.Instance, error)

// factories lists the candidate types each role accepts.
var factories = map[backend.Role]map[string]factory{
	backend.RoleGenerator: {
		"ollama": newOllama,
	},
	backend.RoleQA: {
		"http":       newRemoteQA,
		"extractive": newExtractiveQA,
	},
	backend.RoleSummarizer: {
		"http":      newRemoteSummarizer,
		"frequency": newFrequencySummarizer,
	},
	backend.RoleEmbedder: {
		"onnx": newONNXEmbedder,
		"http": newRemoteEmbedder,
		"hash": newHashEmbedder,
	},
}

// Candidates builds the ordered candidate list for role. An unknown type still yields a
// candidate, one whose Load fails, so the misconfiguration shows up in slot health.
func Candidates(role backend.Role, slot config.SlotConfig, logger *zap.Logger) []backend.Candidate {
	logger = utils.OrNop(logger)
	out := make([]backend.Candidate, 0, len(slot.Candidates))
	for _, c := range slot.Candidates {
		c := c
		name := c.DisplayName()
		f, ok := factories[role][c.Type]
		if !ok {
			out = append(out, backend.Candidate{
				Name: name,
				Load: func(context.Context) (backend.Instance, error) {
					return nil, fmt.Errorf("unknown %s candidate type %q", role, c.Type)
				},
			})
			continue
		}
		out = append(out, backend.Candidate{
			Name: name,
			Load: func(ctx context.Context) (backend.Instance, error) {
				if c.Timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, c.Timeout)
					defer cancel()
				}
				return f(ctx, c, logger.With(zap.String("slot", string(role)), zap.String("candidate", name)))
			},
		})
	}
	return out
}

func newClient(c config.CandidateConfig, logger *zap.Logger) (*remote.Client, error) {
	return remote.NewClient(remote.Config{
		BaseURL:   c.Endpoint,
		APIKeyEnv: c.APIKeyEnv,
		Timeout:   c.Timeout,
		Logger:    logger,
	})
}

func newOllama(ctx context.Context, c config.CandidateConfig, logger *zap.Logger) (backend.Instance, error) {
	client, err := newClient(c, logger)
	if err != nil {
		return nil, err
	}
	return llm.NewOllamaGenerator(ctx, llm.OllamaConfig{Client: client, Model: c.Model, Logger: logger})
}

func newRemoteQA(ctx context.Context, c config.CandidateConfig, logger *zap.Logger) (backend.Instance, error) {
	client, err := newClient(c, logger)
	if err != nil {
		return nil, err
	}
	return qa.NewRemoteQA(ctx, client)
}

func newExtractiveQA(_ context.Context, c config.CandidateConfig, _ *zap.Logger) (backend.Instance, error) {
	return qa.NewExtractiveQA(c.MaxSentences), nil
}

func newRemoteSummarizer(ctx context.Context, c config.CandidateConfig, logger *zap.Logger) (backend.Instance, error) {
	client, err := newClient(c, logger)
	if err != nil {
		return nil, err
	}
	return summarizer.NewRemoteSummarizer(ctx, client)
}

func newFrequencySummarizer(_ context.Context, c config.CandidateConfig, _ *zap.Logger) (backend.Instance, error) {
	return summarizer.NewFrequencySummarizer(c.MaxSentences), nil
}

func newONNXEmbedder(_ context.Context, c config.CandidateConfig, _ *zap.Logger) (backend.Instance, error) {
	e, err := embedding.NewONNXEmbedder(embedding.ONNXConfig{
		ModelPath:  c.ModelPath,
		Dimensions: c.Dimensions,
		MaxTokens:  c.MaxTokens,
		CacheSize:  c.CacheSize,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func newRemoteEmbedder(ctx context.Context, c config.CandidateConfig, logger *zap.Logger) (backend.Instance, error) {
	client, err := newClient(c, logger)
	if err != nil {
		return nil, err
	}
	return embedding.NewRemoteEmbedder(ctx, embedding.RemoteConfig{
		Client:     client,
		Model:      c.Model,
		Dimensions: c.Dimensions,
		CacheSize:  c.CacheSize,
	})
}

func newHashEmbedder(_ context.Context, c config.CandidateConfig, _ *zap.Logger) (backend.Instance, error) {
	return embedding.NewHashEmbedder(c.Dimensions), nil
}

// LoadAll loads every slot from cfg. It returns an error only when a slot marked
// required could not be loaded; optional slots are left empty and reported through health.
func LoadAll(ctx context.Context, reg *backend.Registry, cfg *config.BackendsConfig, logger *zap.Logger) error {
	return LoadRoles(ctx, reg, cfg, logger, backend.Roles()...)
}

// LoadRoles is LoadAll restricted to roles. Slots not named stay empty.
func LoadRoles(ctx context.Context, reg *backend.Registry, cfg *config.BackendsConfig, logger *zap.Logger, roles ...backend.Role) error {
	logger = utils.OrNop(logger)
	for _, role := range roles {
		slotCfg, ok := cfg.Slot(string(role))
		if !ok {
			return fmt.Errorf("unknown backend slot %q", role)
		}
		err := reg.Load(ctx, role, Candidates(role, *slotCfg, logger))
		if err == nil {
			continue
		}
		if slotCfg.IsRequired() {
			return fmt.Errorf("required backend slot %s: %w", role, err)
		}
		logger.Warn("Optional backend slot unavailable", zap.String("slot", string(role)), zap.Error(err))
	}
	return nil
}
