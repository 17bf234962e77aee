// Package orchestrator turns validated requests into cached responses. Every entry point
// validates the request, derives a cache key, serves a cached response when one exists and
// otherwise builds a prompt, invokes a backend slot, post-processes the output and applies
// guards and fallbacks. Responses are cached only when every backend result they were
// built from is cacheable.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/backend"
	"github.com/hyperjump/kanoon/internal/cache"
	"github.com/hyperjump/kanoon/internal/config"
	"github.com/hyperjump/kanoon/internal/models"
	"github.com/hyperjump/kanoon/internal/vector"
	"github.com/hyperjump/kanoon/pkg/utils"
)

var (
	// ErrInvalidRequest wraps a *models.ValidationError. Such requests never reach the
	// cache or any backend.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTranslationFailed wraps errors from the Translator.
	ErrTranslationFailed = errors.New("translation failed")
	// ErrNoTranslator is returned by Translate when no Translator is configured.
	ErrNoTranslator = errors.New("no translator configured")
)

// Retriever finds the passages most similar to a query. *vector.Store implements it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]vector.RetrievalResult, error)
	Size() int
}

// Translator translates text into a target language.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Config holds the orchestrator's limits.
type Config struct {
	TopK             int
	MaxContextChars  int
	ChatMaxLength    int
	NoticeMaxLength  int
	RoadmapMaxLength int
	AskMaxLength     int
	MinAnswerLength  int
	MaxAnalysisChars int
}

// NewConfig extracts the orchestrator settings from the application config.
func NewConfig(cfg *config.Config) Config {
	return Config{
		TopK:             cfg.Retrieval.TopK,
		MaxContextChars:  cfg.Retrieval.MaxContextChars,
		ChatMaxLength:    cfg.Generation.ChatMaxLength,
		NoticeMaxLength:  cfg.Generation.NoticeMaxLength,
		RoadmapMaxLength: cfg.Generation.RoadmapMaxLength,
		AskMaxLength:     cfg.Generation.AskMaxLength,
		MinAnswerLength:  cfg.Generation.MinAnswerLength,
		MaxAnalysisChars: cfg.Analysis.MaxInputChars,
	}
}

func (c *Config) applyDefaults() {
	if c.TopK <= 0 {
		c.TopK = 3
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = 2000
	}
	if c.ChatMaxLength <= 0 {
		c.ChatMaxLength = 300
	}
	if c.NoticeMaxLength <= 0 {
		c.NoticeMaxLength = 500
	}
	if c.RoadmapMaxLength <= 0 {
		c.RoadmapMaxLength = 500
	}
	if c.AskMaxLength <= 0 {
		c.AskMaxLength = 400
	}
	if c.MinAnswerLength <= 0 {
		c.MinAnswerLength = 10
	}
	if c.MaxAnalysisChars <= 0 {
		c.MaxAnalysisChars = 4000
	}
}

// Orchestrator serves the application's entry points. It is safe for concurrent use.
type Orchestrator struct {
	backends   *backend.Registry
	cache      *cache.ResponseCache
	keys       *cache.KeyDeriver
	retriever  Retriever
	translator Translator
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = utils.OrNop(logger)
	}
}

// WithTranslator enables Translate.
func WithTranslator(t Translator) Option {
	return func(o *Orchestrator) {
		o.translator = t
	}
}

// WithClock replaces time.Now for timing logs.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an Orchestrator. retriever may be nil, in which case Ask answers without
// reference passages.
func New(registry *backend.Registry, responses *cache.ResponseCache, retriever Retriever, cfg Config, opts ...Option) *Orchestrator {
	cfg.applyDefaults()
	o := &Orchestrator{
		backends:  registry,
		cache:     responses,
		retriever: retriever,
		cfg:       cfg,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.keys = cache.NewKeyDeriver(o.logger)
	return o
}

// serve runs the shared pipeline: validate, look up, compute, store when cacheable.
func serve[T any](o *Orchestrator, req models.Request, compute func() (T, bool, error)) (T, error) {
	var zero T
	if err := req.Validate(); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if !o.backends.Ready() {
		// Slots may still be loading; a fallback computed now must not outlive startup.
		out, _, err := compute()
		return out, err
	}
	key := o.keys.Key(req)
	v, cached, err := o.cache.Do(key, func() (any, bool, error) {
		return compute()
	})
	if err != nil {
		return zero, err
	}
	if cached {
		o.logger.Debug("Cache hit", zap.String("kind", string(req.Kind())))
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cached value for %s has type %T", req.Kind(), v)
	}
	// Stored values are shared with later hits; callers get their own copy.
	if c, ok := any(out).(interface{ Clone() T }); ok {
		out = c.Clone()
	}
	return out, nil
}

// Ready reports whether startup loading has completed. Responses are cached only
// after that.
func (o *Orchestrator) Ready() bool {
	return o.backends.Ready()
}

// HealthReport summarizes readiness for status endpoints.
type HealthReport struct {
	Ready        bool                                 `json:"ready"`
	ModelsLoaded map[backend.Role]bool                `json:"models_loaded"`
	Slots        map[backend.Role]backend.SlotHealth `json:"slots"`
	Cache        cache.Stats                          `json:"cache"`
	Passages     int                                  `json:"passages"`
	Translation  bool                                 `json:"translation"`
}

// Health reports slot state, cache counters and vector store size.
func (o *Orchestrator) Health() HealthReport {
	slots := o.backends.Health()
	loaded := make(map[backend.Role]bool, len(slots))
	for role, h := range slots {
		loaded[role] = h.Loaded
	}
	report := HealthReport{
		Ready:        o.backends.Ready(),
		ModelsLoaded: loaded,
		Slots:        slots,
		Cache:        o.cache.Stats(),
		Translation:  o.translator != nil,
	}
	if o.retriever != nil {
		report.Passages = o.retriever.Size()
	}
	return report
}
