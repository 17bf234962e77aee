package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/cache"
	"github.com/hyperjump/kanoon/internal/models"
	"github.com/hyperjump/kanoon/internal/vector"
	"github.com/hyperjump/kanoon/pkg/utils"
)

// Ask answers a question from the reference corpus. The most similar passages are
// placed in the prompt and returned as sources.
func (o *Orchestrator) Ask(ctx context.Context, req models.AskRequest) (models.AskResponse, error) {
	if req.TopK == 0 {
		req.TopK = o.cfg.TopK
	}
	return serve(o, &req, func() (models.AskResponse, bool, error) {
		passages, retrieved := o.retrieve(ctx, req.Question, req.TopK)
		prompt := askPrompt(req.Question, buildContext(passages, o.cfg.MaxContextChars))
		out, res := o.backends.Generate(ctx, prompt, o.cfg.AskMaxLength)
		answer := o.guardAnswer(extractAnswer(firstOutput(out), prompt, markerAsk))

		sources := make([]*models.Source, len(passages))
		for i, p := range passages {
			sources[i] = &models.Source{ID: p.ID, Text: p.Text, Score: p.Score}
		}
		return models.AskResponse{Answer: answer, Sources: sources}, retrieved && res.Cacheable(), nil
	})
}

// retrieve returns the top passages. ok is false when retrieval failed, so the
// answer is served but not cached.
func (o *Orchestrator) retrieve(ctx context.Context, query string, topK int) (passages []vector.RetrievalResult, ok bool) {
	if o.retriever == nil {
		return nil, true
	}
	passages, err := o.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		o.logger.Warn("Retrieval failed; answering without context", zap.Error(err))
		return nil, false
	}
	return passages, true
}

// buildContext joins passages in score order, separated by blank lines, and cuts the
// block to maxChars runes.
func buildContext(passages []vector.RetrievalResult, maxChars int) string {
	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return utils.TruncateRunes(strings.Join(texts, "\n\n"), maxChars)
}

// CorpusChanged drops cached corpus-grounded answers after documents were added or
// removed. It returns the number of dropped entries.
func (o *Orchestrator) CorpusChanged() int {
	n := o.cache.Invalidate(cache.KindPrefix(models.KindAsk))
	if n > 0 {
		o.logger.Debug("Dropped cached answers after corpus change", zap.Int("entries", n))
	}
	return n
}
