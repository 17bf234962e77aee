package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/models"
)

// Translate translates text through the configured Translator. Failures are returned
// as errors wrapping ErrTranslationFailed and are never cached.
func (o *Orchestrator) Translate(ctx context.Context, req models.TranslationRequest) (models.TranslationResponse, error) {
	return serve(o, &req, func() (models.TranslationResponse, bool, error) {
		if o.translator == nil {
			return models.TranslationResponse{}, false, ErrNoTranslator
		}
		translated, err := o.translator.Translate(ctx, req.Text, req.DestLang)
		if err != nil {
			o.logger.Warn("Translation failed", zap.String("dest_lang", req.DestLang), zap.Error(err))
			return models.TranslationResponse{}, false, fmt.Errorf("%w: %w", ErrTranslationFailed, err)
		}
		return models.TranslationResponse{
			TranslatedText: translated,
			SourceText:     req.Text,
			TargetLanguage: req.DestLang,
		}, true, nil
	})
}
