// Package translate calls a LibreTranslate-compatible translation service.
package translate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/remote"
)

// LibreTranslator translates through POST {endpoint}/translate.
type LibreTranslator struct {
	client *remote.Client
	apiKey string
}

// Config configures a LibreTranslator.
type Config struct {
	Endpoint  string
	APIKeyEnv string
	Timeout   time.Duration
	Logger    *zap.Logger
}

// New returns a translator for cfg.Endpoint. LibreTranslate takes its key in the body,
// so the key is read here rather than sent as a bearer token.
func New(cfg Config) (*LibreTranslator, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("translate: endpoint is required")
	}
	client, err := remote.NewClient(remote.Config{
		BaseURL:    cfg.Endpoint,
		Timeout:    cfg.Timeout,
		MaxRetries: 1,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	t := &LibreTranslator{client: client}
	if cfg.APIKeyEnv != "" {
		t.apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	return t, nil
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Translate detects the source language and translates text into target.
func (t *LibreTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	req := translateRequest{Q: text, Source: "auto", Target: target, Format: "text", APIKey: t.apiKey}
	var out translateResponse
	if err := t.client.PostJSON(ctx, "/translate", req, &out); err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	if strings.TrimSpace(out.TranslatedText) == "" {
		return "", errors.New("translate: empty translation")
	}
	return out.TranslatedText, nil
}
