package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/kanoon/internal/backend"
	"github.com/hyperjump/kanoon/internal/remote"
)

// RemoteSummarizer calls POST {base}/summarize with {"text"} and expects {"summary"}.
type RemoteSummarizer struct {
	client *remote.Client
}

// NewRemoteSummarizer checks the service health endpoint before accepting it.
func NewRemoteSummarizer(ctx context.Context, client *remote.Client) (*RemoteSummarizer, error) {
	if client == nil {
		return nil, errors.New("remote summarizer: client is required")
	}
	if err := client.GetJSON(ctx, "/health", nil); err != nil {
		return nil, fmt.Errorf("remote summarizer health check failed: %w", err)
	}
	return &RemoteSummarizer{client: client}, nil
}

// Summarize asks the remote model.
func (s *RemoteSummarizer) Summarize(ctx context.Context, text string) (*backend.Summary, error) {
	var out backend.Summary
	if err := s.client.PostJSON(ctx, "/summarize", map[string]string{"text": text}, &out); err != nil {
		return nil, fmt.Errorf("remote summarizer: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, errors.New("remote summarizer: empty summary")
	}
	return &out, nil
}

// Close is a no-op.
func (s *RemoteSummarizer) Close() error {
	return nil
}
