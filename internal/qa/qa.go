// Package qa provides question-answering backends: a remote HTTP model server and an
// extractive fallback that picks the context sentence best covering the question.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/kanoon/internal/backend"
	"github.com/hyperjump/kanoon/internal/remote"
)

// RemoteQA calls POST {base}/qa with {"question","context"} and expects {"answer","score"}.
type RemoteQA struct {
	client *remote.Client
}

// NewRemoteQA checks the service health endpoint before accepting it as the qa backend.
func NewRemoteQA(ctx context.Context, client *remote.Client) (*RemoteQA, error) {
	if client == nil {
		return nil, errors.New("remote qa: client is required")
	}
	if err := client.GetJSON(ctx, "/health", nil); err != nil {
		return nil, fmt.Errorf("remote qa health check failed: %w", err)
	}
	return &RemoteQA{client: client}, nil
}

type qaRequest struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

// Answer asks the remote model.
func (q *RemoteQA) Answer(ctx context.Context, question, passage string) (*backend.Answer, error) {
	var out backend.Answer
	if err := q.client.PostJSON(ctx, "/qa", qaRequest{Question: question, Context: passage}, &out); err != nil {
		return nil, fmt.Errorf("remote qa: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, errors.New("remote qa: empty answer")
	}
	return &out, nil
}

// Close is a no-op.
func (q *RemoteQA) Close() error {
	return nil
}
