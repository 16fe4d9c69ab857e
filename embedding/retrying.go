package embedding

import (
	"context"

	"github.com/habiliai/memoryd/internal/retry"
)

// RetryingEmbedder retries transient provider failures with backoff and bounds
// every attempt with the policy timeout.
type RetryingEmbedder struct {
	Embedder
	policy retry.Policy
}

func NewRetryingEmbedder(inner Embedder, policy retry.Policy) *RetryingEmbedder {
	return &RetryingEmbedder{Embedder: inner, policy: policy}
}

func (e *RetryingEmbedder) Embed(ctx context.Context, texts ...string) (embeddings [][]float32, err error) {
	err = retry.Do(ctx, e.policy, func(ctx context.Context) error {
		var callErr error
		embeddings, callErr = e.Embedder.Embed(ctx, texts...)
		return callErr
	})
	return
}
