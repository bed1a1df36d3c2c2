package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/config"
	"github.com/insidelm/backend/internal/core"
)

// QueryEmbedder embeds a single user query and applies the configured
// failure policy: strict surfaces embedding failures as Failed; degraded
// proceeds with a zero vector (which matches nothing well) so the chat flow
// stays available.
type QueryEmbedder struct {
	provider core.EmbeddingProvider
	dim      int
	fallback string
	logger   *zap.Logger
}

func NewQueryEmbedder(provider core.EmbeddingProvider, dim int, fallback string, logger *zap.Logger) *QueryEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryEmbedder{provider: provider, dim: dim, fallback: fallback, logger: logger}
}

func (q *QueryEmbedder) Embed(ctx context.Context, query string) EmbedResult {
	vecs, err := q.provider.EmbedTexts(ctx, []string{query})
	if err == nil && len(vecs) == 1 {
		return EmbedResult{Outcome: OutcomeOK, Vector: vecs[0]}
	}
	if err == nil {
		err = fmt.Errorf("expected 1 vector, got %d", len(vecs))
	}

	q.logger.Error("query embedding failed", zap.Error(err))
	if q.fallback == config.EmbedFallbackDegraded {
		return EmbedResult{
			Outcome: OutcomeDegraded,
			Vector:  make([]float32, q.dim),
			Reason:  "query embedding failed, using zero vector",
			Err:     err,
		}
	}
	return EmbedResult{Outcome: OutcomeFailed, Err: err}
}
