package embeddings

import (
	"context"

	"Memora/backend/go/internal/embedding"
	"Memora/backend/go/internal/rag/interfaces"
)

// Adapter adapts any embedding.Embedding provider to the EmbeddingModel interface.
type Adapter struct {
	client embedding.Embedding
}

// NewAdapter creates a new adapter around an embedding provider.
func NewAdapter(client embedding.Embedding) *Adapter {
	return &Adapter{client: client}
}

// Embed calls the underlying client's EmbedBatch method.
func (a *Adapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return a.client.EmbedBatch(ctx, texts)
}

var _ interfaces.EmbeddingModel = (*Adapter)(nil)
