package pipeline

import (
	"context"
	"fmt"
	"strings"

	"Memora/backend/go/internal/rag/interfaces"
	"Memora/backend/go/internal/rag/schema"
	"Memora/backend/go/pkg/logger"
)

// RetrievalPipeline fetches the chunks of a knowledge base most similar to a query.
type RetrievalPipeline struct {
	kb  interfaces.KnowledgeBase
	log *logger.Logger
}

// NewRetrievalPipeline creates a new RetrievalPipeline.
func NewRetrievalPipeline(kb interfaces.KnowledgeBase, log *logger.Logger) *RetrievalPipeline {
	return &RetrievalPipeline{kb: kb, log: log}
}

// Run returns at most topK non-blank chunks of collection ordered by similarity to query.
func (p *RetrievalPipeline) Run(ctx context.Context, collection, query string, topK int) ([]*schema.Document, error) {
	docs, err := p.kb.Query(ctx, collection, query, topK)
	if err != nil {
		p.log.Error(fmt.Sprintf("Failed to query knowledge base %s: %v", collection, err))
		return nil, err
	}

	out := make([]*schema.Document, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		out = append(out, d)
	}
	p.log.Debug(fmt.Sprintf("Retrieved %d chunks from %s", len(out), collection))
	return out, nil
}
