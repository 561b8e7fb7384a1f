package pipeline

import (
	"context"
	"fmt"

	"Memora/backend/go/internal/rag/interfaces"
	"Memora/backend/go/internal/rag/schema"
	"Memora/backend/go/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// IndexingPipeline splits documents into chunks and writes them into a
// knowledge base collection.
type IndexingPipeline struct {
	splitter    interfaces.Splitter
	kb          interfaces.KnowledgeBase
	concurrency int
	log         *logger.Logger
}

// NewIndexingPipeline creates a new IndexingPipeline. concurrency bounds how many
// documents are split at the same time.
func NewIndexingPipeline(splitter interfaces.Splitter, kb interfaces.KnowledgeBase, concurrency int, log *logger.Logger) *IndexingPipeline {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &IndexingPipeline{
		splitter:    splitter,
		kb:          kb,
		concurrency: concurrency,
		log:         log,
	}
}

// Run chunks docs and upserts every chunk under a fresh id into collection.
// It returns the number of chunks written.
func (p *IndexingPipeline) Run(ctx context.Context, collection string, docs []*schema.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	// 1. Split each document; results keep the input order.
	perDoc := make([][]*schema.Document, len(docs))
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.concurrency)
	for i, doc := range docs {
		eg.Go(func() error {
			chunks, err := p.splitter.Split(gCtx, []*schema.Document{doc})
			if err != nil {
				return fmt.Errorf("failed to split document %s: %w", doc.ID, err)
			}
			perDoc[i] = chunks
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		p.log.Error(fmt.Sprintf("Failed to split documents for %s: %v", collection, err))
		return 0, err
	}

	var texts, ids []string
	for _, chunks := range perDoc {
		for _, c := range chunks {
			texts = append(texts, c.Text)
			ids = append(ids, c.ID)
		}
	}
	if len(texts) == 0 {
		return 0, nil
	}

	// 2. Upsert.
	if err := p.kb.Upsert(ctx, collection, texts, ids); err != nil {
		p.log.Error(fmt.Sprintf("Failed to upsert %d chunks into %s: %v", len(texts), collection, err))
		return 0, err
	}

	p.log.Info(fmt.Sprintf("Indexed %d documents as %d chunks into %s", len(docs), len(texts), collection))
	return len(texts), nil
}
