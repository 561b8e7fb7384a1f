package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"Memora/backend/go/internal/database/milvus"
	"Memora/backend/go/internal/rag/interfaces"
	"Memora/backend/go/internal/rag/schema"
	"Memora/backend/go/pkg/logger"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusStore keeps one Milvus collection per knowledge base with the fields
// id (primary key), text and embedding.
type MilvusStore struct {
	log      *logger.Logger
	milvus   *milvus.MilvusClient
	client   client.Client
	embedder interfaces.EmbeddingModel

	dimMu     sync.Mutex
	dimension int
}

// NewMilvusStore creates a knowledge base store on top of the shared Milvus client.
// When dimension is zero it is discovered by embedding a probe string on first use.
func NewMilvusStore(milvusClient *milvus.MilvusClient, embedder interfaces.EmbeddingModel, dimension int, log *logger.Logger) (*MilvusStore, error) {
	if milvusClient == nil || milvusClient.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	return &MilvusStore{
		log:       log,
		milvus:    milvusClient,
		client:    milvusClient.Client,
		embedder:  embedder,
		dimension: dimension,
	}, nil
}

func (s *MilvusStore) CreateCollection(ctx context.Context, name string) error {
	has, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if has {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}

	dim, err := s.resolveDimension(ctx)
	if err != nil {
		return err
	}
	s.log.Info(fmt.Sprintf("Creating Milvus collection %s (dim=%d)", name, dim))
	return s.milvus.CreateKnowledgeBaseCollection(ctx, name, dim)
}

func (s *MilvusStore) Upsert(ctx context.Context, name string, documents, ids []string) error {
	if len(documents) != len(ids) {
		return ErrLengthMismatch
	}
	if err := s.ensureExists(ctx, name); err != nil {
		return err
	}
	if len(documents) == 0 {
		return nil
	}

	vectors, err := s.embedder.Embed(ctx, documents)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vectors) != len(documents) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(documents))
	}

	idCol := entity.NewColumnVarChar(milvus.FieldID, ids)
	textCol := entity.NewColumnVarChar(milvus.FieldText, documents)
	embeddingCol := entity.NewColumnFloatVector(milvus.FieldEmbedding, len(vectors[0]), vectors)

	s.log.Info(fmt.Sprintf("Upserting %d documents into Milvus collection: %s", len(documents), name))
	if _, err := s.client.Upsert(ctx, name, "", idCol, textCol, embeddingCol); err != nil {
		s.log.Error(fmt.Sprintf("Failed to upsert data into Milvus: %v", err))
		return fmt.Errorf("failed to upsert data into Milvus: %w", err)
	}
	return nil
}

func (s *MilvusStore) Query(ctx context.Context, name, text string, k int) ([]*schema.Document, error) {
	if err := s.ensureExists(ctx, name); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []*schema.Document{}, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for the query", len(vectors))
	}

	indexCfg := s.milvus.Config.Index
	searchParams, err := milvus.SearchParam(indexCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResults, err := s.client.Search(
		ctx, name, []string{}, "", []string{milvus.FieldText},
		[]entity.Vector{entity.FloatVector(vectors[0])},
		milvus.FieldEmbedding, milvus.MetricType(indexCfg), k, searchParams,
	)
	if err != nil {
		s.log.Error(fmt.Sprintf("Failed to search in Milvus: %v", err))
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	results := make([]*schema.Document, 0, k)
	for _, res := range searchResults {
		findColumn := func(name string) entity.Column {
			for _, field := range res.Fields {
				if field.Name() == name {
					return field
				}
			}
			return nil
		}

		idCol, ok := res.IDs.(*entity.ColumnVarChar)
		if !ok {
			s.log.Warn("Search result has no varchar ids, skipping.")
			continue
		}
		var textData []string
		if textCol, ok := findColumn(milvus.FieldText).(*entity.ColumnVarChar); ok {
			textData = textCol.Data()
		}

		for i := 0; i < res.ResultCount; i++ {
			doc := &schema.Document{
				ID:       idCol.Data()[i],
				Metadata: map[string]interface{}{schema.MetadataKeyScore: res.Scores[i]},
			}
			if i < len(textData) {
				doc.Text = textData[i]
			}
			results = append(results, doc)
		}
	}
	return results, nil
}

func (s *MilvusStore) ensureExists(ctx context.Context, name string) error {
	has, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !has {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return nil
}

func (s *MilvusStore) resolveDimension(ctx context.Context) (int, error) {
	s.dimMu.Lock()
	defer s.dimMu.Unlock()
	if s.dimension > 0 {
		return s.dimension, nil
	}
	probe, err := s.embedder.Embed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, fmt.Errorf("failed to probe embedding dimension: %w", err)
	}
	if len(probe) != 1 || len(probe[0]) == 0 {
		return 0, fmt.Errorf("embedding probe returned no vector")
	}
	s.dimension = len(probe[0])
	return s.dimension, nil
}

var _ interfaces.KnowledgeBase = (*MilvusStore)(nil)
