package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"Memora/backend/go/internal/collection_service/publisher"
	"Memora/backend/go/internal/collection_service/store"
	"Memora/backend/go/internal/models"
	"Memora/backend/go/internal/rag/interfaces"
	"Memora/backend/go/internal/rag/pipeline"
	"Memora/backend/go/internal/rag/schema"
	"Memora/backend/go/pkg/logger"

	"github.com/google/uuid"
)

// NewKnowledgeBaseName returns a fresh vector collection name. Milvus only
// admits [A-Za-z0-9_] in collection names.
func NewKnowledgeBaseName() string {
	return "kb_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// KnowledgeBaseService builds and queries per-category knowledge bases.
type KnowledgeBaseService struct {
	categories  CategoryStore
	collections CollectionStore
	kb          interfaces.KnowledgeBase
	indexer     *Indexer
	indexing    *pipeline.IndexingPipeline
	retrieval   *pipeline.RetrievalPipeline
	qa          *pipeline.QAPipeline
	publisher   publisher.Publisher
	topK        int
	log         *logger.Logger
}

// KnowledgeBaseDeps are the collaborators of a KnowledgeBaseService.
type KnowledgeBaseDeps struct {
	Categories  CategoryStore
	Collections CollectionStore
	KB          interfaces.KnowledgeBase
	Indexer     *Indexer
	Indexing    *pipeline.IndexingPipeline
	Retrieval   *pipeline.RetrievalPipeline
	QA          *pipeline.QAPipeline
	Publisher   publisher.Publisher
	TopK        int
	Log         *logger.Logger
}

// NewKnowledgeBaseService creates a KnowledgeBaseService.
func NewKnowledgeBaseService(d KnowledgeBaseDeps) *KnowledgeBaseService {
	if d.Publisher == nil {
		d.Publisher = publisher.Nop{}
	}
	if d.TopK <= 0 {
		d.TopK = 5
	}
	return &KnowledgeBaseService{
		categories:  d.Categories,
		collections: d.Collections,
		kb:          d.KB,
		indexer:     d.Indexer,
		indexing:    d.Indexing,
		retrieval:   d.Retrieval,
		qa:          d.QA,
		publisher:   d.Publisher,
		topK:        d.TopK,
		log:         d.Log,
	}
}

// Create starts building a knowledge base from every collection in the category
// and returns its name immediately. The build runs in the background and stamps
// the category only when it finishes.
func (s *KnowledgeBaseService) Create(ctx context.Context, userID, categoryID int64) (string, error) {
	cat, err := s.category(ctx, userID, categoryID)
	if err != nil {
		return "", err
	}
	if cat.HasKnowledgeBase() {
		return "", ErrKnowledgeBaseExists
	}

	name := NewKnowledgeBaseName()
	err = s.indexer.Submit(ctx, "create knowledge base "+name, func(jobCtx context.Context) error {
		return s.build(jobCtx, userID, cat.ID, name)
	})
	if err != nil {
		return "", err
	}
	s.log.Info(fmt.Sprintf("scheduled knowledge base %s for category %d", name, cat.ID))
	return name, nil
}

func (s *KnowledgeBaseService) build(ctx context.Context, userID, categoryID int64, name string) error {
	if err := s.kb.CreateCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to create vector collection %s: %w", name, err)
	}

	contents, err := s.collections.ContentForCategory(ctx, userID, categoryID)
	if err != nil {
		return fmt.Errorf("failed to load category content: %w", err)
	}
	indexed := make(map[int64]struct{}, len(contents))
	docs := newDocuments(contents, indexed)
	chunks, err := s.indexing.Run(ctx, name, docs)
	if err != nil {
		return err
	}

	if err := s.categories.SetKnowledgeBase(ctx, categoryID, name); err != nil {
		if errors.Is(err, store.ErrKnowledgeBaseExists) {
			return fmt.Errorf("category %d was stamped concurrently, vector collection %s is orphaned: %w", categoryID, name, err)
		}
		return fmt.Errorf("failed to stamp knowledge base on category %d: %w", categoryID, err)
	}

	// Collections classified during the build saw no knowledge base on the category.
	contents, err = s.collections.ContentForCategory(ctx, userID, categoryID)
	if err != nil {
		return fmt.Errorf("failed to rescan category content: %w", err)
	}
	if late := newDocuments(contents, indexed); len(late) > 0 {
		n, err := s.indexing.Run(ctx, name, late)
		if err != nil {
			return err
		}
		s.log.Info(fmt.Sprintf("indexed %d collections added to category %d during the build of %s", len(late), categoryID, name))
		docs = append(docs, late...)
		chunks += n
	}

	err = s.publisher.Publish(ctx, publisher.TopicKnowledgeBaseCreated, &models.DomainEvent{
		Type:   publisher.EventKnowledgeBaseCreated,
		UserID: userID,
		Payload: map[string]interface{}{
			"category_id":       categoryID,
			"knowledge_base_id": name,
			"documents":         len(docs),
			"chunks":            chunks,
		},
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		s.log.WithError(models.NewErrorInfo("publish_failure", err)).Warn("failed to publish knowledge base event")
	}
	return nil
}

// newDocuments converts the contents not yet in seen and marks them seen.
func newDocuments(contents []store.CollectionContent, seen map[int64]struct{}) []*schema.Document {
	var docs []*schema.Document
	for _, c := range contents {
		if _, ok := seen[c.CollectionID]; ok {
			continue
		}
		seen[c.CollectionID] = struct{}{}
		docs = append(docs, collectionDocument(c.CollectionID, c.Content))
	}
	return docs
}

// Query answers question from the category's knowledge base.
func (s *KnowledgeBaseService) Query(ctx context.Context, userID, categoryID int64, question string) (*models.KnowledgeBaseAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	cat, err := s.category(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}
	if !cat.HasKnowledgeBase() {
		return nil, ErrKnowledgeBaseMissing
	}

	docs, err := s.retrieval.Run(ctx, *cat.KnowledgeBaseID, question, s.topK)
	if err != nil {
		return nil, err
	}
	answer, err := s.qa.Run(ctx, question, docs)
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, d.Text)
	}
	return &models.KnowledgeBaseAnswer{Answer: answer, Sources: sources}, nil
}

func (s *KnowledgeBaseService) category(ctx context.Context, userID, categoryID int64) (*models.Category, error) {
	cat, err := s.categories.GetCategory(ctx, userID, categoryID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load category %s: %w", strconv.FormatInt(categoryID, 10), err)
	}
	return cat, nil
}
