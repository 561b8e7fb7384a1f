package service

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"Memora/backend/go/internal/collection_service/store"
	"Memora/backend/go/internal/models"
	"Memora/backend/go/internal/rag/pipeline"
	"Memora/backend/go/internal/rag/splitters"
	"Memora/backend/go/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTravel(t *testing.T, e *env) *models.Category {
	t.Helper()
	ctx := context.Background()
	cat, err := e.store.CreateCategory(ctx, 1, "Travel", "✈")
	require.NoError(t, err)
	for _, content := range []string{"We spent a week in Paris. The trip was great.", "Rome has wonderful food."} {
		c, err := e.store.CreateCollection(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, e.store.UpsertDetail(ctx, c.ID, models.DetailContent, content))
		require.NoError(t, e.store.UpdateCollectionCategory(ctx, c.ID, cat.ID, nil))
	}
	return cat
}

func TestNewKnowledgeBaseName(t *testing.T) {
	name := NewKnowledgeBaseName()
	assert.Regexp(t, regexp.MustCompile(`^kb_[0-9a-f]{32}$`), name)
	assert.NotEqual(t, name, NewKnowledgeBaseName())
}

func TestKnowledgeBase_CreateAndQuery(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{})
	cat := seedTravel(t, e)

	name, err := e.kbs.Create(ctx, 1, cat.ID)
	require.NoError(t, err)
	require.NoError(t, e.indexer.Close(5*time.Second))

	got, err := e.store.GetCategory(ctx, 1, cat.ID)
	require.NoError(t, err)
	require.True(t, got.HasKnowledgeBase())
	assert.Equal(t, name, *got.KnowledgeBaseID)

	answer, err := e.kbs.Query(ctx, 1, cat.ID, "Where in Paris did I spend a week?")
	require.NoError(t, err)
	assert.Equal(t, "You went to Paris.", answer.Answer)
	assert.NotEmpty(t, answer.Sources)
	assert.Contains(t, answer.Sources[0], "Paris")
}

func TestKnowledgeBase_CreateRejectsSecondBase(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{})
	cat := seedTravel(t, e)
	require.NoError(t, e.store.SetKnowledgeBase(ctx, cat.ID, "kb_existing"))

	_, err := e.kbs.Create(ctx, 1, cat.ID)
	assert.ErrorIs(t, err, ErrKnowledgeBaseExists)
}

func TestKnowledgeBase_UnknownCategory(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{})
	cat := seedTravel(t, e)

	_, err := e.kbs.Create(ctx, 1, 9999)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	// Categories of other users are not visible.
	_, err = e.kbs.Create(ctx, 2, cat.ID)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestKnowledgeBase_QueryWithoutBase(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{})
	cat := seedTravel(t, e)

	_, err := e.kbs.Query(ctx, 1, cat.ID, "anything")
	assert.ErrorIs(t, err, ErrKnowledgeBaseMissing)
	_, err = e.kbs.Query(ctx, 1, cat.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestKnowledgeBase_QueryEmptyBaseSkipsModel(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{})
	cat, err := e.store.CreateCategory(ctx, 1, "Empty", "")
	require.NoError(t, err)
	require.NoError(t, e.kb.CreateCollection(ctx, "kb_empty"))
	require.NoError(t, e.store.SetKnowledgeBase(ctx, cat.ID, "kb_empty"))

	answer, err := e.kbs.Query(ctx, 1, cat.ID, "anything?")
	require.NoError(t, err)
	assert.Equal(t, pipeline.NoDocumentsAnswer, answer.Answer)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, e.qaLLM.calls)
}

func TestCollectionService_Get(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{reply: travelReply, fragments: []string{"Paris trip."}})
	events, err := runIngestion(ctx, e.ingestor, 1, "https://example.com/a")
	require.NoError(t, err)
	id := events[0].Data["id"].(int64)

	svc := NewCollectionService(e.store)
	view, err := svc.Get(ctx, 1, id)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", view.Details[models.DetailURL])
	assert.Equal(t, "Paris trip.", view.Details[models.DetailSummary])

	_, err = svc.Get(ctx, 2, id)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

// lateArrivalStore adds a collection to the category right after the first
// content scan, as a concurrent ingestion would.
type lateArrivalStore struct {
	*store.Store
	t          *testing.T
	categoryID int64
	scans      int
}

func (s *lateArrivalStore) ContentForCategory(ctx context.Context, userID, categoryID int64) ([]store.CollectionContent, error) {
	out, err := s.Store.ContentForCategory(ctx, userID, categoryID)
	s.scans++
	if s.scans == 1 {
		c, err := s.Store.CreateCollection(ctx, userID)
		require.NoError(s.t, err)
		require.NoError(s.t, s.Store.UpsertDetail(ctx, c.ID, models.DetailContent, "Lisbon has steep hills."))
		require.NoError(s.t, s.Store.UpdateCollectionCategory(ctx, c.ID, s.categoryID, nil))
	}
	return out, err
}

func TestKnowledgeBase_BuildIndexesLateArrivals(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{})
	cat := seedTravel(t, e)
	late := &lateArrivalStore{Store: e.store, t: t, categoryID: cat.ID}

	log := logger.Nop()
	splitter, err := splitters.NewRecursiveSplitter(40, 10)
	require.NoError(t, err)
	kbs := NewKnowledgeBaseService(KnowledgeBaseDeps{
		Categories:  e.store,
		Collections: late,
		KB:          e.kb,
		Indexer:     e.indexer,
		Indexing:    pipeline.NewIndexingPipeline(splitter, e.kb, 2, log),
		Retrieval:   pipeline.NewRetrievalPipeline(e.kb, log),
		QA:          pipeline.NewQAPipeline(e.qaLLM, log),
		Log:         log,
	})

	name, err := kbs.Create(ctx, 1, cat.ID)
	require.NoError(t, err)
	require.NoError(t, e.indexer.Close(5*time.Second))
	assert.Equal(t, 2, late.scans)

	docs, err := e.kb.Query(ctx, name, "Lisbon", 50)
	require.NoError(t, err)
	var texts []string
	for _, d := range docs {
		texts = append(texts, d.Text)
	}
	assert.Contains(t, strings.Join(texts, " "), "Lisbon")
	assert.Contains(t, strings.Join(texts, " "), "Paris")
}
