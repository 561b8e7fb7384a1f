package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"Memora/backend/go/internal/collection_service/analyzer"
	"Memora/backend/go/internal/models"
	"Memora/backend/go/internal/rag/loaders"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const travelReply = `{"category":"Travel","category_emoji":"✈","tags":["paris","trip"]}`

func parisFetcher() *fakeFetcher {
	return &fakeFetcher{page: &loaders.Page{Content: "Paris is great.", Title: "Paris"}}
}

func detail(t *testing.T, c *models.Collection, key string) interface{} {
	t.Helper()
	for _, d := range c.Details {
		if d.Key == key {
			var v interface{}
			require.NoError(t, json.Unmarshal(d.Value, &v))
			return v
		}
	}
	return nil
}

func TestIngest_EndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{reply: travelReply, fragments: []string{"Par", "is trip."}})

	events, err := runIngestion(ctx, e.ingestor, 1, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, []models.EventType{
		models.EventCollectionCreated,
		models.EventContentFetched,
		models.EventCategoryAnalyzed,
		models.EventSummaryChunk,
		models.EventSummaryChunk,
		models.EventIndexCompleted,
	}, eventTypes(events))

	assert.Equal(t, "Paris is great....", events[1].Data["content"])
	assert.Equal(t, "Travel", events[2].Data["category"])
	assert.Equal(t, []string{"paris", "trip"}, events[2].Data["tags"])
	assert.Equal(t, "Par", events[3].Data["summary"])

	id := events[0].Data["id"].(int64)
	assert.Equal(t, id, events[5].Data["collection_id"])

	c, err := e.store.GetCollection(ctx, 1, id)
	require.NoError(t, err)
	assert.Equal(t, "paris,trip", c.Tags)
	require.NotNil(t, c.CategoryID)
	cat, err := e.store.GetCategory(ctx, 1, *c.CategoryID)
	require.NoError(t, err)
	assert.Equal(t, "Travel", cat.Name)
	assert.Equal(t, "✈", cat.Emoji)

	assert.Equal(t, "Paris trip.", detail(t, c, models.DetailSummary))
	assert.Equal(t, "https://example.com/a", detail(t, c, models.DetailURL))
	assert.Equal(t, "Paris is great.", detail(t, c, models.DetailContent))
	assert.Equal(t, "Paris", detail(t, c, models.DetailTitle))
}

func TestIngest_JSONSummaryIsUnwrapped(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{reply: travelReply, fragments: []string{`{"summary": "Paris`, "", ` trip."}`}})

	events, err := runIngestion(ctx, e.ingestor, 1, "https://example.com/a")
	require.NoError(t, err)
	// The empty heartbeat fragment is forwarded too.
	assert.Len(t, events, 7)

	c, err := e.store.GetCollection(ctx, 1, events[0].Data["id"].(int64))
	require.NoError(t, err)
	assert.Equal(t, "Paris trip.", detail(t, c, models.DetailSummary))
}

func TestIngest_DuplicateURL(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{reply: travelReply, fragments: []string{"x"}})

	first, err := runIngestion(ctx, e.ingestor, 1, "https://example.com/a")
	require.NoError(t, err)
	firstID := first[0].Data["id"].(int64)

	second, err := runIngestion(ctx, e.ingestor, 1, "https://example.com/a")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, models.EventCollectionExists, second[0].Type)
	assert.Equal(t, firstID, second[0].Data["collection_id"])

	var count int64
	require.NoError(t, e.store.DB.Model(&models.Collection{}).Where("user_id = ?", 1).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Another user may collect the same URL.
	other, err := runIngestion(ctx, e.ingestor, 2, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, models.EventCollectionCreated, other[0].Type)
}

func TestIngest_MalformedClassification(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{reply: "This looks like a travel blog to me.", fragments: []string{"Short."}})

	events, err := runIngestion(ctx, e.ingestor, 1, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, models.EventIndexCompleted, events[len(events)-1].Type)
	assert.Equal(t, models.UncategorizedID, events[2].Data["category_id"])
	assert.Empty(t, events[2].Data["tags"])

	c, err := e.store.GetCollection(ctx, 1, events[0].Data["id"].(int64))
	require.NoError(t, err)
	require.NotNil(t, c.CategoryID)
	assert.Equal(t, models.UncategorizedID, *c.CategoryID)
	assert.Empty(t, c.Tags)
	assert.Equal(t, "Short.", detail(t, c, models.DetailSummary))

	cats, err := e.store.ListCategories(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestIngest_FetchFailureKeepsCollection(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, &fakeFetcher{err: loaders.ErrFetchStatus}, &scriptedLLM{reply: travelReply})

	events, err := runIngestion(ctx, e.ingestor, 1, "https://example.com/gone")
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, KindFetch, stageErr.Kind)
	assert.ErrorIs(t, err, loaders.ErrFetchStatus)

	require.Len(t, events, 2)
	last := events[1]
	assert.Equal(t, models.EventIngestionFailed, last.Type)
	assert.Equal(t, string(KindFetch), last.Data["kind"])
	assert.True(t, last.Terminal())

	id := events[0].Data["id"].(int64)
	assert.Equal(t, id, last.Data["collection_id"])
	_, err = e.store.GetCollection(ctx, 1, id)
	assert.NoError(t, err)
}

func TestIngest_SummaryStreamFailure(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{reply: travelReply, fragments: []string{"Par"}, streamErr: errBoom})

	events, err := runIngestion(ctx, e.ingestor, 1, "https://example.com/a")
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, KindSummarization, stageErr.Kind)

	types := eventTypes(events)
	assert.Equal(t, models.EventSummaryChunk, types[len(types)-2])
	assert.Equal(t, models.EventIngestionFailed, types[len(types)-1])

	// Category stage was committed before the failure.
	c, err := e.store.GetCollection(ctx, 1, events[0].Data["id"].(int64))
	require.NoError(t, err)
	assert.Equal(t, "paris,trip", c.Tags)
	assert.Nil(t, detail(t, c, models.DetailSummary))
}

func TestIngest_EmptySummaryFails(t *testing.T) {
	cases := map[string][]string{
		"no fragments":    nil,
		"blank fragments": {"", " "},
		"empty json":      {`{"summary": ""}`},
	}
	for name, fragments := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEnv(t, parisFetcher(), &scriptedLLM{reply: travelReply, fragments: fragments})

			events, err := runIngestion(ctx, e.ingestor, 1, "https://example.com/a")
			var stageErr *StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Equal(t, KindSummarization, stageErr.Kind)
			assert.Equal(t, StageSummary, stageErr.Stage)
			assert.ErrorIs(t, err, analyzer.ErrEmptyResponse)

			types := eventTypes(events)
			assert.Equal(t, models.EventIngestionFailed, types[len(types)-1])
			assert.NotContains(t, types, models.EventIndexCompleted)

			c, err := e.store.GetCollection(ctx, 1, events[0].Data["id"].(int64))
			require.NoError(t, err)
			assert.Nil(t, detail(t, c, models.DetailSummary))
		})
	}
}

func TestIngest_InvalidURL(t *testing.T) {
	e := newEnv(t, parisFetcher(), &scriptedLLM{reply: travelReply})
	for _, u := range []string{"", "example.com", "ftp://example.com/a", "file:///etc/passwd", "http://"} {
		events, err := runIngestion(context.Background(), e.ingestor, 1, u)
		assert.ErrorIs(t, err, ErrInvalidURL, u)
		assert.Empty(t, events)
	}
}

func TestIngest_InFlightGuard(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{reply: travelReply, fragments: []string{"x"}})

	job, err := e.ingestor.Acquire(ctx, 1, "https://example.com/a")
	require.NoError(t, err)

	_, err = e.ingestor.Acquire(ctx, 1, "https://example.com/a")
	assert.ErrorIs(t, err, ErrIngestionInProgress)

	ch := make(chan *models.ProgressEvent, 16)
	require.NoError(t, job.Run(ctx, ch))

	// Released once the job is done.
	again, err := e.ingestor.Acquire(ctx, 1, "https://example.com/a")
	require.NoError(t, err)
	again.release()
}

func TestIngest_ClientCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := newEnv(t, parisFetcher(), &scriptedLLM{reply: travelReply, fragments: []string{"a", "b", "c"}})

	ch := make(chan *models.ProgressEvent)
	errc := make(chan error, 1)
	go func() { errc <- e.ingestor.Run(ctx, 1, "https://example.com/a", ch) }()

	first := <-ch
	assert.Equal(t, models.EventCollectionCreated, first.Type)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("ingestion did not stop after cancellation")
	}
}

func TestIngest_IndexesIntoExistingKnowledgeBase(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, parisFetcher(), &scriptedLLM{reply: travelReply, fragments: []string{"Paris trip."}})

	cat, err := e.store.CreateCategory(ctx, 1, "Travel", "✈")
	require.NoError(t, err)
	require.NoError(t, e.kb.CreateCollection(ctx, "kb_travel"))
	require.NoError(t, e.store.SetKnowledgeBase(ctx, cat.ID, "kb_travel"))

	reqCtx, cancel := context.WithCancel(ctx)
	_, err = runIngestion(reqCtx, e.ingestor, 1, "https://example.com/a")
	require.NoError(t, err)
	// The request is gone; background indexing must still finish.
	cancel()
	require.NoError(t, e.indexer.Close(5*time.Second))

	docs, err := e.kb.Query(ctx, "kb_travel", "paris", 5)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Equal(t, "Paris is great.", docs[0].Text)
}
