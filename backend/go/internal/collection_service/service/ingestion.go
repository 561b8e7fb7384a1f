package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"Memora/backend/go/internal/collection_service/analyzer"
	"Memora/backend/go/internal/collection_service/publisher"
	"Memora/backend/go/internal/collection_service/store"
	"Memora/backend/go/internal/models"
	"Memora/backend/go/pkg/logger"
)

// IngestorDeps are the collaborators of an Ingestor. Snapshots, Guard and
// Publisher are optional.
type IngestorDeps struct {
	Collections CollectionStore
	Categories  CategoryStore
	Fetcher     Fetcher
	Analyzer    ContentAnalyzer
	Resolver    *CategoryResolver
	Indexer     *Indexer
	Snapshots   store.SnapshotStore
	Guard       store.URLGuard
	Publisher   publisher.Publisher
	Log         *logger.Logger
}

// Ingestor turns a submitted URL into a classified, summarized collection and
// reports each stage as a progress event.
type Ingestor struct {
	deps          IngestorDeps
	previewLength int
}

// NewIngestor creates an Ingestor. previewLength is the number of content runes
// carried by the content_fetched event.
func NewIngestor(deps IngestorDeps, previewLength int) *Ingestor {
	if deps.Snapshots == nil {
		deps.Snapshots = store.NopSnapshotStore{}
	}
	if deps.Guard == nil {
		deps.Guard = store.NewMemoryURLGuard()
	}
	if deps.Publisher == nil {
		deps.Publisher = publisher.Nop{}
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	return &Ingestor{deps: deps, previewLength: previewLength}
}

// ValidateURL accepts only absolute http and https URLs.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidURL
	}
	return nil
}

// Job is one reserved ingestion. Run must be called exactly once.
type Job struct {
	in      *Ingestor
	userID  int64
	url     string
	release func()
	log     *logger.Logger
}

// Acquire validates rawURL and reserves it for userID so that a second
// submission of the same URL is rejected with ErrIngestionInProgress until
// the job finishes.
func (i *Ingestor) Acquire(ctx context.Context, userID int64, rawURL string) (*Job, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	release, ok, err := i.deps.Guard.Acquire(ctx, userID, rawURL)
	if err != nil {
		return nil, stageError(KindPersistence, StageDedup, err)
	}
	if !ok {
		return nil, ErrIngestionInProgress
	}
	return &Job{
		in:      i,
		userID:  userID,
		url:     rawURL,
		release: release,
		log:     i.deps.Log.WithTrace(logger.TraceIDFromContext(ctx), strconv.FormatInt(userID, 10)),
	}, nil
}

// Run acquires rawURL and runs the pipeline, closing events when it returns.
func (i *Ingestor) Run(ctx context.Context, userID int64, rawURL string, events chan<- *models.ProgressEvent) error {
	job, err := i.Acquire(ctx, userID, rawURL)
	if err != nil {
		close(events)
		return err
	}
	return job.Run(ctx, events)
}

// Run executes the pipeline, sending one event per stage on events and closing
// it on return. A duplicate URL ends with collection_exists and a nil error; a
// stage failure ends with ingestion_failed and a *StageError. Cancelling ctx
// stops the pipeline between stages but not background indexing it already scheduled.
func (j *Job) Run(ctx context.Context, events chan<- *models.ProgressEvent) error {
	defer close(events)
	defer j.release()

	d := j.in.deps
	j.log.WithPayload(map[string]interface{}{"url": j.url}).Info("ingestion started")

	// dedup
	existing, err := d.Collections.FindCollectionByURL(ctx, j.userID, j.url)
	switch {
	case err == nil:
		j.log.Info(fmt.Sprintf("url already collected as %d", existing.ID))
		return j.emit(ctx, events, models.EventCollectionExists, map[string]interface{}{
			"collection_id": existing.ID,
			"url":           j.url,
		})
	case !errors.Is(err, store.ErrNotFound):
		return j.fail(ctx, events, stageError(KindPersistence, StageDedup, err), 0)
	}

	// created
	coll, err := d.Collections.CreateCollection(ctx, j.userID)
	if err != nil {
		return j.fail(ctx, events, stageError(KindPersistence, StageCreated, err), 0)
	}
	if err := j.emit(ctx, events, models.EventCollectionCreated, map[string]interface{}{
		"id":         coll.ID,
		"user_id":    coll.UserID,
		"created_at": coll.CreatedAt.Format(time.RFC3339),
		"updated_at": coll.UpdatedAt.Format(time.RFC3339),
	}); err != nil {
		return err
	}

	// content_fetched
	page, err := d.Fetcher.Fetch(ctx, j.url)
	if err != nil {
		return j.fail(ctx, events, stageError(KindFetch, StageContentFetched, err), coll.ID)
	}
	if err := j.persistPage(ctx, coll.ID, page.Title, page.Content); err != nil {
		return j.fail(ctx, events, stageError(KindPersistence, StageContentFetched, err), coll.ID)
	}
	if err := d.Snapshots.Save(ctx, coll.ID, page.Content); err != nil {
		j.log.WithError(models.NewErrorInfo("snapshot_failure", err)).Warn("failed to store content snapshot")
	}
	if err := j.emit(ctx, events, models.EventContentFetched, map[string]interface{}{
		"url":     j.url,
		"content": preview(page.Content, j.in.previewLength),
		"title":   page.Title,
	}); err != nil {
		return err
	}

	// category_analyzed
	known, err := d.Categories.ListCategories(ctx, j.userID)
	if err != nil {
		return j.fail(ctx, events, stageError(KindPersistence, StageCategoryAnalyze, err), coll.ID)
	}
	cls, err := d.Analyzer.Classify(ctx, page.Content, known)
	if err != nil {
		return j.fail(ctx, events, stageError(KindClassification, StageCategoryAnalyze, err), coll.ID)
	}
	categoryID, err := d.Resolver.Resolve(ctx, j.userID, cls.Category, cls.Emoji)
	if err != nil {
		return j.fail(ctx, events, stageError(KindPersistence, StageCategoryAnalyze, err), coll.ID)
	}
	if err := d.Collections.UpdateCollectionCategory(ctx, coll.ID, categoryID, cls.Tags); err != nil {
		return j.fail(ctx, events, stageError(KindPersistence, StageCategoryAnalyze, err), coll.ID)
	}
	j.scheduleIndexing(ctx, coll.ID, categoryID, page.Content)
	if err := j.emit(ctx, events, models.EventCategoryAnalyzed, map[string]interface{}{
		"category":    cls.Category,
		"category_id": categoryID,
		"emoji":       cls.Emoji,
		"tags":        cls.Tags,
	}); err != nil {
		return err
	}

	// summary_streaming
	fragments, err := d.Analyzer.Summarize(ctx, page.Content)
	if err != nil {
		return j.fail(ctx, events, stageError(KindSummarization, StageSummary, err), coll.ID)
	}
	var full strings.Builder
	for f := range fragments {
		if f.Err != nil {
			return j.fail(ctx, events, stageError(KindSummarization, StageSummary, f.Err), coll.ID)
		}
		full.WriteString(f.Text)
		if err := j.emit(ctx, events, models.EventSummaryChunk, map[string]interface{}{"summary": f.Text}); err != nil {
			drain(fragments)
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	summary := analyzer.SummaryText(full.String())
	if strings.TrimSpace(summary) == "" {
		return j.fail(ctx, events, stageError(KindSummarization, StageSummary, analyzer.ErrEmptyResponse), coll.ID)
	}

	// index_completed
	if err := d.Collections.UpsertDetail(ctx, coll.ID, models.DetailSummary, summary); err != nil {
		return j.fail(ctx, events, stageError(KindPersistence, StageIndexCompleted, err), coll.ID)
	}
	j.publish(ctx, coll.ID, categoryID, cls.Tags)
	j.log.Info(fmt.Sprintf("ingestion of collection %d completed", coll.ID))
	return j.emit(ctx, events, models.EventIndexCompleted, map[string]interface{}{"collection_id": coll.ID})
}

func (j *Job) persistPage(ctx context.Context, collectionID int64, title, content string) error {
	c := j.in.deps.Collections
	if err := c.UpsertDetail(ctx, collectionID, models.DetailURL, j.url); err != nil {
		return err
	}
	if err := c.UpsertDetail(ctx, collectionID, models.DetailContent, content); err != nil {
		return err
	}
	if title != "" {
		return c.UpsertDetail(ctx, collectionID, models.DetailTitle, title)
	}
	return nil
}

// scheduleIndexing adds the content to the category's knowledge base, if it has one.
func (j *Job) scheduleIndexing(ctx context.Context, collectionID, categoryID int64, content string) {
	d := j.in.deps
	if categoryID == models.UncategorizedID || d.Indexer == nil {
		return
	}
	cat, err := d.Categories.GetCategory(ctx, j.userID, categoryID)
	if err != nil {
		j.log.WithError(models.NewErrorInfo("index_failure", err)).Warn("failed to load category for indexing")
		return
	}
	if !cat.HasKnowledgeBase() {
		return
	}
	if err := d.Indexer.IndexCollection(ctx, *cat.KnowledgeBaseID, collectionID, content); err != nil {
		j.log.WithError(models.NewErrorInfo("index_failure", err)).Warn("failed to schedule indexing")
	}
}

func (j *Job) publish(ctx context.Context, collectionID, categoryID int64, tags []string) {
	err := j.in.deps.Publisher.Publish(ctx, publisher.TopicCollectionIngested, &models.DomainEvent{
		Type:   publisher.EventCollectionIngested,
		UserID: j.userID,
		Payload: map[string]interface{}{
			"collection_id": collectionID,
			"category_id":   categoryID,
			"url":           j.url,
			"tags":          tags,
		},
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		j.log.WithError(models.NewErrorInfo("publish_failure", err)).Warn("failed to publish ingestion event")
	}
}

// emit sends one event, giving up when ctx is done.
func (j *Job) emit(ctx context.Context, events chan<- *models.ProgressEvent, typ models.EventType, data map[string]interface{}) error {
	select {
	case events <- &models.ProgressEvent{Type: typ, Data: data}:
		return nil
	case <-ctx.Done():
		j.log.Warn(fmt.Sprintf("client went away before %s", typ))
		return ctx.Err()
	}
}

// fail logs err, reports it as the final event and returns it.
func (j *Job) fail(ctx context.Context, events chan<- *models.ProgressEvent, err *StageError, collectionID int64) error {
	j.log.WithError(models.NewErrorInfo(string(err.Kind), err.Err)).
		WithPayload(map[string]interface{}{"stage": err.Stage, "collection_id": collectionID}).
		Error("ingestion failed")

	data := map[string]interface{}{
		"kind":    string(err.Kind),
		"stage":   err.Stage,
		"message": err.Err.Error(),
	}
	if collectionID != 0 {
		data["collection_id"] = collectionID
	}
	_ = j.emit(ctx, events, models.EventIngestionFailed, data)
	return err
}

func preview(content string, n int) string {
	r := []rune(content)
	if n > 0 && len(r) > n {
		r = r[:n]
	}
	return string(r) + "..."
}

func drain(ch <-chan analyzer.Fragment) {
	go func() {
		for range ch {
		}
	}()
}
