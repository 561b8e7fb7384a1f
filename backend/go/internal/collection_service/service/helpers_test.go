package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"Memora/backend/go/internal/collection_service/analyzer"
	"Memora/backend/go/internal/collection_service/store"
	"Memora/backend/go/internal/database/mysql"
	"Memora/backend/go/internal/models"
	"Memora/backend/go/internal/rag/loaders"
	"Memora/backend/go/internal/rag/pipeline"
	"Memora/backend/go/internal/rag/splitters"
	"Memora/backend/go/internal/rag/storages/vectorstore"
	"Memora/backend/go/pkg/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.Join(t.TempDir(), "memora.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, mysql.Migrate(db))
	return store.NewStore(db)
}

type fakeFetcher struct {
	page *loaders.Page
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*loaders.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.page
	p.URL = rawURL
	return &p, nil
}

// scriptedLLM answers classification with reply and streams fragments for summaries.
type scriptedLLM struct {
	reply     string
	fragments []string
	streamErr error
}

func textResp(s string) *models.GenerateContentResponse {
	return &models.GenerateContentResponse{Content: []models.Content{{Role: models.SpeakerModel, Parts: []*models.Part{{Text: s}}}}}
}

func (s *scriptedLLM) GenerateContent(context.Context, *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	return textResp(s.reply), nil
}

func (s *scriptedLLM) GenerateContentStream(ctx context.Context, _ *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	ch := make(chan *models.GenerateContentResponse)
	go func() {
		defer close(ch)
		for _, f := range s.fragments {
			select {
			case ch <- textResp(f):
			case <-ctx.Done():
				return
			}
		}
		if s.streamErr != nil {
			select {
			case ch <- &models.GenerateContentResponse{Err: s.streamErr}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

// answerLLM is the plain-text model used by the QA pipeline.
type answerLLM struct {
	calls int
}

func (a *answerLLM) Generate(_ context.Context, system, prompt string) (string, error) {
	a.calls++
	if strings.Contains(system, "Paris") {
		return "You went to Paris.", nil
	}
	return "I don't know.", nil
}

type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vocab := []string{"paris", "rome", "trip", "great"}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(vocab)+1)
		for j, w := range vocab {
			v[j] = float32(strings.Count(strings.ToLower(t), w))
		}
		v[len(vocab)] = 0.1
		out[i] = v
	}
	return out, nil
}

type env struct {
	store    *store.Store
	kb       *vectorstore.MemoryStore
	indexer  *Indexer
	ingestor *Ingestor
	kbs      *KnowledgeBaseService
	qaLLM    *answerLLM
}

func newEnv(t *testing.T, fetcher Fetcher, llm *scriptedLLM) *env {
	t.Helper()
	s := newTestStore(t)
	kb := vectorstore.NewMemoryStore(wordEmbedder{})
	splitter, err := splitters.NewRecursiveSplitter(40, 10)
	require.NoError(t, err)
	log := logger.Nop()
	indexing := pipeline.NewIndexingPipeline(splitter, kb, 2, log)
	indexer, err := NewIndexer(2, 10*time.Second, indexing, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = indexer.Close(5 * time.Second) })

	qaLLM := &answerLLM{}
	e := &env{store: s, kb: kb, indexer: indexer, qaLLM: qaLLM}
	e.ingestor = NewIngestor(IngestorDeps{
		Collections: s,
		Categories:  s,
		Fetcher:     fetcher,
		Analyzer:    analyzer.New(llm, analyzer.Options{MaxContentRunes: 12000}, log),
		Resolver:    NewCategoryResolver(s),
		Indexer:     indexer,
		Log:         log,
	}, 100)
	e.kbs = NewKnowledgeBaseService(KnowledgeBaseDeps{
		Categories:  s,
		Collections: s,
		KB:          kb,
		Indexer:     indexer,
		Indexing:    indexing,
		Retrieval:   pipeline.NewRetrievalPipeline(kb, log),
		QA:          pipeline.NewQAPipeline(qaLLM, log),
		TopK:        5,
		Log:         log,
	})
	return e
}

func runIngestion(ctx context.Context, in *Ingestor, userID int64, rawURL string) ([]*models.ProgressEvent, error) {
	ch := make(chan *models.ProgressEvent)
	errc := make(chan error, 1)
	go func() { errc <- in.Run(ctx, userID, rawURL, ch) }()
	var events []*models.ProgressEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events, <-errc
}

func eventTypes(events []*models.ProgressEvent) []models.EventType {
	out := make([]models.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

var errBoom = errors.New("boom")
