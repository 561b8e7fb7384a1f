package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"Memora/backend/go/internal/models"
	"Memora/backend/go/internal/rag/pipeline"
	"Memora/backend/go/internal/rag/schema"
	"Memora/backend/go/pkg/logger"

	"github.com/panjf2000/ants/v2"
)

// ErrIndexerClosed is returned when a job is submitted after Close.
var ErrIndexerClosed = errors.New("indexer is closed")

// Indexer runs background indexing jobs on a bounded worker pool. Jobs are
// detached from the caller's cancellation and bounded by their own timeout;
// their failures are logged and never returned to the caller.
type Indexer struct {
	pool     *ants.Pool
	pipeline *pipeline.IndexingPipeline
	timeout  time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewIndexer creates an Indexer with the given number of workers.
func NewIndexer(workers int, timeout time.Duration, p *pipeline.IndexingPipeline, log *logger.Logger) (*Indexer, error) {
	x := &Indexer{pipeline: p, timeout: timeout, log: log}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v interface{}) {
		x.log.WithError(models.ErrorInfo{Message: fmt.Sprint(v), Type: "panic"}).Error("background job panicked")
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	x.pool = pool
	return x, nil
}

// Submit schedules task and returns immediately. The task receives a context
// that keeps ctx's values but not its cancellation.
func (x *Indexer) Submit(ctx context.Context, name string, task func(ctx context.Context) error) error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return ErrIndexerClosed
	}
	x.wg.Add(1)
	x.mu.Unlock()

	jobCtx := context.WithoutCancel(ctx)
	// Submitting blocks while every worker is busy, so it happens off the caller's goroutine.
	go func() {
		err := x.pool.Submit(func() {
			defer x.wg.Done()
			x.run(jobCtx, name, task)
		})
		if err != nil {
			x.wg.Done()
			x.log.WithError(models.NewErrorInfo("index_failure", err)).Error(fmt.Sprintf("failed to submit %s", name))
		}
	}()
	return nil
}

func (x *Indexer) run(ctx context.Context, name string, task func(ctx context.Context) error) {
	if x.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}
	log := x.log.WithTrace(logger.TraceIDFromContext(ctx), "")
	start := time.Now()
	if err := task(ctx); err != nil {
		log.WithError(models.NewErrorInfo("index_failure", err)).Error(fmt.Sprintf("background job %s failed", name))
		return
	}
	log.Info(fmt.Sprintf("background job %s finished in %s", name, time.Since(start).Round(time.Millisecond)))
}

// IndexCollection chunks one collection's content into the knowledge base kbName.
func (x *Indexer) IndexCollection(ctx context.Context, kbName string, collectionID int64, content string) error {
	return x.Submit(ctx, "index collection "+strconv.FormatInt(collectionID, 10), func(ctx context.Context) error {
		_, err := x.pipeline.Run(ctx, kbName, []*schema.Document{collectionDocument(collectionID, content)})
		return err
	})
}

// Close stops accepting jobs and waits up to timeout for running ones.
func (x *Indexer) Close(timeout time.Duration) error {
	x.mu.Lock()
	x.closed = true
	x.mu.Unlock()

	done := make(chan struct{})
	go func() {
		x.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		x.pool.Release()
		return nil
	case <-time.After(timeout):
		x.pool.Release()
		return fmt.Errorf("indexer: jobs still running after %s", timeout)
	}
}

func collectionDocument(collectionID int64, content string) *schema.Document {
	return &schema.Document{
		ID:       strconv.FormatInt(collectionID, 10),
		Text:     content,
		Metadata: map[string]interface{}{schema.MetadataKeyCollectionID: collectionID},
	}
}
