package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an ingestion stopped.
type ErrorKind string

const (
	KindFetch          ErrorKind = "fetch_failure"
	KindClassification ErrorKind = "classification_failure"
	KindSummarization  ErrorKind = "summarization_failure"
	KindPersistence    ErrorKind = "persistence_failure"
)

// Stage names, in pipeline order.
const (
	StageDedup           = "dedup"
	StageCreated         = "created"
	StageContentFetched  = "content_fetched"
	StageCategoryAnalyze = "category_analyzed"
	StageSummary         = "summary_streaming"
	StageIndexCompleted  = "index_completed"
)

// StageError is the error returned when an ingestion aborts at a stage.
// Rows committed by earlier stages are kept.
type StageError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s at stage %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageError(kind ErrorKind, stage string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}

var (
	ErrInvalidURL           = errors.New("url must be an absolute http or https URL")
	ErrIngestionInProgress  = errors.New("this url is already being ingested")
	ErrCollectionNotFound   = errors.New("collection not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrKnowledgeBaseExists  = errors.New("category already has a knowledge base")
	ErrKnowledgeBaseMissing = errors.New("category has no knowledge base")
	ErrEmptyQuestion        = errors.New("question must not be empty")
	ErrEmptyQuery           = errors.New("search query must not be empty")
	ErrNoCollections        = errors.New("no collections saved yet")
)
