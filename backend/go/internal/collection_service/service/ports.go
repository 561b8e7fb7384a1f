package service

import (
	"context"

	"Memora/backend/go/internal/collection_service/analyzer"
	"Memora/backend/go/internal/collection_service/store"
	"Memora/backend/go/internal/models"
	"Memora/backend/go/internal/rag/loaders"
)

// Fetcher turns a URL into readable content.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*loaders.Page, error)
}

// ContentAnalyzer classifies and summarizes fetched content.
type ContentAnalyzer interface {
	Classify(ctx context.Context, content string, known []models.Category) (*analyzer.Classification, error)
	Summarize(ctx context.Context, content string) (<-chan analyzer.Fragment, error)
}

// CategoryStore persists categories. Lookups that miss return store.ErrNotFound;
// CreateCategory returns store.ErrDuplicate on a (user, name) conflict.
type CategoryStore interface {
	ListCategories(ctx context.Context, userID int64) ([]models.Category, error)
	FindCategoryByName(ctx context.Context, userID int64, name string) (*models.Category, error)
	CreateCategory(ctx context.Context, userID int64, name, emoji string) (*models.Category, error)
	GetCategory(ctx context.Context, userID, id int64) (*models.Category, error)
	SetKnowledgeBase(ctx context.Context, categoryID int64, name string) error
}

// CollectionStore persists collections and their details.
type CollectionStore interface {
	CreateCollection(ctx context.Context, userID int64) (*models.Collection, error)
	FindCollectionByURL(ctx context.Context, userID int64, rawURL string) (*models.Collection, error)
	UpsertDetail(ctx context.Context, collectionID int64, key string, value interface{}) error
	UpdateCollectionCategory(ctx context.Context, collectionID, categoryID int64, tags []string) error
	GetCollection(ctx context.Context, userID, id int64) (*models.Collection, error)
	ContentForCategory(ctx context.Context, userID, categoryID int64) ([]store.CollectionContent, error)
	ListCollections(ctx context.Context, userID int64, limit int, keys ...string) ([]models.Collection, error)
}

// CollectionMatcher picks the saved collection that best answers a search query.
type CollectionMatcher interface {
	Match(ctx context.Context, query string, candidates []analyzer.Candidate) (*analyzer.Match, error)
}

var (
	_ CategoryStore     = (*store.Store)(nil)
	_ CollectionStore   = (*store.Store)(nil)
	_ Fetcher           = (*loaders.WebLoader)(nil)
	_ ContentAnalyzer   = (*analyzer.Analyzer)(nil)
	_ CollectionMatcher = (*analyzer.Analyzer)(nil)
)
