package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Memora/backend/go/internal/collection_service/analyzer"
	"Memora/backend/go/internal/collection_service/store"
	"Memora/backend/go/internal/models"
	"Memora/backend/go/pkg/logger"
)

// maxSearchCandidates caps how many of the newest collections are offered to the model.
const maxSearchCandidates = 200

// SearchService finds a saved collection from a free-text description.
type SearchService struct {
	collections CollectionStore
	categories  CategoryStore
	matcher     CollectionMatcher
	log         *logger.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(collections CollectionStore, categories CategoryStore, matcher CollectionMatcher, log *logger.Logger) *SearchService {
	if log == nil {
		log = logger.Nop()
	}
	return &SearchService{collections: collections, categories: categories, matcher: matcher, log: log}
}

// Search asks the model which of the user's collections matches query. A result
// with a nil Collection means the model found no good match.
func (s *SearchService) Search(ctx context.Context, userID int64, query string) (*models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	rows, err := s.collections.ListCollections(ctx, userID, maxSearchCandidates,
		models.DetailURL, models.DetailTitle, models.DetailSummary)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoCollections
	}
	candidates := make([]analyzer.Candidate, 0, len(rows))
	owned := make(map[int64]struct{}, len(rows))
	for i := range rows {
		c := &rows[i]
		owned[c.ID] = struct{}{}
		candidates = append(candidates, analyzer.Candidate{
			ID:      c.ID,
			URL:     detailString(c, models.DetailURL),
			Title:   detailString(c, models.DetailTitle),
			Summary: detailString(c, models.DetailSummary),
		})
	}

	m, err := s.matcher.Match(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	res := &models.SearchResult{Query: query, Confidence: m.Confidence, Reason: m.Reason}
	if m.CollectionID == 0 {
		return res, nil
	}
	if _, ok := owned[m.CollectionID]; !ok {
		s.log.Warn(fmt.Sprintf("search picked collection %d, which was not offered", m.CollectionID))
		return res, nil
	}

	c, err := s.collections.GetCollection(ctx, userID, m.CollectionID)
	if errors.Is(err, store.ErrNotFound) {
		// Deleted between the listing and now.
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %d: %w", m.CollectionID, err)
	}
	res.Collection = newCollectionView(c)

	if c.CategoryID != nil && *c.CategoryID != models.UncategorizedID {
		cat, err := s.categories.GetCategory(ctx, userID, *c.CategoryID)
		switch {
		case err == nil:
			res.Category = cat
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("failed to load category %d: %w", *c.CategoryID, err)
		}
	}
	return res, nil
}
