package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"Memora/backend/go/internal/collection_service/store"
	"Memora/backend/go/internal/models"
)

// CollectionService reads collections back, including partially ingested ones.
type CollectionService struct {
	collections CollectionStore
}

// NewCollectionService creates a CollectionService.
func NewCollectionService(c CollectionStore) *CollectionService {
	return &CollectionService{collections: c}
}

// Get returns the user's collection with its details decoded.
func (s *CollectionService) Get(ctx context.Context, userID, id int64) (*models.CollectionView, error) {
	c, err := s.collections.GetCollection(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %d: %w", id, err)
	}

	return newCollectionView(c), nil
}

func newCollectionView(c *models.Collection) *models.CollectionView {
	view := &models.CollectionView{Collection: *c, Details: make(map[string]interface{}, len(c.Details))}
	for _, d := range c.Details {
		var v interface{}
		if err := json.Unmarshal(d.Value, &v); err != nil {
			v = string(d.Value)
		}
		view.Details[d.Key] = v
	}
	return view
}

// detailString returns the string value of the detail key, or "".
func detailString(c *models.Collection, key string) string {
	for _, d := range c.Details {
		if d.Key != key {
			continue
		}
		var s string
		if json.Unmarshal(d.Value, &s) == nil {
			return s
		}
	}
	return ""
}
