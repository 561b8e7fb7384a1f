package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Memora/backend/go/internal/collection_service/store"
	"Memora/backend/go/internal/models"
)

// CategoryResolver maps a classifier's category name to a category id, creating
// the category on first use.
type CategoryResolver struct {
	store CategoryStore
}

// NewCategoryResolver creates a CategoryResolver.
func NewCategoryResolver(s CategoryStore) *CategoryResolver {
	return &CategoryResolver{store: s}
}

// Resolve returns the id of the user's category called name. A blank name yields
// models.UncategorizedID without touching storage. When a concurrent resolve wins
// the insert, the existing row is reloaded and its id returned.
func (r *CategoryResolver) Resolve(ctx context.Context, userID int64, name, emoji string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.UncategorizedID, nil
	}

	existing, err := r.store.FindCategoryByName(ctx, userID, name)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("failed to look up category %q: %w", name, err)
	}

	created, err := r.store.CreateCategory(ctx, userID, name, strings.TrimSpace(emoji))
	if err == nil {
		return created.ID, nil
	}
	if !errors.Is(err, store.ErrDuplicate) {
		return 0, fmt.Errorf("failed to create category %q: %w", name, err)
	}

	existing, err = r.store.FindCategoryByName(ctx, userID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to reload category %q after conflict: %w", name, err)
	}
	return existing.ID, nil
}
