package service

import (
	"context"
	"sync"
	"testing"

	"Memora/backend/go/internal/collection_service/store"
	"Memora/backend/go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_BlankNameIsUncategorized(t *testing.T) {
	r := NewCategoryResolver(nil)
	id, err := r.Resolve(context.Background(), 1, "   ", "✈")
	require.NoError(t, err)
	assert.Equal(t, models.UncategorizedID, id)
}

func TestResolve_ExistingKeepsEmoji(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cat, err := s.CreateCategory(ctx, 1, "Travel", "✈")
	require.NoError(t, err)

	id, err := NewCategoryResolver(s).Resolve(ctx, 1, "Travel", "🌍")
	require.NoError(t, err)
	assert.Equal(t, cat.ID, id)

	got, err := s.GetCategory(ctx, 1, id)
	require.NoError(t, err)
	assert.Equal(t, "✈", got.Emoji)
}

func TestResolve_ConcurrentCallsConverge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := NewCategoryResolver(s)

	const n = 12
	ids := make([]int64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = r.Resolve(ctx, 5, "Travel", "✈")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	list, err := s.ListCategories(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// racingStore loses the insert race once: the first lookup misses, the insert
// conflicts, and the reload finds the winner's row.
type racingStore struct {
	CategoryStore
	finds int
}

func (r *racingStore) FindCategoryByName(_ context.Context, userID int64, name string) (*models.Category, error) {
	r.finds++
	if r.finds == 1 {
		return nil, store.ErrNotFound
	}
	return &models.Category{ID: 77, UserID: userID, Name: name}, nil
}

func (r *racingStore) CreateCategory(context.Context, int64, string, string) (*models.Category, error) {
	return nil, store.ErrDuplicate
}

func TestResolve_DuplicateReloads(t *testing.T) {
	rs := &racingStore{}
	id, err := NewCategoryResolver(rs).Resolve(context.Background(), 1, "Travel", "✈")
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	assert.Equal(t, 2, rs.finds)
}

type brokenStore struct{ CategoryStore }

func (brokenStore) FindCategoryByName(context.Context, int64, string) (*models.Category, error) {
	return nil, errBoom
}

func TestResolve_StorageFailure(t *testing.T) {
	_, err := NewCategoryResolver(brokenStore{}).Resolve(context.Background(), 1, "Travel", "")
	assert.ErrorIs(t, err, errBoom)
}
