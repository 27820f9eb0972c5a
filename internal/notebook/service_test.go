package notebook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetMarkup(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockStore) SetMarkup(ctx context.Context, key, markup string) error {
	args := m.Called(ctx, key, markup)
	return args.Error(0)
}

type fixture struct {
	dir     string
	service *Service
	cache   *Cache
}

func newFixture(t *testing.T, store MarkupStore) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EDA.ipynb"), loadSample(t), 0o644))

	catalog, err := NewCatalog(dir, []Entry{
		{Label: "EDA", Slug: "eda", Path: "EDA.ipynb"},
		{Label: "Tuning", Slug: "tuning", Path: "Hyperparameter_Tuning.ipynb"},
	})
	require.NoError(t, err)

	cache := NewCache(store, nil)
	return &fixture{
		dir:     dir,
		service: NewService(catalog, NewConverter("monokai"), cache),
		cache:   cache,
	}
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644))
}

func TestRender_RepeatedSelectionIsIdentical(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.service.RenderSlug(ctx, "eda")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.True(t, filepath.IsAbs(first.Path))
	assert.Contains(t, first.Markup, `class="notebook-container"`)

	second, err := f.service.RenderSlug(ctx, "eda")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Markup, second.Markup)

	// The in-process layer lives as long as the service, even if the file changes.
	f.write(t, "EDA.ipynb", `{"nbformat": 4, "cells": []}`)
	third, err := f.service.RenderSlug(ctx, "eda")
	require.NoError(t, err)
	assert.Equal(t, first.Markup, third.Markup)
	assert.Equal(t, 1, f.cache.Len())
}

func TestRender_NotFoundLeavesCacheAlone(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rendered, err := f.service.RenderSlug(ctx, "eda")
	require.NoError(t, err)

	_, err = f.service.RenderSlug(ctx, "tuning")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, filepath.Join(f.dir, "Hyperparameter_Tuning.ipynb"), notFound.Path)
	wd, _ := os.Getwd()
	assert.Equal(t, wd, notFound.WorkDir)
	assert.Contains(t, notFound.Error(), "Hyperparameter_Tuning.ipynb")
	assert.Equal(t, 1, f.cache.Len())

	again, err := f.service.RenderSlug(ctx, "eda")
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, rendered.Markup, again.Markup)
}

func TestRender_DirectoryIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.Mkdir(filepath.Join(f.dir, "Hyperparameter_Tuning.ipynb"), 0o755))

	_, err := f.service.RenderSlug(context.Background(), "tuning")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRender_ConversionErrorIsNotCached(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.write(t, "Hyperparameter_Tuning.ipynb", `{"cells": [`)

	_, err := f.service.RenderSlug(ctx, "tuning")
	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, filepath.Join(f.dir, "Hyperparameter_Tuning.ipynb"), convErr.Path)
	assert.Zero(t, f.cache.Len())

	// Other entries stay usable.
	_, err = f.service.RenderSlug(ctx, "eda")
	require.NoError(t, err)

	f.write(t, "Hyperparameter_Tuning.ipynb", `{"nbformat": 4, "cells": [{"cell_type": "markdown", "source": "fixed"}]}`)
	page, err := f.service.RenderSlug(ctx, "tuning")
	require.NoError(t, err)
	assert.False(t, page.Cached)
	assert.Contains(t, page.Markup, "fixed")
}

func TestRender_UnknownSlug(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.service.RenderSlug(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownEntry)
}

func TestRender_Concurrent(t *testing.T) {
	f := newFixture(t, nil)

	const workers = 12
	results := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			page, err := f.service.RenderSlug(context.Background(), "eda")
			errs[i] = err
			if err == nil {
				results[i] = page.Markup
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, 1, f.cache.Len())
}

func TestRender_SharedCacheHit(t *testing.T) {
	store := new(mockStore)
	store.On("GetMarkup", mock.Anything, mock.Anything).Return(`<div class="notebook-container">shared</div>`, true, nil)

	f := newFixture(t, store)
	// Unparsable on disk: the shared copy must be served without converting.
	f.write(t, "EDA.ipynb", "garbage")

	page, err := f.service.RenderSlug(context.Background(), "eda")
	require.NoError(t, err)
	assert.True(t, page.Cached)
	assert.Equal(t, `<div class="notebook-container">shared</div>`, page.Markup)
	store.AssertNotCalled(t, "SetMarkup", mock.Anything, mock.Anything, mock.Anything)
}

func TestRender_SharedCacheMissStores(t *testing.T) {
	store := new(mockStore)
	store.On("GetMarkup", mock.Anything, mock.Anything).Return("", false, nil).Once()
	store.On("SetMarkup", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	f := newFixture(t, store)
	ctx := context.Background()

	page, err := f.service.RenderSlug(ctx, "eda")
	require.NoError(t, err)

	store.AssertExpectations(t)
	key := store.Calls[0].Arguments.String(1)
	store.AssertCalled(t, "SetMarkup", mock.Anything, key, page.Markup)

	// Served from process memory afterwards.
	_, err = f.service.RenderSlug(ctx, "eda")
	require.NoError(t, err)
	store.AssertNumberOfCalls(t, "GetMarkup", 1)
}

func TestRender_SharedCacheFailureFallsBack(t *testing.T) {
	store := new(mockStore)
	store.On("GetMarkup", mock.Anything, mock.Anything).Return("", false, errors.New("connection refused"))
	store.On("SetMarkup", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	f := newFixture(t, store)
	page, err := f.service.RenderSlug(context.Background(), "eda")
	require.NoError(t, err)
	assert.Contains(t, page.Markup, "Exploratory Data Analysis")
	assert.Equal(t, 1, f.cache.Len())
}

func TestStatuses(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.service.RenderSlug(context.Background(), "eda")
	require.NoError(t, err)

	statuses := f.service.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "eda", statuses[0].Slug)
	assert.True(t, statuses[0].Available)
	assert.True(t, statuses[0].Cached)
	assert.False(t, statuses[1].Available)
	assert.False(t, statuses[1].Cached)
}
