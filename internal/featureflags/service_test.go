package featureflags_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriplan/nutriplan/internal/featureflags"
)

func newTestService(repo featureflags.Repository) *featureflags.Service {
	return featureflags.NewService(featureflags.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		CacheTTL:   time.Minute,
	})
}

func TestService_GetFlagFallsBackToDefault(t *testing.T) {
	svc := newTestService(featureflags.NewInMemoryRepository())

	flag := svc.GetFlag(context.Background(), featureflags.FlagDisableSemanticSearch)
	require.NotNil(t, flag)
	assert.False(t, flag.BoolValue(true))
}

func TestService_GetFlagUnknownKey(t *testing.T) {
	svc := newTestService(featureflags.NewInMemoryRepository())

	flag := svc.GetFlag(context.Background(), "no_such_flag")
	assert.Nil(t, flag)
	assert.False(t, svc.IsEnabled(context.Background(), "no_such_flag"))
}

func TestService_RepositoryValueWinsOverDefault(t *testing.T) {
	repo := featureflags.NewInMemoryRepositoryWithFlags(map[string]*featureflags.Flag{
		featureflags.FlagDisableConditionLookup: {
			Key:   featureflags.FlagDisableConditionLookup,
			Value: true,
		},
	})
	svc := newTestService(repo)

	assert.True(t, svc.IsConditionLookupDisabled(context.Background()))
}

func TestService_SetFlagVisibleImmediately(t *testing.T) {
	svc := newTestService(featureflags.NewInMemoryRepository())

	require.NoError(t, svc.SetFlag(context.Background(), &featureflags.Flag{
		Key:   featureflags.FlagDisablePlanRefresh,
		Value: true,
	}))

	assert.True(t, svc.IsPlanRefreshDisabled(context.Background()))
}

func TestService_GetAllFlagsMergesDefaults(t *testing.T) {
	repo := featureflags.NewInMemoryRepositoryWithFlags(map[string]*featureflags.Flag{
		featureflags.FlagCachedOnlyFoodSelection: {
			Key:   featureflags.FlagCachedOnlyFoodSelection,
			Value: true,
		},
	})
	svc := newTestService(repo)

	flags := svc.GetAllFlags(context.Background())
	assert.Len(t, flags, len(featureflags.DefaultFlags()))
	assert.True(t, flags[featureflags.FlagCachedOnlyFoodSelection].BoolValue(false))
	assert.False(t, flags[featureflags.FlagDisableSemanticSearch].BoolValue(true))
}

func TestService_InvalidateCacheRefreshes(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()
	svc := newTestService(repo)

	assert.False(t, svc.IsSemanticSearchDisabled(context.Background()))

	// Written behind the service's back, only observed after invalidation.
	require.NoError(t, repo.SetFlag(context.Background(), &featureflags.Flag{
		Key:   featureflags.FlagDisableSemanticSearch,
		Value: true,
	}))

	svc.InvalidateCache()
	assert.True(t, svc.IsSemanticSearchDisabled(context.Background()))
}

// fakeHashStore is an in-memory HashStore for the store-backed repository.
type fakeHashStore struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	err    error
}

func newFakeHashStore() *fakeHashStore {
	return &fakeHashStore{hashes: make(map[string]map[string]string)}
}

func (f *fakeHashStore) SetFields(_ context.Context, key string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	hash, ok := f.hashes[key]
	if !ok {
		hash = make(map[string]string)
		f.hashes[key] = hash
	}
	for k, v := range fields {
		hash[k] = v
	}
	return nil
}

func (f *fakeHashStore) GetFields(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeHashStore) DeleteFields(_ context.Context, key string, fields ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, field := range fields {
		delete(f.hashes[key], field)
	}
	return nil
}

func TestStoreRepository_RoundTrip(t *testing.T) {
	repo := featureflags.NewStoreRepository(newFakeHashStore())

	require.NoError(t, repo.SetFlag(context.Background(), &featureflags.Flag{
		Key:   featureflags.FlagDisableSemanticSearch,
		Value: true,
	}))

	flag, err := repo.GetFlag(context.Background(), featureflags.FlagDisableSemanticSearch)
	require.NoError(t, err)
	assert.True(t, flag.BoolValue(false))
	assert.False(t, flag.UpdatedAt.IsZero())

	require.NoError(t, repo.DeleteFlag(context.Background(), featureflags.FlagDisableSemanticSearch))

	_, err = repo.GetFlag(context.Background(), featureflags.FlagDisableSemanticSearch)
	assert.ErrorIs(t, err, featureflags.ErrFlagNotFound)
}

func TestStoreRepository_UnavailableStore(t *testing.T) {
	store := newFakeHashStore()
	store.err = errors.New("store down")
	repo := featureflags.NewStoreRepository(store)

	_, err := repo.GetAllFlags(context.Background())
	require.Error(t, err)

	// The service still serves defaults when the store is unreachable.
	svc := newTestService(repo)
	assert.False(t, svc.IsSemanticSearchDisabled(context.Background()))
}
