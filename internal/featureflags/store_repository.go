package featureflags

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// flagsKey is the hash holding all flags in the primary store.
const flagsKey = "featureflags"

// HashStore is the primary-store surface the repository needs.
type HashStore interface {
	SetFields(ctx context.Context, key string, fields map[string]string) error
	GetFields(ctx context.Context, key string) (map[string]string, error)
	DeleteFields(ctx context.Context, key string, fields ...string) error
}

// StoreRepository persists flags in the primary store so all api and
// worker instances observe the same values.
type StoreRepository struct {
	store HashStore
}

// NewStoreRepository creates a store-backed flag repository.
func NewStoreRepository(store HashStore) *StoreRepository {
	return &StoreRepository{store: store}
}

type storedFlag struct {
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// GetFlag retrieves a single feature flag by key.
func (r *StoreRepository) GetFlag(ctx context.Context, key string) (*Flag, error) {
	flags, err := r.GetAllFlags(ctx)
	if err != nil {
		return nil, err
	}
	flag, ok := flags[key]
	if !ok {
		return nil, ErrFlagNotFound
	}
	return flag, nil
}

// GetAllFlags retrieves all feature flags.
func (r *StoreRepository) GetAllFlags(ctx context.Context) (map[string]*Flag, error) {
	fields, err := r.store.GetFields(ctx, flagsKey)
	if err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	flags := make(map[string]*Flag, len(fields))
	for key, raw := range fields {
		var stored storedFlag
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			// A malformed entry is skipped rather than poisoning every
			// flag read.
			continue
		}
		flags[key] = &Flag{Key: key, Value: stored.Value, UpdatedAt: stored.UpdatedAt}
	}
	return flags, nil
}

// SetFlag creates or updates a feature flag.
func (r *StoreRepository) SetFlag(ctx context.Context, flag *Flag) error {
	return r.SetFlags(ctx, []*Flag{flag})
}

// SetFlags creates or updates multiple feature flags.
func (r *StoreRepository) SetFlags(ctx context.Context, flags []*Flag) error {
	fields := make(map[string]string, len(flags))
	for _, flag := range flags {
		if flag.UpdatedAt.IsZero() {
			flag.UpdatedAt = time.Now()
		}
		payload, err := json.Marshal(storedFlag{Value: flag.Value, UpdatedAt: flag.UpdatedAt})
		if err != nil {
			return fmt.Errorf("encode flag %s: %w", flag.Key, err)
		}
		fields[flag.Key] = string(payload)
	}
	if err := r.store.SetFields(ctx, flagsKey, fields); err != nil {
		return fmt.Errorf("store flags: %w", err)
	}
	return nil
}

// DeleteFlag removes a feature flag by key.
func (r *StoreRepository) DeleteFlag(ctx context.Context, key string) error {
	if err := r.store.DeleteFields(ctx, flagsKey, key); err != nil {
		return fmt.Errorf("delete flag %s: %w", key, err)
	}
	return nil
}
