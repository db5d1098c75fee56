package record

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Primary is the key-value store interface the repository writes through.
// The Redis client in internal/store satisfies it.
type Primary interface {
	SetFields(ctx context.Context, key string, fields map[string]string) error
	GetFields(ctx context.Context, key string) (map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	AddToSet(ctx context.Context, key string, members ...string) error
	RemoveFromSet(ctx context.Context, key string, members ...string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
}

// Secondary is the semantic search index interface. It is best-effort:
// every error from it is absorbed by the repository.
type Secondary interface {
	// Upsert stores or replaces a document with metadata under id.
	Upsert(ctx context.Context, collection, id string, metadata map[string]string, document string) error

	// Query returns ranked matches for a free-text query.
	Query(ctx context.Context, collection, query string, limit int) ([]Match, error)
}

// Match is one ranked search result from the secondary index.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// RepositoryConfig holds configuration for the dual-store repository.
type RepositoryConfig struct {
	// Primary is the authoritative store. Required.
	Primary Primary

	// Secondary is the search index. Optional; when nil, mirroring is
	// skipped and Search always returns empty results.
	Secondary Secondary

	// MirrorTimeout bounds each mirrored write (default 10s). The mirror
	// runs detached from the caller's context so a finished request does
	// not cancel it.
	MirrorTimeout time.Duration

	// SearchLimit is the maximum number of search results (default 5).
	SearchLimit int

	// Logger for repository operations.
	Logger zerolog.Logger
}

// Repository provides dual-store record persistence. The primary write
// alone determines an operation's outcome; the secondary copy may lag,
// fail, or be entirely absent without affecting callers.
type Repository struct {
	primary       Primary
	secondary     Secondary
	mirrorTimeout time.Duration
	searchLimit   int
	logger        zerolog.Logger

	mirrors sync.WaitGroup
}

// NewRepository creates a dual-store repository.
func NewRepository(cfg RepositoryConfig) *Repository {
	timeout := cfg.MirrorTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	limit := cfg.SearchLimit
	if limit == 0 {
		limit = 5
	}
	return &Repository{
		primary:       cfg.Primary,
		secondary:     cfg.Secondary,
		mirrorTimeout: timeout,
		searchLimit:   limit,
		logger:        cfg.Logger,
	}
}

// Create stores a new record of the given kind with a generated id.
func (r *Repository) Create(ctx context.Context, kind string, fields map[string]any) (*Record, error) {
	return r.createRecord(ctx, kind, fields, "")
}

// CreateOwned stores a new record and adds its id to the owner's
// association set in the same logical operation, so membership tracks the
// owned record's lifecycle.
func (r *Repository) CreateOwned(ctx context.Context, kind string, fields map[string]any, ownerSetKey string) (*Record, error) {
	return r.createRecord(ctx, kind, fields, ownerSetKey)
}

func (r *Repository) createRecord(ctx context.Context, kind string, fields map[string]any, ownerSetKey string) (*Record, error) {
	now := time.Now().UTC()
	rec := &Record{
		ID:        uuid.New().String(),
		Kind:      kind,
		Fields:    fields,
		CreatedAt: now,
	}

	hash := encodeFields(fields)
	hash[fieldID] = rec.ID
	hash[fieldCreatedAt] = now.Format(time.RFC3339Nano)

	if err := r.primary.SetFields(ctx, primaryKey(kind, rec.ID), hash); err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}

	// Kind membership backs enumeration (worker backfill); it must track
	// the record's lifecycle exactly like owner membership does.
	if err := r.primary.AddToSet(ctx, kindSetKey(kind), rec.ID); err != nil {
		_ = r.primary.Delete(ctx, primaryKey(kind, rec.ID))
		return nil, fmt.Errorf("index %s: %w", kind, err)
	}

	if ownerSetKey != "" {
		if err := r.primary.AddToSet(ctx, ownerSetKey, rec.ID); err != nil {
			// Roll the orphaned hash back so membership and record stay
			// consistent within this operation.
			_ = r.primary.Delete(ctx, primaryKey(kind, rec.ID))
			return nil, fmt.Errorf("link %s to %s: %w", kind, ownerSetKey, err)
		}
	}

	r.mirror(kind, rec.ID, hash, fields)
	return rec, nil
}

// Get reads a record from the primary store only; the secondary index is
// never consulted for point lookups. Returns ErrNotFound for missing ids.
func (r *Repository) Get(ctx context.Context, kind, id string) (*Record, error) {
	hash, err := r.primary.GetFields(ctx, primaryKey(kind, id))
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", kind, id, err)
	}
	if len(hash) == 0 {
		return nil, ErrNotFound
	}
	return recordFromHash(kind, hash), nil
}

// Update replaces the stored fields of an existing record. Returns
// ErrNotFound when the id does not exist; updates never create records.
func (r *Repository) Update(ctx context.Context, kind, id string, fields map[string]any) (*Record, error) {
	key := primaryKey(kind, id)

	exists, err := r.primary.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", kind, id, err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	hash := encodeFields(fields)
	hash[fieldID] = id
	hash[fieldUpdatedAt] = now.Format(time.RFC3339Nano)

	if err := r.primary.SetFields(ctx, key, hash); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", kind, id, err)
	}

	r.mirror(kind, id, hash, fields)

	return &Record{ID: id, Kind: kind, Fields: fields, UpdatedAt: now}, nil
}

// Delete removes a record and, when ownerSetKey is given, its membership
// in the owner's association set.
func (r *Repository) Delete(ctx context.Context, kind, id, ownerSetKey string) error {
	if err := r.primary.Delete(ctx, primaryKey(kind, id)); err != nil {
		return fmt.Errorf("delete %s/%s: %w", kind, id, err)
	}
	if err := r.primary.RemoveFromSet(ctx, kindSetKey(kind), id); err != nil {
		return fmt.Errorf("unindex %s/%s: %w", kind, id, err)
	}
	if ownerSetKey != "" {
		if err := r.primary.RemoveFromSet(ctx, ownerSetKey, id); err != nil {
			return fmt.Errorf("unlink %s/%s: %w", kind, id, err)
		}
	}
	return nil
}

// ListOwned loads all records whose ids are members of the owner's
// association set. Ids whose hash has vanished are skipped.
func (r *Repository) ListOwned(ctx context.Context, kind, ownerSetKey string) ([]*Record, error) {
	ids, err := r.primary.SetMembers(ctx, ownerSetKey)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", ownerSetKey, err)
	}

	records := make([]*Record, 0, len(ids))
	for _, id := range ids {
		hash, err := r.primary.GetFields(ctx, primaryKey(kind, id))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", ownerSetKey, err)
		}
		if len(hash) == 0 {
			continue
		}
		records = append(records, recordFromHash(kind, hash))
	}
	return records, nil
}

// ListKind loads every record of a kind via its kind membership set. Ids
// whose hash has vanished are skipped.
func (r *Repository) ListKind(ctx context.Context, kind string) ([]*Record, error) {
	ids, err := r.primary.SetMembers(ctx, kindSetKey(kind))
	if err != nil {
		return nil, fmt.Errorf("list kind %s: %w", kind, err)
	}

	records := make([]*Record, 0, len(ids))
	for _, id := range ids {
		hash, err := r.primary.GetFields(ctx, primaryKey(kind, id))
		if err != nil {
			return nil, fmt.Errorf("list kind %s: %w", kind, err)
		}
		if len(hash) == 0 {
			continue
		}
		records = append(records, recordFromHash(kind, hash))
	}
	return records, nil
}

// ReindexStats summarizes one reindex pass over a kind.
type ReindexStats struct {
	Upserted int
	Deleted  int
	Failed   int
}

// maintainableSecondary is the extended index surface reindexing needs.
// The pgvector index implements it; a plain Secondary cannot be repaired.
type maintainableSecondary interface {
	Secondary
	ListIDs(ctx context.Context, collection string) ([]string, error)
	Delete(ctx context.Context, collection, id string) error
}

// Reindex synchronously re-mirrors every record of a kind into the
// secondary index and removes index documents whose primary record is
// gone. This is the repair path for mirror writes that were dropped:
// unlike the fire-and-forget mirror, failures are counted and reported.
func (r *Repository) Reindex(ctx context.Context, kind string) (ReindexStats, error) {
	var stats ReindexStats

	sec, ok := r.secondary.(maintainableSecondary)
	if !ok {
		return stats, fmt.Errorf("reindex %s: secondary index not configured", kind)
	}

	records, err := r.ListKind(ctx, kind)
	if err != nil {
		return stats, fmt.Errorf("reindex %s: %w", kind, err)
	}

	live := make(map[string]struct{}, len(records))
	for _, rec := range records {
		live[rec.ID] = struct{}{}

		hash := encodeFields(rec.Fields)
		hash[fieldID] = rec.ID
		if !rec.CreatedAt.IsZero() {
			hash[fieldCreatedAt] = rec.CreatedAt.Format(time.RFC3339Nano)
		}
		if !rec.UpdatedAt.IsZero() {
			hash[fieldUpdatedAt] = rec.UpdatedAt.Format(time.RFC3339Nano)
		}

		if err := sec.Upsert(ctx, kind, rec.ID, hash, documentText(rec.Fields)); err != nil {
			r.logger.Warn().Err(err).Str("kind", kind).Str("id", rec.ID).Msg("reindex upsert failed")
			stats.Failed++
			continue
		}
		stats.Upserted++
	}

	indexed, err := sec.ListIDs(ctx, kind)
	if err != nil {
		return stats, fmt.Errorf("reindex %s: %w", kind, err)
	}
	for _, id := range indexed {
		if _, ok := live[id]; ok {
			continue
		}
		if err := sec.Delete(ctx, kind, id); err != nil {
			r.logger.Warn().Err(err).Str("kind", kind).Str("id", id).Msg("reindex delete failed")
			stats.Failed++
			continue
		}
		stats.Deleted++
	}

	return stats, nil
}

// Search queries the secondary index for ranked matches. It never fails:
// an unreachable index yields an empty result set, since search is a
// best-effort enhancement over the authoritative store.
func (r *Repository) Search(ctx context.Context, kind, query string) ([]*Record, error) {
	if r.secondary == nil || query == "" {
		return []*Record{}, nil
	}

	matches, err := r.secondary.Query(ctx, kind, query, r.searchLimit)
	if err != nil {
		r.logger.Warn().Err(err).Str("kind", kind).Msg("secondary index query failed, returning empty results")
		return []*Record{}, nil
	}

	records := make([]*Record, 0, len(matches))
	for _, match := range matches {
		rec := recordFromHash(kind, match.Metadata)
		if rec.ID == "" {
			rec.ID = match.ID
		}
		records = append(records, rec)
	}
	return records, nil
}

// Flush waits for in-flight mirrored writes. Called on shutdown and by
// tests; normal request paths never wait on the mirror.
func (r *Repository) Flush() {
	r.mirrors.Wait()
}

// mirror schedules a fire-and-forget write into the secondary index. A
// failure is logged and swallowed; it never propagates to the caller and
// never rolls back the primary write.
func (r *Repository) mirror(kind, id string, metadata map[string]string, fields map[string]any) {
	if r.secondary == nil {
		return
	}

	document := documentText(fields)

	r.mirrors.Add(1)
	go func() {
		defer r.mirrors.Done()

		// Detached from the request context: the caller is unblocked by
		// the primary write and may be long gone.
		ctx, cancel := context.WithTimeout(context.Background(), r.mirrorTimeout)
		defer cancel()

		if err := r.secondary.Upsert(ctx, kind, id, metadata, document); err != nil {
			r.logger.Warn().
				Err(err).
				Str("kind", kind).
				Str("id", id).
				Msg("secondary index write failed, primary store remains authoritative")
		}
	}()
}

func primaryKey(kind, id string) string {
	return kind + ":" + id
}

// kindSetKey is the membership set holding all ids of a kind.
func kindSetKey(kind string) string {
	return "kind:" + kind + ":ids"
}
