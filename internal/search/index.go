// Package search implements the semantic secondary index on PostgreSQL with
// pgvector. The index is a best-effort projection of the primary store:
// writes are mirrored into it asynchronously and reads degrade to empty
// results when it is unavailable.
package search

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/record"
)

// IndexConfig holds the dependencies of the vector index.
type IndexConfig struct {
	Pool     *pgxpool.Pool
	Embedder Embedder
	Logger   zerolog.Logger
}

// Index stores searchable documents with their embeddings and answers
// similarity queries. It implements record.Secondary.
type Index struct {
	pool     *pgxpool.Pool
	embedder Embedder
	logger   zerolog.Logger
}

// NewIndex creates the vector index and ensures its schema exists. The
// embedding column dimension is fixed at creation; changing embedders with
// a different dimension requires dropping the table and backfilling.
func NewIndex(ctx context.Context, cfg IndexConfig) (*Index, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("search index requires a database pool")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("search index requires an embedder")
	}

	idx := &Index{
		pool:     cfg.Pool,
		embedder: cfg.Embedder,
		logger:   cfg.Logger.With().Str("component", "search_index").Logger(),
	}
	if err := idx.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (i *Index) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS search_documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			document TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)`, i.embedder.Dimensions()),
	}
	for _, stmt := range statements {
		if _, err := i.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure search schema: %w", err)
		}
	}
	return nil
}

// Upsert writes or replaces one document in the index.
func (i *Index) Upsert(ctx context.Context, collection, id string, metadata map[string]string, document string) error {
	embedding, err := i.embedder.Embed(ctx, document)
	if err != nil {
		return fmt.Errorf("embed document %s/%s: %w", collection, id, err)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	_, err = i.pool.Exec(ctx, `
		INSERT INTO search_documents (collection, id, metadata, document, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (collection, id) DO UPDATE
		SET metadata = EXCLUDED.metadata,
		    document = EXCLUDED.document,
		    embedding = EXCLUDED.embedding,
		    updated_at = now()`,
		collection, id, metadata, document, pgvector.NewVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("upsert document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query embeds the query text and returns the closest documents in the
// collection by cosine distance.
func (i *Index) Query(ctx context.Context, collection, query string, limit int) ([]record.Match, error) {
	if limit < 1 {
		limit = 5
	}

	embedding, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec := pgvector.NewVector(embedding)

	rows, err := i.pool.Query(ctx, `
		SELECT id, metadata, 1 - (embedding <=> $2) AS score
		FROM search_documents
		WHERE collection = $1
		ORDER BY embedding <=> $2
		LIMIT $3`,
		collection, vec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}
	defer rows.Close()

	var matches []record.Match
	for rows.Next() {
		var m record.Match
		if err := rows.Scan(&m.ID, &m.Metadata, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

// ListIDs returns the ids of every document in a collection. The worker
// uses it to reconcile the index against the primary store.
func (i *Index) ListIDs(ctx context.Context, collection string) ([]string, error) {
	rows, err := i.pool.Query(ctx,
		`SELECT id FROM search_documents WHERE collection = $1`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list collection %s: %w", collection, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

// Delete removes one document from the index. Missing documents are not an
// error.
func (i *Index) Delete(ctx context.Context, collection, id string) error {
	_, err := i.pool.Exec(ctx,
		`DELETE FROM search_documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, id, err)
	}
	return nil
}
