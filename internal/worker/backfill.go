package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/record"
)

// Reindexer reconciles the search index with the primary store for one
// record kind. The dual-store repository implements it.
type Reindexer interface {
	Reindex(ctx context.Context, kind string) (record.ReindexStats, error)
}

// BackfillJob re-mirrors primary records into the search index and prunes
// documents whose records are gone. Mirror writes are fire-and-forget, so
// a crashed index or a dropped write leaves the index behind the primary;
// this job is the repair path.
type BackfillJob struct {
	config JobsConfig
	index  Reindexer
	logger zerolog.Logger
}

// BackfillJobConfig holds configuration for creating a BackfillJob.
type BackfillJobConfig struct {
	Config JobsConfig
	Index  Reindexer
	Logger zerolog.Logger
}

// NewBackfillJob creates a new index backfill job processor.
func NewBackfillJob(cfg BackfillJobConfig) *BackfillJob {
	return &BackfillJob{
		config: cfg.Config.withDefaults(),
		index:  cfg.Index,
		logger: cfg.Logger,
	}
}

// BackfillResult contains the result of a backfill run.
type BackfillResult struct {
	Duration time.Duration
	Upserted int
	Deleted  int
	Failed   int
}

// Run reindexes every configured record kind. A kind that cannot be
// listed at all fails the run; per-document failures are counted and the
// run continues.
func (j *BackfillJob) Run(ctx context.Context) (*BackfillResult, error) {
	startTime := time.Now()
	result := &BackfillResult{}

	j.logger.Info().
		Strs("kinds", j.config.Kinds).
		Msg("starting index backfill job")

	for _, kind := range j.config.Kinds {
		stats, err := j.index.Reindex(ctx, kind)
		result.Upserted += stats.Upserted
		result.Deleted += stats.Deleted
		result.Failed += stats.Failed
		if err != nil {
			result.Duration = time.Since(startTime)
			return result, fmt.Errorf("backfill kind %s: %w", kind, err)
		}

		j.logger.Info().
			Str("kind", kind).
			Int("upserted", stats.Upserted).
			Int("deleted", stats.Deleted).
			Int("failed", stats.Failed).
			Msg("kind reindexed")
	}

	result.Duration = time.Since(startTime)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("upserted", result.Upserted).
		Int("deleted", result.Deleted).
		Int("failed", result.Failed).
		Msg("index backfill job completed")

	return result, nil
}
