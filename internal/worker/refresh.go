package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/diet"
	"github.com/nutriplan/nutriplan/internal/user"
)

// UserLister enumerates registered users.
type UserLister interface {
	ListUsers(ctx context.Context) ([]*user.User, error)
}

// PlanGenerator regenerates and persists a user's diet plan.
type PlanGenerator interface {
	Generate(ctx context.Context, userID string, days int) (*diet.DietPlan, error)
}

// FlagChecker gates the refresh job at runtime.
type FlagChecker interface {
	IsPlanRefreshDisabled(ctx context.Context) bool
}

// RefreshJob regenerates stored diet plans so they track profile changes
// and fresh food selections. Users without a stored plan are never given
// one; plan creation stays an explicit user action.
type RefreshJob struct {
	config  JobsConfig
	users   UserLister
	planner PlanGenerator
	flags   FlagChecker
	logger  zerolog.Logger

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns      int64
	SkippedRuns    int64
	PlansRefreshed int64
	Failures       int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  JobsConfig
	Users   UserLister
	Planner PlanGenerator

	// Flags is optional; a nil checker never disables the job.
	Flags  FlagChecker
	Logger zerolog.Logger
}

// NewRefreshJob creates a new plan refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:  cfg.Config.withDefaults(),
		users:   cfg.Users,
		planner: cfg.Planner,
		flags:   cfg.Flags,
		logger:  cfg.Logger,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalUsers int
	Refreshed  int
	Skipped    int
	Failed     int
	Disabled   bool
	Errors     []RefreshError
}

// RefreshError represents one user whose plan could not be refreshed.
type RefreshError struct {
	UserID string
	Error  string
}

// Run regenerates the plan of every user that has one stored.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{StartTime: startTime}

	if j.flags != nil && j.flags.IsPlanRefreshDisabled(ctx) {
		j.logger.Info().Msg("plan refresh disabled by feature flag, skipping run")
		result.Disabled = true
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		j.recordSkip()
		return result
	}

	users, err := j.users.ListUsers(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("listing users for plan refresh failed")
		result.Failed++
		result.Errors = append(result.Errors, RefreshError{Error: err.Error()})
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		j.updateMetrics(result)
		return result
	}
	result.TotalUsers = len(users)

	j.logger.Info().
		Int("total_users", len(users)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting plan refresh job")

	usersChan := make(chan *user.User, len(users))
	resultsChan := make(chan userResult, len(users))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, usersChan, resultsChan)
		}()
	}

	for _, u := range users {
		usersChan <- u
	}
	close(usersChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for ur := range resultsChan {
		switch {
		case ur.skipped:
			result.Skipped++
		case ur.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{
				UserID: ur.userID,
				Error:  ur.err.Error(),
			})
		default:
			result.Refreshed++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("refreshed", result.Refreshed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("plan refresh job completed")

	return result
}

type userResult struct {
	userID  string
	skipped bool
	err     error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, users <-chan *user.User, results chan<- userResult) {
	for u := range users {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.refreshUser(ctx, u)
		}
	}
}

func (j *RefreshJob) refreshUser(ctx context.Context, u *user.User) userResult {
	if u.DietPlan == nil {
		return userResult{userID: u.ID, skipped: true}
	}

	// Preserve the stored plan's horizon.
	days := len(u.DietPlan.MealPlan)
	if days == 0 {
		return userResult{userID: u.ID, skipped: true}
	}

	userCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	if _, err := j.planner.Generate(userCtx, u.ID, days); err != nil {
		j.logger.Warn().Err(err).Str("user_id", u.ID).Msg("plan refresh failed for user")
		return userResult{userID: u.ID, err: err}
	}
	return userResult{userID: u.ID}
}

func (j *RefreshJob) recordSkip() {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()
	j.metrics.TotalRuns++
	j.metrics.SkippedRuns++
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.PlansRefreshed += int64(result.Refreshed)
	j.metrics.Failures += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		SkippedRuns:     j.metrics.SkippedRuns,
		PlansRefreshed:  j.metrics.PlansRefreshed,
		Failures:        j.metrics.Failures,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
	}
}
