package diet

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// UserStore is the slice of user persistence the planner needs: loading a
// plan subject and replacing its stored plan.
type UserStore interface {
	// LoadSubject loads the profile and preferences for a user.
	// Returns ErrUserNotFound when no record exists.
	LoadSubject(ctx context.Context, userID string) (*PlanSubject, error)

	// StorePlan replaces the user's diet plan. Plans are always written
	// whole, never merged.
	StorePlan(ctx context.Context, userID string, plan *DietPlan) error
}

// ServiceConfig holds configuration for the meal plan service.
type ServiceConfig struct {
	// Engine computes daily calorie targets.
	Engine *Engine

	// Aggregator merges dietary restrictions.
	Aggregator *Aggregator

	// Cache memoizes food selections.
	Cache *FoodCache

	// Selector picks foods on cache misses.
	Selector Selector

	// Users loads and stores user records.
	Users UserStore

	// Flags is optional; a nil source never restricts selection.
	Flags FlagSource

	// Logger for service operations.
	Logger zerolog.Logger
}

// FlagSource reports runtime toggles that alter plan generation.
type FlagSource interface {
	// IsCachedOnlyFoodSelection reports whether meal composition may
	// serve only cached selections, never invoking the selector.
	IsCachedOnlyFoodSelection(ctx context.Context) bool
}

// Service generates multi-day meal plans. It is the only component that
// writes DietPlan state.
//
// Concurrent Generate calls for the same user are not coordinated; the
// last successful write wins. This mirrors the storage model, which has no
// per-user transaction, and is an accepted trade-off rather than a bug.
type Service struct {
	engine     *Engine
	aggregator *Aggregator
	cache      *FoodCache
	selector   Selector
	users      UserStore
	flags      FlagSource
	logger     zerolog.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewService creates a meal plan service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		engine:     cfg.Engine,
		aggregator: cfg.Aggregator,
		cache:      cfg.Cache,
		selector:   cfg.Selector,
		users:      cfg.Users,
		flags:      cfg.Flags,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// Generate builds a plan of days consecutive dates starting today, four
// meals per day in fixed order, and persists it on the user record by full
// replacement. A selector failure for any meal aborts the whole call; a
// partial plan is never stored or returned.
func (s *Service) Generate(ctx context.Context, userID string, days int) (*DietPlan, error) {
	if days < 1 {
		return nil, fmt.Errorf("days must be >= 1, got %d", days)
	}

	subject, err := s.users.LoadSubject(ctx, userID)
	if err != nil {
		return nil, err
	}

	dailyCalories, err := s.engine.ComputeDailyCalories(subject.Profile)
	if err != nil {
		return nil, err
	}

	restrictions := s.aggregator.Aggregate(ctx, subject.Profile).Sorted()
	cuisines := subject.Preferences.CuisinePreferences

	// Under cached-only selection a cache miss fails the generation
	// instead of reaching the selector. Used to shed load when food
	// selection is degraded.
	selector := s.selector
	if s.flags != nil && s.flags.IsCachedOnlyFoodSelection(ctx) {
		selector = cacheOnlySelector{}
	}

	start := s.now()
	plan := &DietPlan{
		DailyCalorieTarget: dailyCalories,
		MacroTargets: Nutrients{
			Protein: int(float64(dailyCalories) * proteinShare / caloriesPerGramProtein),
			Carbs:   int(float64(dailyCalories) * carbShare / caloriesPerGramCarb),
			Fats:    int(float64(dailyCalories) * fatShare / caloriesPerGramFat),
		},
		MealPlan:    make([]DayPlan, 0, days),
		GeneratedAt: start,
	}

	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		day := DayPlan{
			Date:  time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()),
			Meals: make([]Meal, 0, len(MealOrder)),
		}

		for _, mealType := range MealOrder {
			mealCalories := MealCalories(dailyCalories, mealType)
			foods, err := s.cache.GetOrCompute(ctx, mealCalories, cuisines, restrictions, selector)
			if err != nil {
				return nil, fmt.Errorf("selecting %s for %s: %w", mealType, day.Date.Format("2006-01-02"), err)
			}
			day.Meals = append(day.Meals, Meal{Type: mealType, Foods: foods})
		}

		plan.MealPlan = append(plan.MealPlan, day)
	}

	if err := s.users.StorePlan(ctx, userID, plan); err != nil {
		return nil, fmt.Errorf("storing plan: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("days", days).
		Int("daily_calories", dailyCalories).
		Int("restrictions", len(restrictions)).
		Msg("diet plan generated")

	return plan, nil
}
