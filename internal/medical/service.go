package medical

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/diet"
)

// DefaultAdviceTTL bounds how long derived condition advice is cached.
const DefaultAdviceTTL = 24 * time.Hour

// DefaultLookupTimeout bounds a single reference lookup so one slow
// provider cannot stall plan generation.
const DefaultLookupTimeout = 5 * time.Second

// ConditionSource retrieves reference material for a condition.
type ConditionSource interface {
	LookupCondition(ctx context.Context, condition string) (*ConditionInfo, error)
}

// NutritionSource retrieves nutriments for a food product.
type NutritionSource interface {
	LookupFood(ctx context.Context, foodName string) (*NutritionFacts, error)
}

// CacheStore is the key-value interface used to cache derived advice.
type CacheStore interface {
	GetValue(ctx context.Context, key string) (string, bool, error)
	SetValue(ctx context.Context, key, value string, ttl time.Duration) error
}

// ServiceConfig holds the dependencies of the medical service.
type ServiceConfig struct {
	Conditions ConditionSource
	Foods      NutritionSource
	Cache      CacheStore
	TTL        time.Duration
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// Service derives dietary guidance from medical reference sources. Lookups
// are cached; failures never cascade into the caller beyond the single
// condition they affect.
type Service struct {
	conditions ConditionSource
	foods      NutritionSource
	cache      CacheStore
	ttl        time.Duration
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewService creates a medical service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultAdviceTTL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Service{
		conditions: cfg.Conditions,
		foods:      cfg.Foods,
		cache:      cfg.Cache,
		ttl:        ttl,
		timeout:    timeout,
		logger:     cfg.Logger.With().Str("component", "medical_service").Logger(),
	}
}

// avoidanceRules maps markers found in condition reference text to foods
// known to aggravate that condition. Matching is keyword-based on the
// article title, summary, and categories.
var avoidanceRules = []struct {
	markers []string
	foods   []string
}{
	{
		markers: []string{"diabetes", "hyperglycemia", "insulin resistance"},
		foods:   []string{"sugar", "sweetened beverages", "refined carbohydrates"},
	},
	{
		markers: []string{"celiac", "coeliac", "gluten"},
		foods:   []string{"gluten", "wheat", "barley", "rye"},
	},
	{
		markers: []string{"hypertension", "high blood pressure"},
		foods:   []string{"sodium", "salt", "processed meat"},
	},
	{
		markers: []string{"gout", "hyperuricemia"},
		foods:   []string{"red meat", "organ meat", "shellfish", "beer"},
	},
	{
		markers: []string{"kidney disease", "renal failure", "nephropathy"},
		foods:   []string{"sodium", "potassium-rich foods", "phosphorus additives"},
	},
	{
		markers: []string{"lactose intolerance", "lactase"},
		foods:   []string{"milk", "dairy", "lactose"},
	},
	{
		markers: []string{"phenylketonuria", "pku"},
		foods:   []string{"aspartame", "high-protein foods"},
	},
	{
		markers: []string{"gastroesophageal reflux", "gerd", "heartburn"},
		foods:   []string{"caffeine", "alcohol", "fried foods", "citrus"},
	},
	{
		markers: []string{"irritable bowel", "ibs"},
		foods:   []string{"high-fodmap foods", "onion", "garlic"},
	},
	{
		markers: []string{"hypercholesterolemia", "high cholesterol", "atherosclerosis"},
		foods:   []string{"saturated fat", "trans fat", "fried foods"},
	},
}

// AdviceFor resolves one condition into dietary advice. A cache hit skips
// the reference lookup entirely; cache errors are treated as misses.
func (s *Service) AdviceFor(ctx context.Context, condition string) (*diet.ConditionAdvice, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return &diet.ConditionAdvice{Condition: condition}, nil
	}

	cacheKey := "medical:advice:" + strings.ToLower(condition)
	if s.cache != nil {
		if cached, ok, err := s.cache.GetValue(ctx, cacheKey); err != nil {
			s.logger.Warn().Err(err).Str("condition", condition).Msg("advice cache read failed")
		} else if ok {
			var advice diet.ConditionAdvice
			if err := json.Unmarshal([]byte(cached), &advice); err == nil {
				return &advice, nil
			}
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	info, err := s.conditions.LookupCondition(lookupCtx, condition)
	if err != nil {
		return nil, fmt.Errorf("lookup condition %q: %w", condition, err)
	}

	advice := &diet.ConditionAdvice{
		Condition:    condition,
		FoodsToAvoid: deriveFoodsToAvoid(condition, info),
	}

	if s.cache != nil {
		if payload, err := json.Marshal(advice); err == nil {
			if err := s.cache.SetValue(ctx, cacheKey, string(payload), s.ttl); err != nil {
				s.logger.Warn().Err(err).Str("condition", condition).Msg("advice cache write failed")
			}
		}
	}
	return advice, nil
}

// ConditionLookup exposes the service in the form the plan generator
// consumes.
func (s *Service) ConditionLookup() diet.ConditionLookup {
	return s.AdviceFor
}

// ConditionInfo returns the raw reference material for a condition,
// bypassing the advice derivation. Used by the condition detail endpoint.
func (s *Service) ConditionInfo(ctx context.Context, condition string) (*ConditionInfo, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.conditions.LookupCondition(lookupCtx, condition)
}

// NutritionFor returns per-100g nutriments for a food product.
func (s *Service) NutritionFor(ctx context.Context, foodName string) (*NutritionFacts, error) {
	if s.foods == nil {
		return nil, fmt.Errorf("%w: no nutrition source configured", ErrFoodNotFound)
	}
	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.foods.LookupFood(lookupCtx, foodName)
}

// deriveFoodsToAvoid matches the condition name and reference text against
// the avoidance rules.
func deriveFoodsToAvoid(condition string, info *ConditionInfo) []string {
	var haystack strings.Builder
	haystack.WriteString(strings.ToLower(condition))
	haystack.WriteByte(' ')
	if info != nil {
		haystack.WriteString(strings.ToLower(info.Title))
		haystack.WriteByte(' ')
		haystack.WriteString(strings.ToLower(info.Summary))
		haystack.WriteByte(' ')
		for _, cat := range info.Categories {
			haystack.WriteString(strings.ToLower(cat))
			haystack.WriteByte(' ')
		}
	}
	text := haystack.String()

	var foods []string
	seen := make(map[string]struct{})
	for _, rule := range avoidanceRules {
		for _, marker := range rule.markers {
			if !strings.Contains(text, marker) {
				continue
			}
			for _, food := range rule.foods {
				if _, dup := seen[food]; dup {
					continue
				}
				seen[food] = struct{}{}
				foods = append(foods, food)
			}
			break
		}
	}
	return foods
}
