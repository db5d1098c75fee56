package diet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Selector picks foods for one meal. Implementations are pluggable; the
// planner only requires that the returned foods approximate the target
// calories.
type Selector interface {
	// Select returns foods for a meal at the given calorie target,
	// honoring cuisine preferences and excluding restricted foods.
	Select(ctx context.Context, targetCalories int, cuisinePrefs []string, restrictions []string) ([]FoodItem, error)

	// Name returns the selector name for logging.
	Name() string
}

// Macro split used by the reference selector: 30% protein, 40% carbs,
// 30% fats of the calorie target.
const (
	proteinShare = 0.3
	carbShare    = 0.4
	fatShare     = 0.3

	caloriesPerGramProtein = 4
	caloriesPerGramCarb    = 4
	caloriesPerGramFat     = 9
)

// catalogItem is one entry of the built-in food catalog.
type catalogItem struct {
	name    string
	cuisine string
	// tokens a restriction set is matched against, beyond the name itself
	tags []string
}

// defaultCatalog is a small starter catalog for the macro-split selector.
// Real deployments plug in a selector backed by a food database.
var defaultCatalog = []catalogItem{
	{name: "Oatmeal with berries", cuisine: "international", tags: []string{"oats", "gluten"}},
	{name: "Grilled chicken salad", cuisine: "mediterranean", tags: []string{"chicken", "meat"}},
	{name: "Lentil curry", cuisine: "indian", tags: []string{"lentils", "legumes"}},
	{name: "Salmon with rice", cuisine: "japanese", tags: []string{"fish", "salmon", "rice"}},
	{name: "Vegetable stir fry", cuisine: "chinese", tags: []string{"soy"}},
	{name: "Greek yogurt with honey", cuisine: "mediterranean", tags: []string{"dairy", "sugar"}},
	{name: "Black bean tacos", cuisine: "mexican", tags: []string{"beans", "legumes", "corn"}},
	{name: "Quinoa bowl", cuisine: "international", tags: []string{"quinoa"}},
}

// MacroSplitSelector is the reference Selector. It chooses a catalog item
// not hit by the restriction set, preferring the requested cuisines, and
// sizes a single portion to the calorie target with a fixed macro split.
type MacroSplitSelector struct {
	catalog []catalogItem
}

// NewMacroSplitSelector creates the reference selector.
func NewMacroSplitSelector() *MacroSplitSelector {
	return &MacroSplitSelector{catalog: defaultCatalog}
}

// Name implements Selector.
func (s *MacroSplitSelector) Name() string { return "macro-split" }

// Select implements Selector. It is deterministic for identical input.
func (s *MacroSplitSelector) Select(_ context.Context, targetCalories int, cuisinePrefs []string, restrictions []string) ([]FoodItem, error) {
	if targetCalories <= 0 {
		return nil, fmt.Errorf("target calories must be positive, got %d", targetCalories)
	}

	restricted := make(RestrictionSet)
	for _, token := range restrictions {
		restricted.Add(token)
	}

	item, ok := s.pickItem(cuisinePrefs, restricted)
	if !ok {
		return nil, fmt.Errorf("no catalog item satisfies %d restrictions", len(restrictions))
	}

	return []FoodItem{{
		Name:     item.name,
		Portion:  100,
		Unit:     "g",
		Calories: targetCalories,
		Nutrients: Nutrients{
			Protein: int(math.Round(float64(targetCalories) * proteinShare / caloriesPerGramProtein)),
			Carbs:   int(math.Round(float64(targetCalories) * carbShare / caloriesPerGramCarb)),
			Fats:    int(math.Round(float64(targetCalories) * fatShare / caloriesPerGramFat)),
		},
	}}, nil
}

// pickItem returns the first admissible catalog item, scanning preferred
// cuisines before the rest of the catalog.
func (s *MacroSplitSelector) pickItem(cuisinePrefs []string, restricted RestrictionSet) (catalogItem, bool) {
	preferred := make(map[string]bool, len(cuisinePrefs))
	for _, c := range cuisinePrefs {
		preferred[strings.ToLower(strings.TrimSpace(c))] = true
	}

	if len(preferred) > 0 {
		for _, item := range s.catalog {
			if preferred[item.cuisine] && s.admissible(item, restricted) {
				return item, true
			}
		}
	}
	for _, item := range s.catalog {
		if s.admissible(item, restricted) {
			return item, true
		}
	}
	return catalogItem{}, false
}

func (s *MacroSplitSelector) admissible(item catalogItem, restricted RestrictionSet) bool {
	if restricted.Contains(item.name) {
		return false
	}
	for _, tag := range item.tags {
		if restricted.Contains(tag) {
			return false
		}
	}
	return true
}

// cacheOnlySelector is substituted for the real selector when the
// cached-only toggle is active. Reaching it means the cache missed, which
// under cached-only operation is a hard failure.
type cacheOnlySelector struct{}

func (cacheOnlySelector) Select(ctx context.Context, targetCalories int, cuisinePrefs, restrictions []string) ([]FoodItem, error) {
	return nil, errors.New("food selection restricted to cached entries")
}

func (cacheOnlySelector) Name() string { return "cache-only" }
