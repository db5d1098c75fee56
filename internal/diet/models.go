// Package diet provides calorie budgeting, dietary restriction aggregation,
// and multi-day meal plan generation.
package diet

import (
	"context"
	"errors"
	"time"
)

// Service errors.
var (
	// ErrInvalidProfile indicates a missing or incomplete health profile.
	ErrInvalidProfile = errors.New("invalid health profile")

	// ErrUserNotFound indicates no user record exists for the given id.
	ErrUserNotFound = errors.New("user not found")

	// ErrSelectorFailed indicates the food selector failed; a partial plan
	// is never returned.
	ErrSelectorFailed = errors.New("food selection failed")
)

// Gender is the gender declared on a health profile.
type Gender string

// Gender values.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ActivityLevel describes habitual physical activity.
type ActivityLevel string

// ActivityLevel values.
const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "veryActive"
)

// MealType identifies one of the four fixed daily meals.
type MealType string

// MealType values, in daily order.
const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// MealOrder is the fixed order of meals within a day.
var MealOrder = []MealType{MealBreakfast, MealLunch, MealDinner, MealSnack}

// MealRatios is the share of the daily calorie target allotted to each
// meal type. The shares sum to exactly 1.0.
var MealRatios = map[MealType]float64{
	MealBreakfast: 0.30,
	MealLunch:     0.35,
	MealDinner:    0.25,
	MealSnack:     0.10,
}

// HealthProfile holds the health data a calorie budget is derived from.
// Gender, WeightKG, HeightCM, Age and ActivityLevel are all required by
// the calorie engine.
type HealthProfile struct {
	Gender              Gender        `json:"gender"`
	WeightKG            float64       `json:"weight"`
	HeightCM            float64       `json:"height"`
	Age                 int           `json:"age"`
	ActivityLevel       ActivityLevel `json:"activityLevel"`
	MedicalConditions   []string      `json:"medicalConditions,omitempty"`
	Allergies           []string      `json:"allergies,omitempty"`
	DietaryRestrictions []string      `json:"dietaryRestrictions,omitempty"`
}

// Preferences holds meal preferences that shape food selection.
type Preferences struct {
	CuisinePreferences  []string `json:"cuisinePreferences,omitempty"`
	ExcludedIngredients []string `json:"excludedIngredients,omitempty"`
	MealSize            string   `json:"mealSize,omitempty"`
	MealsPerDay         int      `json:"mealsPerDay,omitempty"`
}

// Nutrients holds macro-nutrient grams for a food item or a daily target.
type Nutrients struct {
	Protein int `json:"protein"`
	Carbs   int `json:"carbs"`
	Fats    int `json:"fats"`
}

// FoodItem is one selected food with portion and nutrition data.
type FoodItem struct {
	Name      string    `json:"name"`
	Portion   float64   `json:"portion"`
	Unit      string    `json:"unit"`
	Calories  int       `json:"calories"`
	Nutrients Nutrients `json:"nutrients"`
}

// Meal is one meal of a day plan.
type Meal struct {
	Type  MealType   `json:"type"`
	Foods []FoodItem `json:"foods"`
}

// DayPlan is the four meals planned for one calendar date.
type DayPlan struct {
	Date  time.Time `json:"date"`
	Meals []Meal    `json:"meals"`
}

// DietPlan is a complete generated plan. Plans are replaced whole on each
// generation, never merged.
type DietPlan struct {
	DailyCalorieTarget int       `json:"dailyCalorieTarget"`
	MacroTargets       Nutrients `json:"macroTargets"`
	MealPlan           []DayPlan `json:"mealPlan"`
	GeneratedAt        time.Time `json:"generatedAt"`
}

// PlanSubject is the slice of a user record the plan generator consumes.
type PlanSubject struct {
	UserID      string
	Profile     *HealthProfile
	Preferences Preferences
}

// ConditionAdvice is the dietary guidance derived from one medical
// condition lookup.
type ConditionAdvice struct {
	Condition    string
	FoodsToAvoid []string
}

// ConditionLookup resolves a medical condition name into dietary advice.
// Implementations may fail or time out for individual conditions; callers
// treat such failures as "no advice for this condition".
type ConditionLookup func(ctx context.Context, condition string) (*ConditionAdvice, error)
