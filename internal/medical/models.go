// Package medical resolves medical condition names into dietary guidance
// using external reference sources.
package medical

import (
	"errors"
	"time"
)

// Service errors.
var (
	// ErrConditionNotFound indicates no reference article matched the
	// condition name.
	ErrConditionNotFound = errors.New("condition not found")

	// ErrFoodNotFound indicates the food database has no entry for the
	// given product name.
	ErrFoodNotFound = errors.New("food not found")
)

// ConditionInfo is the reference material retrieved for one medical
// condition.
type ConditionInfo struct {
	Condition   string    `json:"condition"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Categories  []string  `json:"categories"`
	Source      string    `json:"source"`
	RetrievedAt time.Time `json:"retrievedAt"`
}

// NutritionFacts holds per-100g nutriments for a food product.
type NutritionFacts struct {
	Calories      float64 `json:"calories"`
	ProteinG      float64 `json:"protein"`
	CarbohydrateG float64 `json:"carbohydrates"`
	FatG          float64 `json:"fat"`
	FiberG        float64 `json:"fiber"`
	SodiumG       float64 `json:"sodium"`
}
