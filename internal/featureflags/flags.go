// Package featureflags provides feature flag management for runtime
// configuration.
package featureflags

import (
	"encoding/json"
	"time"
)

// Well-known feature flag keys.
const (
	// FlagDisableSemanticSearch disables the secondary search index; user
	// search returns empty results while set.
	FlagDisableSemanticSearch = "disable_semantic_search"

	// FlagDisableConditionLookup skips external medical reference lookups
	// during plan generation.
	FlagDisableConditionLookup = "disable_condition_lookup"

	// FlagDisablePlanRefresh pauses the background plan refresh worker.
	FlagDisablePlanRefresh = "disable_plan_refresh"

	// FlagCachedOnlyFoodSelection forces meal composition to serve only
	// cached selections, never recomputing.
	FlagCachedOnlyFoodSelection = "cached_only_food_selection"
)

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// FlagUpdate represents a single flag update request.
type FlagUpdate struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// BoolValue returns the flag value as a boolean.
// Returns the default value if the flag is nil, not found, or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON unmarshals numbers as float64
		return v != 0
	default:
		return defaultValue
	}
}

// StringValue returns the flag value as a string.
// Returns the default value if the flag is nil, not found, or not a string.
func (f *Flag) StringValue(defaultValue string) string {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case string:
		return v
	default:
		return defaultValue
	}
}

// IntValue returns the flag value as an integer.
// Returns the default value if the flag is nil, not found, or not a number.
func (f *Flag) IntValue(defaultValue int) int {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case float64:
		// JSON unmarshals numbers as float64
		return int(v)
	case int:
		return v
	default:
		return defaultValue
	}
}

// JSONValue unmarshals the flag value into the target struct.
func (f *Flag) JSONValue(target interface{}) error {
	if f == nil {
		return nil
	}
	data, err := json.Marshal(f.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// DefaultFlags returns the default feature flags for the application.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	return map[string]*Flag{
		FlagDisableSemanticSearch: {
			Key:       FlagDisableSemanticSearch,
			Value:     false,
			UpdatedAt: now,
		},
		FlagDisableConditionLookup: {
			Key:       FlagDisableConditionLookup,
			Value:     false,
			UpdatedAt: now,
		},
		FlagDisablePlanRefresh: {
			Key:       FlagDisablePlanRefresh,
			Value:     false,
			UpdatedAt: now,
		},
		FlagCachedOnlyFoodSelection: {
			Key:       FlagCachedOnlyFoodSelection,
			Value:     false,
			UpdatedAt: now,
		},
	}
}
