// Package user manages user accounts, health profiles, and tracked medical
// conditions on top of the dual-store repository.
package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nutriplan/nutriplan/internal/diet"
)

// Service errors.
var (
	// ErrNotFound indicates the user or condition does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrInvalidInput indicates missing or malformed input fields.
	ErrInvalidInput = errors.New("invalid input")
)

// User is one account with its health profile, preferences, and current
// diet plan.
type User struct {
	ID            string              `json:"id"`
	Username      string              `json:"username"`
	Email         string              `json:"email"`
	HealthProfile *diet.HealthProfile `json:"healthProfile,omitempty"`
	Preferences   diet.Preferences    `json:"preferences"`
	DietPlan      *diet.DietPlan      `json:"dietPlan,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt,omitempty"`
}

// Condition is one tracked medical condition for a user.
type Condition struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Name         string    `json:"condition"`
	Severity     string    `json:"severity,omitempty"`
	Symptoms     []string  `json:"symptoms,omitempty"`
	DateRecorded time.Time `json:"dateRecorded"`
}

// Condition severities.
const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

func validSeverity(s string) bool {
	switch s {
	case "", SeverityMild, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

// decodeField re-marshals a structured field value into a typed struct.
// Field values come back from the store as generic JSON shapes.
func decodeField(value any, out any) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode field: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode field: %w", err)
	}
	return nil
}
