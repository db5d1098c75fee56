package models

import "github.com/nutriplan/nutriplan/internal/diet"

// CreateUserRequest is the body of POST /v1/users.
type CreateUserRequest struct {
	Username      string              `json:"username"`
	Email         string              `json:"email"`
	HealthProfile *diet.HealthProfile `json:"healthProfile,omitempty"`
	Preferences   *diet.Preferences   `json:"preferences,omitempty"`
}

// UpdateUserRequest is the body of PUT /v1/users/{userId}. Only the fields
// present are updated.
type UpdateUserRequest struct {
	HealthProfile *diet.HealthProfile `json:"healthProfile,omitempty"`
	Preferences   *diet.Preferences   `json:"preferences,omitempty"`
}

// CreateConditionRequest is the body of POST /v1/users/{userId}/conditions.
type CreateConditionRequest struct {
	Condition string   `json:"condition"`
	Severity  string   `json:"severity,omitempty"`
	Symptoms  []string `json:"symptoms,omitempty"`
}

// GeneratePlanRequest is the body of POST /v1/users/{userId}/diet-plan:generate.
type GeneratePlanRequest struct {
	// Days is the plan horizon in days. Defaults to 7.
	Days int `json:"days,omitempty"`
}
