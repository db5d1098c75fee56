package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nutriplan/nutriplan/internal/api/models"
	"github.com/nutriplan/nutriplan/internal/api/response"
	"github.com/nutriplan/nutriplan/internal/diet"
	"github.com/nutriplan/nutriplan/internal/user"
)

const (
	defaultPlanDays = 7
	maxPlanDays     = 31
)

// PlanHandler handles diet plan endpoints.
type PlanHandler struct {
	dietService *diet.Service
	userService *user.Service
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(dietService *diet.Service, userService *user.Service) *PlanHandler {
	return &PlanHandler{
		dietService: dietService,
		userService: userService,
	}
}

// GeneratePlan handles POST /v1/users/{userId}/diet-plan:generate.
// Regenerating replaces any stored plan.
func (h *PlanHandler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	userID := ownedUserID(w, r)
	if userID == "" {
		return
	}

	req := models.GeneratePlanRequest{Days: defaultPlanDays}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if req.Days <= 0 {
		req.Days = defaultPlanDays
	}
	if req.Days > maxPlanDays {
		response.BadRequest(w, r, "days must be at most 31", []models.FieldError{
			{Field: "days", Message: "must be between 1 and 31"},
		})
		return
	}

	plan, err := h.dietService.Generate(r.Context(), userID, req.Days)
	if err != nil {
		switch {
		case errors.Is(err, diet.ErrUserNotFound):
			response.NotFound(w, r, "user")
		case errors.Is(err, diet.ErrInvalidProfile):
			response.BadRequest(w, r, "health profile is missing or incomplete", nil)
		case errors.Is(err, diet.ErrSelectorFailed):
			response.ServiceUnavailable(w, r, "food selection is temporarily unavailable")
		default:
			response.InternalError(w, r, "internal server error")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, plan)
}

// GetPlan handles GET /v1/users/{userId}/diet-plan - fetch the stored plan.
func (h *PlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	userID := ownedUserID(w, r)
	if userID == "" {
		return
	}

	plan, err := h.userService.GetPlan(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			response.NotFound(w, r, "user")
			return
		}
		response.InternalError(w, r, "internal server error")
		return
	}
	if plan == nil {
		response.NotFound(w, r, "diet plan")
		return
	}

	response.JSON(w, r, http.StatusOK, plan)
}
