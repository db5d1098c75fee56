package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nutriplan/nutriplan/internal/api/models"
	"github.com/nutriplan/nutriplan/internal/api/response"
	"github.com/nutriplan/nutriplan/internal/featureflags"
	"github.com/nutriplan/nutriplan/internal/medical"
	"github.com/nutriplan/nutriplan/internal/user"
)

// ConditionHandler handles per-user medical condition endpoints.
type ConditionHandler struct {
	userService    *user.Service
	medicalService *medical.Service
	flags          *featureflags.Service
}

// NewConditionHandler creates a new ConditionHandler.
func NewConditionHandler(userService *user.Service, medicalService *medical.Service, flags *featureflags.Service) *ConditionHandler {
	return &ConditionHandler{
		userService:    userService,
		medicalService: medicalService,
		flags:          flags,
	}
}

// conditionResponse pairs a recorded condition with the dietary advice
// looked up for it.
type conditionResponse struct {
	*user.Condition
	Advice *dietAdvice `json:"advice,omitempty"`
}

type dietAdvice struct {
	FoodsToAvoid []string `json:"foodsToAvoid,omitempty"`
}

// AddCondition handles POST /v1/users/{userId}/conditions.
func (h *ConditionHandler) AddCondition(w http.ResponseWriter, r *http.Request) {
	userID := ownedUserID(w, r)
	if userID == "" {
		return
	}

	var req models.CreateConditionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	cond, err := h.userService.AddCondition(r.Context(), userID, user.AddConditionParams{
		Name:     req.Condition,
		Severity: req.Severity,
		Symptoms: req.Symptoms,
	})
	if err != nil {
		writeUserError(w, r, err)
		return
	}

	resp := conditionResponse{Condition: cond}
	resp.Advice = h.adviceFor(r, cond.Name)

	location := "/v1/users/" + userID + "/conditions/" + cond.ID
	response.Created(w, r, location, resp)
}

// ListConditions handles GET /v1/users/{userId}/conditions.
func (h *ConditionHandler) ListConditions(w http.ResponseWriter, r *http.Request) {
	userID := ownedUserID(w, r)
	if userID == "" {
		return
	}

	conditions, err := h.userService.ListConditions(r.Context(), userID)
	if err != nil {
		writeUserError(w, r, err)
		return
	}

	resp := make([]conditionResponse, 0, len(conditions))
	for _, cond := range conditions {
		resp = append(resp, conditionResponse{
			Condition: cond,
			Advice:    h.adviceFor(r, cond.Name),
		})
	}

	response.JSON(w, r, http.StatusOK, resp)
}

// RemoveCondition handles DELETE /v1/users/{userId}/conditions/{conditionId}.
func (h *ConditionHandler) RemoveCondition(w http.ResponseWriter, r *http.Request) {
	userID := ownedUserID(w, r)
	if userID == "" {
		return
	}

	conditionID := chi.URLParam(r, "conditionId")
	if err := h.userService.RemoveCondition(r.Context(), userID, conditionID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			response.NotFound(w, r, "condition")
			return
		}
		response.InternalError(w, r, "internal server error")
		return
	}

	response.NoContent(w, r)
}

// adviceFor fetches dietary advice for a condition name. Lookups are
// best effort: a failed or disabled lookup leaves the advice empty.
func (h *ConditionHandler) adviceFor(r *http.Request, name string) *dietAdvice {
	if h.medicalService == nil {
		return nil
	}
	if h.flags != nil && h.flags.IsConditionLookupDisabled(r.Context()) {
		return nil
	}

	advice, err := h.medicalService.AdviceFor(r.Context(), name)
	if err != nil || advice == nil {
		return nil
	}

	if len(advice.FoodsToAvoid) == 0 {
		return nil
	}
	return &dietAdvice{FoodsToAvoid: advice.FoodsToAvoid}
}
