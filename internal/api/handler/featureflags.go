package handler

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/nutriplan/nutriplan/internal/api/models"
	"github.com/nutriplan/nutriplan/internal/api/response"
	"github.com/nutriplan/nutriplan/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service}
}

// ListFeatureFlags handles GET /v1/admin/flags - list all feature flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	all := h.service.GetAllFlags(r.Context())

	flags := make([]*featureflags.Flag, 0, len(all))
	for _, flag := range all {
		flags = append(flags, flag)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Key < flags[j].Key })

	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"flags": flags,
	})
}

// UpsertFeatureFlags handles PUT /v1/admin/flags - update feature flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var updates []featureflags.FlagUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if len(updates) == 0 {
		response.BadRequest(w, r, "no flag updates provided", nil)
		return
	}

	var fieldErrors []models.FieldError
	now := time.Now()
	flags := make([]*featureflags.Flag, 0, len(updates))
	for _, update := range updates {
		if update.Key == "" {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   "key",
				Message: "must not be empty",
			})
			continue
		}
		flags = append(flags, &featureflags.Flag{
			Key:       update.Key,
			Value:     update.Value,
			UpdatedAt: now,
		})
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "validation failed", fieldErrors)
		return
	}

	if err := h.service.SetFlags(r.Context(), flags); err != nil {
		response.InternalError(w, r, "internal server error")
		return
	}

	response.NoContent(w, r)
}

// InvalidateCache handles POST /v1/admin/flags/invalidate - invalidate
// the in-process flag cache.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}
