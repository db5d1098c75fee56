package handler

import (
	"net/http"
	"strings"

	"github.com/nutriplan/nutriplan/internal/api/models"
	"github.com/nutriplan/nutriplan/internal/api/response"
	"github.com/nutriplan/nutriplan/internal/featureflags"
	"github.com/nutriplan/nutriplan/internal/user"
)

// SearchHandler handles semantic search endpoints.
type SearchHandler struct {
	userService *user.Service
	flags       *featureflags.Service
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(userService *user.Service, flags *featureflags.Service) *SearchHandler {
	return &SearchHandler{
		userService: userService,
		flags:       flags,
	}
}

// SearchUsers handles GET /v1/search/users?q= - semantic search over
// user profiles.
func (h *SearchHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query, ok := h.searchQuery(w, r)
	if !ok {
		return
	}

	users, err := h.userService.SearchUsers(r.Context(), query)
	if err != nil {
		response.InternalError(w, r, "internal server error")
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": users,
	})
}

// SearchConditions handles GET /v1/search/conditions?q= - semantic search
// over recorded conditions.
func (h *SearchHandler) SearchConditions(w http.ResponseWriter, r *http.Request) {
	query, ok := h.searchQuery(w, r)
	if !ok {
		return
	}

	conditions, err := h.userService.SearchConditions(r.Context(), query)
	if err != nil {
		response.InternalError(w, r, "internal server error")
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": conditions,
	})
}

// searchQuery validates the q parameter and the semantic search flag,
// writing the error response on failure.
func (h *SearchHandler) searchQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.flags != nil && h.flags.IsSemanticSearchDisabled(r.Context()) {
		response.ServiceUnavailable(w, r, "semantic search is temporarily disabled")
		return "", false
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		response.BadRequest(w, r, "validation failed", []models.FieldError{
			{Field: "q", Message: "must not be empty"},
		})
		return "", false
	}
	return query, true
}
