package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nutriplan/nutriplan/internal/api/middleware"
	"github.com/nutriplan/nutriplan/internal/api/models"
	"github.com/nutriplan/nutriplan/internal/api/response"
	"github.com/nutriplan/nutriplan/internal/diet"
	"github.com/nutriplan/nutriplan/internal/user"
)

// UserHandler handles user account endpoints.
type UserHandler struct {
	userService *user.Service
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *user.Service) *UserHandler {
	return &UserHandler{userService: userService}
}

// ownedUserID returns the path user id when the authenticated caller owns
// it, or "" after writing the error response.
func ownedUserID(w http.ResponseWriter, r *http.Request) string {
	callerID := middleware.GetUserID(r.Context())
	if callerID == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return ""
	}

	userID := chi.URLParam(r, "userId")
	if userID != callerID {
		// Other users' resources are indistinguishable from missing ones.
		response.NotFound(w, r, "user")
		return ""
	}
	return userID
}

// CreateUser handles POST /v1/users - register a new user.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	fieldErrors := validateCreateUser(&req)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "validation failed", fieldErrors)
		return
	}

	params := user.CreateUserParams{
		Username:      req.Username,
		Email:         req.Email,
		HealthProfile: req.HealthProfile,
	}
	if req.Preferences != nil {
		params.Preferences = *req.Preferences
	}

	created, err := h.userService.CreateUser(r.Context(), params)
	if err != nil {
		if errors.Is(err, user.ErrInvalidInput) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		response.InternalError(w, r, "internal server error")
		return
	}

	response.Created(w, r, "/v1/users/"+created.ID, created)
}

// GetUser handles GET /v1/users/{userId} - fetch a user.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := ownedUserID(w, r)
	if userID == "" {
		return
	}

	u, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			response.NotFound(w, r, "user")
			return
		}
		response.InternalError(w, r, "internal server error")
		return
	}

	response.JSON(w, r, http.StatusOK, u)
}

// UpdateUser handles PUT /v1/users/{userId} - update profile and
// preferences in one call. Absent fields are left unchanged.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := ownedUserID(w, r)
	if userID == "" {
		return
	}

	var req models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if req.HealthProfile == nil && req.Preferences == nil {
		response.BadRequest(w, r, "nothing to update", nil)
		return
	}

	var (
		u   *user.User
		err error
	)
	if req.HealthProfile != nil {
		u, err = h.userService.UpdateProfile(r.Context(), userID, *req.HealthProfile)
	}
	if err == nil && req.Preferences != nil {
		u, err = h.userService.UpdatePreferences(r.Context(), userID, *req.Preferences)
	}
	if err != nil {
		writeUserError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, u)
}

// UpdateProfile handles PUT /v1/users/{userId}/profile - replace the
// health profile.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := ownedUserID(w, r)
	if userID == "" {
		return
	}

	var profile diet.HealthProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	u, err := h.userService.UpdateProfile(r.Context(), userID, profile)
	if err != nil {
		writeUserError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, u)
}

// UpdatePreferences handles PUT /v1/users/{userId}/preferences - replace
// the dietary preferences.
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := ownedUserID(w, r)
	if userID == "" {
		return
	}

	var prefs diet.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	u, err := h.userService.UpdatePreferences(r.Context(), userID, prefs)
	if err != nil {
		writeUserError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, u)
}

func writeUserError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		response.NotFound(w, r, "user")
	case errors.Is(err, user.ErrInvalidInput):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		response.InternalError(w, r, "internal server error")
	}
}

// validateCreateUser validates the registration body and returns any
// field errors.
func validateCreateUser(req *models.CreateUserRequest) []models.FieldError {
	var fieldErrors []models.FieldError

	if strings.TrimSpace(req.Username) == "" {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "username",
			Message: "must not be empty",
		})
	}
	if !strings.Contains(req.Email, "@") {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "email",
			Message: "must be a valid email address",
		})
	}

	return fieldErrors
}
