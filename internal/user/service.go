package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/diet"
	"github.com/nutriplan/nutriplan/internal/record"
)

// Record kinds in the primary store.
const (
	kindUser      = "user"
	kindCondition = "condition"
)

// Store is the repository surface the user service depends on.
type Store interface {
	Create(ctx context.Context, kind string, fields map[string]any) (*record.Record, error)
	CreateOwned(ctx context.Context, kind string, fields map[string]any, ownerSetKey string) (*record.Record, error)
	Get(ctx context.Context, kind, id string) (*record.Record, error)
	Update(ctx context.Context, kind, id string, fields map[string]any) (*record.Record, error)
	Delete(ctx context.Context, kind, id, ownerSetKey string) error
	ListOwned(ctx context.Context, kind, ownerSetKey string) ([]*record.Record, error)
	ListKind(ctx context.Context, kind string) ([]*record.Record, error)
	Search(ctx context.Context, kind, query string) ([]*record.Record, error)
}

// ServiceConfig holds the dependencies of the user service.
type ServiceConfig struct {
	Store  Store
	Logger zerolog.Logger
}

// Service implements user account and condition management. It also
// satisfies the plan generator's user store interface.
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService creates a user service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		store:  cfg.Store,
		logger: cfg.Logger.With().Str("component", "user_service").Logger(),
	}
}

// conditionsKey is the set holding a user's condition record ids.
func conditionsKey(userID string) string {
	return "user:" + userID + ":conditions"
}

// CreateUserParams are the fields accepted when registering a user.
type CreateUserParams struct {
	Username      string
	Email         string
	HealthProfile *diet.HealthProfile
	Preferences   diet.Preferences
}

// CreateUser registers a new user.
func (s *Service) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	username := strings.TrimSpace(params.Username)
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}

	fields := map[string]any{
		"username":    username,
		"email":       email,
		"preferences": params.Preferences,
	}
	if params.HealthProfile != nil {
		fields["healthProfile"] = params.HealthProfile
	}

	rec, err := s.store.Create(ctx, kindUser, fields)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Str("user_id", rec.ID).Msg("user created")
	return userFromRecord(rec)
}

// GetUser loads one user by id.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	rec, err := s.store.Get(ctx, kindUser, userID)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return userFromRecord(rec)
}

// UpdateProfile replaces a user's health profile.
func (s *Service) UpdateProfile(ctx context.Context, userID string, profile diet.HealthProfile) (*User, error) {
	rec, err := s.store.Update(ctx, kindUser, userID, map[string]any{
		"healthProfile": profile,
	})
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return userFromRecord(rec)
}

// UpdatePreferences replaces a user's meal preferences.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, prefs diet.Preferences) (*User, error) {
	rec, err := s.store.Update(ctx, kindUser, userID, map[string]any{
		"preferences": prefs,
	})
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	return userFromRecord(rec)
}

// AddConditionParams are the fields accepted when tracking a condition.
type AddConditionParams struct {
	Name     string
	Severity string
	Symptoms []string
}

// AddCondition records a medical condition for a user.
func (s *Service) AddCondition(ctx context.Context, userID string, params AddConditionParams) (*Condition, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: condition name is required", ErrInvalidInput)
	}
	if !validSeverity(params.Severity) {
		return nil, fmt.Errorf("%w: severity must be mild, moderate, or severe", ErrInvalidInput)
	}

	// The user must exist before a condition can be attached.
	if _, err := s.store.Get(ctx, kindUser, userID); err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("check user: %w", err)
	}

	fields := map[string]any{
		"userId":       userID,
		"condition":    name,
		"dateRecorded": time.Now().UTC().Format(time.RFC3339),
	}
	if params.Severity != "" {
		fields["severity"] = params.Severity
	}
	if len(params.Symptoms) > 0 {
		fields["symptoms"] = params.Symptoms
	}

	rec, err := s.store.CreateOwned(ctx, kindCondition, fields, conditionsKey(userID))
	if err != nil {
		return nil, fmt.Errorf("add condition: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("condition_id", rec.ID).
		Str("condition", name).
		Msg("condition recorded")
	return conditionFromRecord(rec)
}

// ListConditions returns all tracked conditions for a user.
func (s *Service) ListConditions(ctx context.Context, userID string) ([]*Condition, error) {
	records, err := s.store.ListOwned(ctx, kindCondition, conditionsKey(userID))
	if err != nil {
		return nil, fmt.Errorf("list conditions: %w", err)
	}

	conditions := make([]*Condition, 0, len(records))
	for _, rec := range records {
		condition, err := conditionFromRecord(rec)
		if err != nil {
			s.logger.Warn().Err(err).Str("condition_id", rec.ID).Msg("skipping malformed condition record")
			continue
		}
		conditions = append(conditions, condition)
	}
	return conditions, nil
}

// RemoveCondition deletes one tracked condition.
func (s *Service) RemoveCondition(ctx context.Context, userID, conditionID string) error {
	rec, err := s.store.Get(ctx, kindCondition, conditionID)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return fmt.Errorf("%w: condition %s", ErrNotFound, conditionID)
		}
		return fmt.Errorf("get condition: %w", err)
	}
	if rec.StringField("userId") != userID {
		return fmt.Errorf("%w: condition %s", ErrNotFound, conditionID)
	}
	if err := s.store.Delete(ctx, kindCondition, conditionID, conditionsKey(userID)); err != nil {
		return fmt.Errorf("remove condition: %w", err)
	}
	return nil
}

// GetPlan returns the user's current diet plan, or nil when none has been
// generated yet.
func (s *Service) GetPlan(ctx context.Context, userID string) (*diet.DietPlan, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.DietPlan, nil
}

// SearchUsers performs a semantic search over user profiles. Results are
// best-effort: an unavailable index yields an empty list.
func (s *Service) SearchUsers(ctx context.Context, query string) ([]*User, error) {
	records, err := s.store.Search(ctx, kindUser, query)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	users := make([]*User, 0, len(records))
	for _, rec := range records {
		u, err := userFromRecord(rec)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", rec.ID).Msg("skipping malformed search result")
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// ListUsers loads every registered user. Used by the background plan
// refresh; the API never exposes a full listing.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	records, err := s.store.ListKind(ctx, kindUser)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]*User, 0, len(records))
	for _, rec := range records {
		u, err := userFromRecord(rec)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", rec.ID).Msg("skipping malformed user record")
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// SearchConditions performs a semantic search over recorded conditions.
// Results are best-effort: an unavailable index yields an empty list.
func (s *Service) SearchConditions(ctx context.Context, query string) ([]*Condition, error) {
	records, err := s.store.Search(ctx, kindCondition, query)
	if err != nil {
		return nil, fmt.Errorf("search conditions: %w", err)
	}

	conditions := make([]*Condition, 0, len(records))
	for _, rec := range records {
		cond, err := conditionFromRecord(rec)
		if err != nil {
			s.logger.Warn().Err(err).Str("condition_id", rec.ID).Msg("skipping malformed search result")
			continue
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}

// LoadSubject assembles the plan generator's view of a user: the health
// profile with tracked conditions folded into its condition list.
func (s *Service) LoadSubject(ctx context.Context, userID string) (*diet.PlanSubject, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", diet.ErrUserNotFound, userID)
		}
		return nil, err
	}

	profile := u.HealthProfile
	if profile != nil {
		tracked, err := s.ListConditions(ctx, userID)
		if err != nil {
			// Tracked conditions enrich the profile but are not required
			// for plan generation.
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("could not load tracked conditions")
		} else {
			profile.MedicalConditions = mergeConditions(profile.MedicalConditions, tracked)
		}
	}

	return &diet.PlanSubject{
		UserID:      userID,
		Profile:     profile,
		Preferences: u.Preferences,
	}, nil
}

// StorePlan replaces the user's stored diet plan.
func (s *Service) StorePlan(ctx context.Context, userID string, plan *diet.DietPlan) error {
	_, err := s.store.Update(ctx, kindUser, userID, map[string]any{
		"dietPlan": plan,
	})
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return fmt.Errorf("%w: %s", diet.ErrUserNotFound, userID)
		}
		return fmt.Errorf("store plan: %w", err)
	}
	return nil
}

// mergeConditions appends tracked condition names not already present in
// the profile list, comparing case-insensitively.
func mergeConditions(existing []string, tracked []*Condition) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		seen[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	merged := existing
	for _, condition := range tracked {
		key := strings.ToLower(strings.TrimSpace(condition.Name))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, condition.Name)
	}
	return merged
}

func userFromRecord(rec *record.Record) (*User, error) {
	u := &User{
		ID:        rec.ID,
		Username:  rec.StringField("username"),
		Email:     rec.StringField("email"),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}

	if raw := rec.Field("healthProfile"); raw != nil {
		var profile diet.HealthProfile
		if err := decodeField(raw, &profile); err != nil {
			return nil, fmt.Errorf("user %s: %w", rec.ID, err)
		}
		u.HealthProfile = &profile
	}
	if raw := rec.Field("preferences"); raw != nil {
		if err := decodeField(raw, &u.Preferences); err != nil {
			return nil, fmt.Errorf("user %s: %w", rec.ID, err)
		}
	}
	if raw := rec.Field("dietPlan"); raw != nil {
		var plan diet.DietPlan
		if err := decodeField(raw, &plan); err != nil {
			return nil, fmt.Errorf("user %s: %w", rec.ID, err)
		}
		u.DietPlan = &plan
	}
	return u, nil
}

func conditionFromRecord(rec *record.Record) (*Condition, error) {
	condition := &Condition{
		ID:       rec.ID,
		UserID:   rec.StringField("userId"),
		Name:     rec.StringField("condition"),
		Severity: rec.StringField("severity"),
	}
	if condition.Name == "" {
		return nil, fmt.Errorf("condition %s: missing name", rec.ID)
	}
	if raw := rec.Field("symptoms"); raw != nil {
		if err := decodeField(raw, &condition.Symptoms); err != nil {
			return nil, fmt.Errorf("condition %s: %w", rec.ID, err)
		}
	}
	if recorded := rec.StringField("dateRecorded"); recorded != "" {
		condition.DateRecorded, _ = time.Parse(time.RFC3339, recorded)
	}
	return condition, nil
}
