// Package handler provides HTTP handlers for the NutriPlan API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/nutriplan/nutriplan/internal/api/models"
	"github.com/nutriplan/nutriplan/internal/api/response"
	"github.com/nutriplan/nutriplan/internal/featureflags"
	"github.com/nutriplan/nutriplan/internal/provider/resilience"
)

// CheckFunc probes one dependency for readiness.
type CheckFunc func(ctx context.Context) error

// OpsHandlerConfig holds dependencies for the OpsHandler.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string

	// Checks maps each subsystem name to its readiness probe. A failing
	// "redis" check fails readiness; any other failure only degrades it.
	Checks map[string]CheckFunc

	// Registry reports upstream provider health. Optional.
	Registry *resilience.Registry

	// Flags reports active degradation flags. Optional.
	Flags *featureflags.Service
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsHandlerConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The service
// is ready when the primary store is reachable; a degraded search index or
// unhealthy upstream provider does not fail readiness.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := models.HealthStatusOK
	subsystems := make([]models.SubsystemStatus, 0, len(h.cfg.Checks))
	for name, check := range h.cfg.Checks {
		sub := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err := check(ctx); err != nil {
			detail := err.Error()
			sub.Status = models.HealthStatusFail
			sub.Detail = &detail
			if name == "redis" {
				status = models.HealthStatusFail
			} else if status == models.HealthStatusOK {
				status = models.HealthStatusDegraded
			}
		}
		subsystems = append(subsystems, sub)
	}

	providers := h.providerStatuses()
	for _, p := range providers {
		if p.Status != models.HealthStatusOK && status == models.HealthStatusOK {
			status = models.HealthStatusDegraded
		}
	}

	health := models.SystemStatus{
		Status:                 status,
		Time:                   models.Timestamp(time.Now()),
		Subsystems:             subsystems,
		Providers:              providers,
		ActiveDegradationFlags: h.activeFlags(r.Context()),
	}

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, health)
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.cfg.Registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.cfg.Registry.GetAllHealth()
	providers := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		p := models.ProviderStatus{
			Provider: ph.Name,
			Status:   models.HealthStatusOK,
		}
		switch {
		case ph.IsUnhealthy():
			p.Status = models.HealthStatusFail
		case ph.IsDegraded():
			p.Status = models.HealthStatusDegraded
		}
		if ph.LastSuccessAt != nil {
			ts := models.Timestamp(*ph.LastSuccessAt)
			p.LastSuccessAt = &ts
		}
		if ph.LastFailureAt != nil {
			ts := models.Timestamp(*ph.LastFailureAt)
			p.LastFailureAt = &ts
		}
		if ph.LastError != "" {
			msg := ph.LastError
			p.Message = &msg
		}
		providers = append(providers, p)
	}
	return providers
}

func (h *OpsHandler) activeFlags(ctx context.Context) []string {
	if h.cfg.Flags == nil {
		return nil
	}

	active := make([]string, 0, 4)
	for _, key := range []string{
		featureflags.FlagDisableSemanticSearch,
		featureflags.FlagDisableConditionLookup,
		featureflags.FlagDisablePlanRefresh,
		featureflags.FlagCachedOnlyFoodSelection,
	} {
		if h.cfg.Flags.IsEnabled(ctx, key) {
			active = append(active, key)
		}
	}
	return active
}
