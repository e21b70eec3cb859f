// Package handler provides HTTP handlers for the EcoLyon API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ecolyon/ecolyon/internal/api/models"
	"github.com/ecolyon/ecolyon/internal/api/response"
	"github.com/ecolyon/ecolyon/internal/provider/resilience"
)

const dependencyCheckTimeout = 2 * time.Second

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency is a named subsystem checked by the readiness probe.
type Dependency struct {
	Name   string
	Pinger Pinger
}

// OpsConfig holds configuration for the OpsHandler.
type OpsConfig struct {
	Version      string
	BuildTime    string
	Registry     *resilience.Registry
	Dependencies []Dependency
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version      string
	buildTime    string
	registry     *resilience.Registry
	dependencies []Dependency
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:      cfg.Version,
		buildTime:    cfg.BuildTime,
		registry:     cfg.Registry,
		dependencies: cfg.Dependencies,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - fails when a dependency is unreachable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.checkDependencies(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	status := http.StatusOK

	details := make(map[string]any, len(subsystems))
	for _, s := range subsystems {
		details[s.Name] = s.Status
		if s.Status == models.HealthStatusFail {
			health.Status = models.HealthStatusFail
			status = http.StatusServiceUnavailable
		}
	}
	if len(details) > 0 {
		health.Details = details
	}

	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.checkDependencies(r.Context()),
		Providers:  []models.ProviderStatus{},
	}

	for _, s := range status.Subsystems {
		if s.Status == models.HealthStatusFail {
			status.Status = models.HealthStatusFail
		}
	}

	if h.registry != nil {
		for _, ph := range h.registry.GetAllHealth() {
			ps := providerStatus(ph)
			if ps.Status != models.HealthStatusOK && status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) checkDependencies(ctx context.Context) []models.SubsystemStatus {
	subsystems := make([]models.SubsystemStatus, 0, len(h.dependencies))

	for _, dep := range h.dependencies {
		checkCtx, cancel := context.WithTimeout(ctx, dependencyCheckTimeout)
		err := dep.Pinger.Ping(checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: dep.Name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		subsystems = append(subsystems, s)
	}

	return subsystems
}

func providerStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:     ph.Name,
		Status:       models.HealthStatusOK,
		CircuitState: ph.CircuitState.String(),
	}

	switch {
	case ph.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case ph.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}

	if ph.LastSuccessAt != nil {
		ps.LastSuccessAt = models.NewTimestampPtr(*ph.LastSuccessAt)
	}
	if ph.LastFailureAt != nil {
		ps.LastFailureAt = models.NewTimestampPtr(*ph.LastFailureAt)
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}

	return ps
}
