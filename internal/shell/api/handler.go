// Package api exposes the orchestration surface to presentation
// collaborators over HTTP JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/appdeck/appdeck/internal/core/app"
	"github.com/appdeck/appdeck/internal/core/host"
	"github.com/appdeck/appdeck/internal/shell/orchestrate"
	"github.com/appdeck/appdeck/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// HealthTrigger requests an immediate host health sync, so a freshly
// registered host becomes deployable without waiting a full check interval.
type HealthTrigger interface {
	CheckNow(ctx context.Context)
}

// Handler provides HTTP handlers for the orchestration API.
type Handler struct {
	store        store.Store
	orchestrator *orchestrate.Orchestrator
	preflight    *orchestrate.PreflightValidator
	health       HealthTrigger
	logger       *slog.Logger
}

// NewHandler creates a new API handler. health may be nil.
func NewHandler(s store.Store, o *orchestrate.Orchestrator, p *orchestrate.PreflightValidator, health HealthTrigger, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		store:        s,
		orchestrator: o,
		preflight:    p,
		health:       health,
		logger:       l.With("component", "api"),
	}
}

// Router builds the chi router for the API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/hosts", func(r chi.Router) {
			r.Get("/", h.handleListHosts)
			r.Post("/", h.handleRegisterHost)
			r.Delete("/{id}", h.handleDeleteHost)
		})

		r.Route("/deployment", func(r chi.Router) {
			r.Post("/", h.handleDeploy)
			r.Get("/status", h.handleStatus)
			r.Post("/retry", h.handleRetry)
			r.Post("/cleanup", h.handleCleanup)
			r.Post("/preflight", h.handlePreflight)
			r.Post("/validate", h.handleValidate)
		})
	})

	return r
}

// =============================================================================
// Health
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// Hosts
// =============================================================================

type registerHostRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (h *Handler) handleListHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.store.ListHosts(r.Context())
	if err != nil {
		h.logger.Error("list hosts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list hosts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hosts": hosts})
}

func (h *Handler) handleRegisterHost(w http.ResponseWriter, r *http.Request) {
	var req registerHostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newHost, err := host.New(req.Name, req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.CreateHost(r.Context(), newHost); err != nil {
		h.logger.Error("create host failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register host")
		return
	}

	// Sync the new host's status right away instead of waiting for the next
	// health cycle.
	if h.health != nil {
		go h.health.CheckNow(context.Background())
	}

	writeJSON(w, http.StatusCreated, newHost)
}

func (h *Handler) handleDeleteHost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteHost(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "host not found")
			return
		}
		h.logger.Error("delete host failed", "host_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete host")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Deployment
// =============================================================================

type deployRequest struct {
	AppID   string           `json:"app_id"`
	AppName string           `json:"app_name"`
	HostIDs []string         `json:"host_ids"`
	Config  app.DeployConfig `json:"config"`
}

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	intent, err := app.NewIntent(req.AppID, req.AppName, req.HostIDs, req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.orchestrator.Deploy(r.Context(), intent); err != nil {
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, orchestrate.ErrDeployInProgress):
			status = http.StatusConflict
		case errors.Is(err, orchestrate.ErrNotConnected):
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}

	h.writeDeploymentState(w)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeDeploymentState(w)
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.Retry(r.Context()); err != nil {
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, orchestrate.ErrNoAttempt):
			status = http.StatusNotFound
		case errors.Is(err, orchestrate.ErrDeployInProgress):
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	h.writeDeploymentState(w)
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.Cleanup(r.Context()); err != nil {
		if errors.Is(err, orchestrate.ErrCleanupNotApplicable) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeDeploymentState(w)
}

// deploymentState is the read model presentation collaborators consume.
type deploymentState struct {
	Step      orchestrate.Step              `json:"step"`
	Deploying bool                          `json:"deploying"`
	Hosts     []orchestrate.HostRecord      `json:"hosts"`
	Error     string                        `json:"error,omitempty"`
	Result    *orchestrate.DeploymentResult `json:"result,omitempty"`
}

func (h *Handler) writeDeploymentState(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, deploymentState{
		Step:      h.orchestrator.Step(),
		Deploying: h.orchestrator.Deploying(),
		Hosts:     h.orchestrator.HostStatuses(),
		Error:     h.orchestrator.Error(),
		Result:    h.orchestrator.Result(),
	})
}

// =============================================================================
// Preflight / Validation
// =============================================================================

type preflightRequest struct {
	AppID   string           `json:"app_id"`
	HostIDs []string         `json:"host_ids"`
	Config  app.DeployConfig `json:"config"`
}

func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) {
	var req preflightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AppID == "" || len(req.HostIDs) == 0 {
		writeError(w, http.StatusBadRequest, "app_id and host_ids are required")
		return
	}

	// Preflight runs against the first selected host only.
	ok := h.preflight.RunPreflight(r.Context(), req.HostIDs[0], req.AppID, req.Config)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

type validateRequest struct {
	AppID  string           `json:"app_id"`
	Config app.DeployConfig `json:"config"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AppID == "" {
		writeError(w, http.StatusBadRequest, "app_id is required")
		return
	}

	ok := h.preflight.ValidateConfig(r.Context(), req.AppID, req.Config)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

// =============================================================================
// Response Helpers
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
