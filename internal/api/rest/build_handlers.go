package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/pipeline"
)

// BuildService queues and reports feature builds.
type BuildService interface {
	Enqueue(ctx context.Context, req pipeline.Request) (*pipeline.Job, error)
	GetStatus(ctx context.Context) (*pipeline.StatusSummary, error)
}

// BuildHandler proxies API calls to the build service.
type BuildHandler struct {
	service BuildService
	cache   FormCache
}

// NewBuildHandler wires the REST layer to the build service.
func NewBuildHandler(service BuildService, formCache FormCache) *BuildHandler {
	return &BuildHandler{service: service, cache: formCache}
}

// HandleBuildRequest handles POST /api/v1/builds
func (h *BuildHandler) HandleBuildRequest(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	job, err := h.service.Enqueue(r.Context(), req)
	if errors.Is(err, pipeline.ErrInvalidRequest) {
		respondError(w, http.StatusBadRequest, "Invalid build request", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue build", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job": job,
	})
}

// HandleBuildStatus handles GET /api/v1/builds/status
func (h *BuildHandler) HandleBuildStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

// HandleLastBuild handles GET /api/v1/builds/latest
func (h *BuildHandler) HandleLastBuild(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		respondError(w, http.StatusServiceUnavailable, "Cache not configured", nil)
		return
	}

	result, err := h.cache.LastBuild(r.Context())
	if errors.Is(err, cache.ErrCacheMiss) {
		respondError(w, http.StatusNotFound, "No build recorded", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch last build", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func buildStatusPayload(summary *pipeline.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active jobs",
		"history": []*pipeline.Job{},
	}

	if summary.ActiveJob != nil {
		response["status"] = summary.ActiveJob.Status
		if summary.ActiveJob.StatusMessage != nil {
			response["message"] = *summary.ActiveJob.StatusMessage
		}
		response["active_job"] = summary.ActiveJob
	}

	if len(summary.History) > 0 {
		response["history"] = summary.History
	}
	return response
}
