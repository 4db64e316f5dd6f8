// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// refreshRequest mirrors the OpenAPI schema for POST /refresh.
type refreshRequest struct {
	CompetitionID string `json:"competition_id"`
	Force         bool   `json:"force"`
}

func (r refreshRequest) validate() error {
	if strings.TrimSpace(r.CompetitionID) == "" {
		return fmt.Errorf("%w: missing competition_id", ErrBadRequest)
	}
	return nil
}

type refreshResponse struct {
	Status string `json:"status"`
}

// RefreshHandler handles manual refresh triggers.
type RefreshHandler struct {
	deps Dependencies
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps Dependencies) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

// HandlePostRefresh handles POST /refresh requests. The trigger is
// fire-and-forget: 202 means the request was queued, the refresh itself
// honors single-flight and caching rules.
func (h *RefreshHandler) HandlePostRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	if !h.deps.RequestRefresh(r.Context(), req.CompetitionID, req.Force) {
		writeError(w, http.StatusTooManyRequests, "backpressure", ErrQueueFull)
		return
	}
	writeJSON(w, http.StatusAccepted, refreshResponse{Status: "queued"})
}
