// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/openpace/paceline/internal/domain/model"
)

// MembershipHandler handles subscription phase requests.
type MembershipHandler struct {
	deps Dependencies
}

// NewMembershipHandler creates a new membership handler.
func NewMembershipHandler(deps Dependencies) *MembershipHandler {
	return &MembershipHandler{deps: deps}
}

// HandleGetMembership handles
// GET /membership/{competition}/{participant} requests.
func (h *MembershipHandler) HandleGetMembership(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/membership/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: expected /membership/{competition}/{participant}", ErrBadRequest))
		return
	}

	m, err := h.deps.GetMembership(r.Context(), parts[0], model.Identity(parts[1]))
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
