package handler

import (
	"net/http"

	"report-portal/internal/middleware"
	"report-portal/internal/service"
	"report-portal/pkg/apierror"
)

type ActivityHandler struct {
	service *service.AuditService
}

func NewActivityHandler(service *service.AuditService) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// List returns the signed-in student's own recent activity.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized())
		return
	}

	items, err := h.service.Recent(r.Context(), identity.Email, parseIntOrDefault(r.URL.Query().Get("limit"), 50))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"items": items})
}
