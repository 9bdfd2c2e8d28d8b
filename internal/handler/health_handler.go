package handler

import (
	"context"
	"net/http"
	"time"
)

type HealthHandler struct {
	// dbCheck is nil when no database is configured.
	dbCheck func(ctx context.Context) error
	clients func() int
}

func NewHealthHandler(dbCheck func(ctx context.Context) error, clients func() int) *HealthHandler {
	return &HealthHandler{dbCheck: dbCheck, clients: clients}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"status": "ok", "database": "disabled"}
	if h.clients != nil {
		data["websocket_clients"] = h.clients()
	}

	if h.dbCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.dbCheck(ctx); err != nil {
			data["status"] = "degraded"
			data["database"] = "unreachable"
			writeSuccess(w, http.StatusServiceUnavailable, data)
			return
		}
		data["database"] = "ok"
	}

	writeSuccess(w, http.StatusOK, data)
}
