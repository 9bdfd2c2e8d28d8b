package handler

import (
	"log/slog"
	"net/http"

	gorillaws "github.com/gorilla/websocket"

	"report-portal/internal/middleware"
	"report-portal/internal/websocket"
	"report-portal/pkg/apierror"
)

type WSHandler struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
}

func NewWSHandler(hub *websocket.Hub, allowedOrigins []string) *WSHandler {
	return &WSHandler{hub: hub, upgrader: websocket.NewUpgrader(allowedOrigins)}
}

// Connect upgrades to a websocket that streams the session's toasts and
// view state changes.
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "session_id", identity.SessionID, "error", err)
		return
	}

	h.hub.Serve(conn, identity.SessionID)
}
