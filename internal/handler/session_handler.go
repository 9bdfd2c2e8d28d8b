package handler

import (
	"net/http"
	"time"

	"report-portal/internal/event"
	"report-portal/internal/middleware"
	"report-portal/internal/model"
	"report-portal/internal/service"
	"report-portal/internal/session"
	"report-portal/pkg/apierror"
)

type CookieOptions struct {
	Name   string
	Secure bool
}

type SessionHandler struct {
	sessions *session.Manager
	views    *service.ViewService
	audit    *service.AuditService
	bus      event.Bus
	cookie   CookieOptions
}

func NewSessionHandler(sessions *session.Manager, views *service.ViewService, audit *service.AuditService, bus event.Bus, cookie CookieOptions) *SessionHandler {
	return &SessionHandler{sessions: sessions, views: views, audit: audit, bus: bus, cookie: cookie}
}

type sessionData struct {
	Identity model.Identity `json:"identity"`
	Token    string         `json:"token,omitempty"`
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var payload model.StartSessionRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	identity, token, err := h.sessions.Start(r.Context(), payload.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	actor := model.AuditActor{SessionID: identity.SessionID, Email: identity.Email, IP: middleware.ClientIP(r)}
	h.audit.Log(r.Context(), service.AuditSessionStarted, actor, "success", "", nil, "")

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  identity.ExpiresAt,
		MaxAge:   int(time.Until(identity.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeSuccess(w, http.StatusCreated, sessionData{Identity: identity, Token: token})
}

func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized())
		return
	}

	writeSuccess(w, http.StatusOK, sessionData{Identity: identity})
}

// End signs the student out: the session is revoked, its views are closed
// and its live connections are told the session ended.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	actor := actorFromRequest(r)

	sessionID, err := h.sessions.End(r.Context(), middleware.SessionToken(r, h.cookie.Name))
	if err != nil {
		writeError(w, err)
		return
	}

	h.views.Drop(sessionID)
	h.bus.Publish(event.Event{Type: event.TypeSessionEnded, SessionID: sessionID})
	h.audit.Log(r.Context(), service.AuditSessionEnded, actor, "success", "", nil, "")

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeSuccess(w, http.StatusOK, map[string]any{"signed_out": true})
}
