package handler

import (
	"net/http"

	"report-portal/internal/middleware"
	"report-portal/internal/model"
)

func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: middleware.ClientIP(r)}

	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return actor
	}

	actor.SessionID = identity.SessionID
	actor.Email = identity.Email

	return actor
}

func auditStatus(err error) (string, string) {
	if err != nil {
		return "failure", err.Error()
	}
	return "success", ""
}
