package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"report-portal/internal/middleware"
	"report-portal/internal/model"
	"report-portal/internal/service"
	"report-portal/internal/view/submission"
	"report-portal/pkg/apierror"
)

type SubmissionHandler struct {
	views *service.ViewService
	audit *service.AuditService
}

func NewSubmissionHandler(views *service.ViewService, audit *service.AuditService) *SubmissionHandler {
	return &SubmissionHandler{views: views, audit: audit}
}

func (h *SubmissionHandler) view(w http.ResponseWriter, r *http.Request) (*submission.View, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized())
		return nil, false
	}
	return h.views.Submission(r.Context(), identity), true
}

func (h *SubmissionHandler) State(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}

	writeSuccess(w, http.StatusOK, view.State())
}

func (h *SubmissionHandler) SetItemStatus(w http.ResponseWriter, r *http.Request) {
	var payload model.ItemStatusRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	view, ok := h.view(w, r)
	if !ok {
		return
	}

	state, err := view.SetStatus(chi.URLParam(r, "id"), model.ItemStatus(payload.Status))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, state)
}

func (h *SubmissionHandler) SetItemComment(w http.ResponseWriter, r *http.Request) {
	var payload model.CommentRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	view, ok := h.view(w, r)
	if !ok {
		return
	}

	state, err := view.SetComment(chi.URLParam(r, "id"), payload.Comment)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, state)
}

func (h *SubmissionHandler) SetGeneralComment(w http.ResponseWriter, r *http.Request) {
	var payload model.CommentRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	view, ok := h.view(w, r)
	if !ok {
		return
	}

	state, err := view.SetGeneralComment(payload.Comment)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, state)
}

func (h *SubmissionHandler) MarkAllGood(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}

	state, err := view.MarkAllGood()
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, state)
}

func (h *SubmissionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}

	state, err := view.ClearSelection()
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, state)
}

func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}

	stats := view.Stats()
	state, err := view.Submit(r.Context())
	var invalid *submission.ValidationError
	if !errors.As(err, &invalid) {
		status, errText := auditStatus(err)
		h.audit.Log(r.Context(), service.AuditReportSubmitted, actorFromRequest(r), status, "", stats, errText)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, state)
}
