package handler

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"report-portal/internal/middleware"
	"report-portal/internal/model"
	"report-portal/internal/service"
	"report-portal/internal/view/reportlist"
	"report-portal/pkg/apierror"
)

type ReportsHandler struct {
	views *service.ViewService
	audit *service.AuditService
}

func NewReportsHandler(views *service.ViewService, audit *service.AuditService) *ReportsHandler {
	return &ReportsHandler{views: views, audit: audit}
}

func (h *ReportsHandler) view(w http.ResponseWriter, r *http.Request) (*reportlist.View, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized())
		return nil, false
	}
	return h.views.ReportList(r.Context(), identity), true
}

func (h *ReportsHandler) State(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}

	writeSuccess(w, http.StatusOK, view.State())
}

func (h *ReportsHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var payload model.FilterRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	view, ok := h.view(w, r)
	if !ok {
		return
	}

	state, err := view.SetFilter(r.Context(), model.ReportFilter(payload.Filter))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, state)
}

func (h *ReportsHandler) SetSearch(w http.ResponseWriter, r *http.Request) {
	var payload model.SearchRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	view, ok := h.view(w, r)
	if !ok {
		return
	}

	writeSuccess(w, http.StatusOK, view.SetSearch(r.Context(), payload.Query))
}

func (h *ReportsHandler) ChangePage(w http.ResponseWriter, r *http.Request) {
	var payload model.PageRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	view, ok := h.view(w, r)
	if !ok {
		return
	}

	writeSuccess(w, http.StatusOK, view.ChangePage(r.Context(), payload.Page))
}

func (h *ReportsHandler) OpenDetail(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}

	modal, err := view.OpenDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, modal)
}

func (h *ReportsHandler) RetryDetail(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}

	modal, err := view.RetryDetail(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, modal)
}

func (h *ReportsHandler) CloseDetail(w http.ResponseWriter, r *http.Request) {
	var payload model.CloseDetailRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	view, ok := h.view(w, r)
	if !ok {
		return
	}

	reason := reportlist.CloseReason(payload.Reason)
	if reason == "" {
		reason = reportlist.CloseButton
	}

	modal, err := view.CloseDetail(reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, modal)
}

// Download relays the report PDF to the browser as an attachment.
func (h *ReportsHandler) Download(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}

	reportID := chi.URLParam(r, "id")
	file, err := view.Download(r.Context(), reportID)
	status, errText := auditStatus(err)
	h.audit.Log(r.Context(), service.AuditReportDownloaded, actorFromRequest(r), status, reportID, nil, errText)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Body)
}
