package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-portal/internal/event"
	"report-portal/internal/middleware"
	"report-portal/internal/model"
	"report-portal/internal/reportapi"
	"report-portal/internal/service"
	"report-portal/internal/view/submission"
	"report-portal/pkg/apierror"
)

type fakePortalAPI struct {
	mu          sync.Mutex
	downloadErr error
	submitted   int
}

func (f *fakePortalAPI) ListReports(context.Context, reportapi.ListQuery) (reportapi.ReportPage, error) {
	return reportapi.ReportPage{Reports: []model.Report{}, Pagination: model.DefaultPagination()}, nil
}

func (f *fakePortalAPI) GetReport(_ context.Context, id string) (model.ReportDetail, error) {
	return model.ReportDetail{ID: id}, nil
}

func (f *fakePortalAPI) DownloadReport(_ context.Context, id string) (model.ReportFile, error) {
	if f.downloadErr != nil {
		return model.ReportFile{}, f.downloadErr
	}
	return model.ReportFile{ContentType: "application/pdf", Body: []byte("%PDF " + id)}, nil
}

func (f *fakePortalAPI) ListItems(context.Context) ([]model.CatalogItem, error) {
	return []model.CatalogItem{{ID: "i1", Name: "Lights"}, {ID: "i2", Name: "Outlets"}}, nil
}

func (f *fakePortalAPI) SubmitReport(context.Context, model.SubmitReportRequest) (model.SubmitReportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted++
	return model.SubmitReportResult{Success: true}, nil
}

var testIdentity = model.Identity{SessionID: "s-1", Email: "student@example.edu"}

func newTestServices(t *testing.T, api *fakePortalAPI) (*service.ViewService, *service.AuditService) {
	t.Helper()

	views := service.NewViewService(api, event.NewBus(), service.ViewOptions{})
	t.Cleanup(func() { views.Drop(testIdentity.SessionID) })

	store, err := service.NewFileAuditStore(filepath.Join(t.TempDir(), "activity.log"))
	require.NoError(t, err)
	return views, service.NewAuditService(store)
}

func newAuthedRequest(method string, target string, body string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(middleware.WithIdentity(req.Context(), testIdentity))

	if len(params) > 0 {
		routeCtx := chi.NewRouteContext()
		for key, value := range params {
			routeCtx.URLParams.Add(key, value)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	}
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *model.APIError {
	t.Helper()

	var resp model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		status   int
	}{
		{name: "api error", err: apierror.New("VALIDATION_FAILED", "bad", "email:email", http.StatusBadRequest), wantCode: "VALIDATION_FAILED", status: http.StatusBadRequest},
		{name: "incomplete", err: &submission.ValidationError{Kind: submission.ValidationIncomplete, Title: "Incomplete Form"}, wantCode: "INCOMPLETE_FORM", status: http.StatusUnprocessableEntity},
		{name: "comments", err: &submission.ValidationError{Kind: submission.ValidationCommentsRequired}, wantCode: "COMMENTS_REQUIRED", status: http.StatusUnprocessableEntity},
		{name: "expired", err: model.ErrSessionExpired, wantCode: "SESSION_EXPIRED", status: http.StatusUnauthorized},
		{name: "unauthorized", err: model.ErrUnauthorized, wantCode: "UNAUTHORIZED", status: http.StatusUnauthorized},
		{name: "report missing", err: fmt.Errorf("get report: %w", reportapi.ErrNotFound), wantCode: "NOT_FOUND", status: http.StatusNotFound},
		{name: "item missing", err: model.ErrItemNotFound, wantCode: "NOT_FOUND", status: http.StatusNotFound},
		{name: "download busy", err: model.ErrDownloadInProgress, wantCode: "DOWNLOAD_IN_PROGRESS", status: http.StatusConflict},
		{name: "submit busy", err: model.ErrSubmitInProgress, wantCode: "SUBMIT_IN_PROGRESS", status: http.StatusConflict},
		{name: "timeout", err: fmt.Errorf("list: %w", context.DeadlineExceeded), wantCode: "UPSTREAM_TIMEOUT", status: http.StatusGatewayTimeout},
		{name: "upstream", err: &reportapi.StatusError{StatusCode: 500, Message: "boom"}, wantCode: "UPSTREAM_ERROR", status: http.StatusBadGateway},
		{name: "invalid response", err: reportapi.ErrInvalidResponse, wantCode: "UPSTREAM_ERROR", status: http.StatusBadGateway},
		{name: "unknown", err: errors.New("boom"), wantCode: "INTERNAL_ERROR", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestDecodeBodyValidation(t *testing.T) {
	var payload model.StartSessionRequest
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session", strings.NewReader(`{"email":"nope"}`))
	err := decodeBody(httptest.NewRecorder(), req, &payload)

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "VALIDATION_FAILED", apiErr.Code)
	assert.Equal(t, "email:email", apiErr.Details)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/session", strings.NewReader(`{"email":`))
	err = decodeBody(httptest.NewRecorder(), req, &payload)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "BAD_REQUEST", apiErr.Code)
}

func TestDownloadSetsAttachmentHeaders(t *testing.T) {
	views, audit := newTestServices(t, &fakePortalAPI{})
	h := NewReportsHandler(views, audit)

	rec := httptest.NewRecorder()
	h.Download(rec, newAuthedRequest(http.MethodGet, "/api/v1/reports/r7/download", "", map[string]string{"id": "r7"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	disposition, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, map[string]string{"filename": "report-r7.pdf"}, params)
	assert.Equal(t, "7", rec.Header().Get("Content-Length"))
	assert.Equal(t, "%PDF r7", rec.Body.String())

	entries, err := audit.Recent(context.Background(), testIdentity.Email, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, service.AuditReportDownloaded, entries[0].Action)
	assert.Equal(t, "success", entries[0].Status)
	assert.Equal(t, "r7", entries[0].Resource)
}

func TestDownloadEscapesFilename(t *testing.T) {
	views, audit := newTestServices(t, &fakePortalAPI{})
	h := NewReportsHandler(views, audit)

	id := `a"; filename=evil.exe; x="`
	rec := httptest.NewRecorder()
	h.Download(rec, newAuthedRequest(http.MethodGet, "/api/v1/reports/x/download", "", map[string]string{"id": id}))

	require.Equal(t, http.StatusOK, rec.Code)
	disposition, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, map[string]string{"filename": "report-" + id + ".pdf"}, params)
}

func TestDownloadRejectsDotSegmentID(t *testing.T) {
	views, audit := newTestServices(t, &fakePortalAPI{})
	h := NewReportsHandler(views, audit)

	rec := httptest.NewRecorder()
	h.Download(rec, newAuthedRequest(http.MethodGet, "/api/v1/reports/../download", "", map[string]string{"id": ".."}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestDownloadUpstreamFailure(t *testing.T) {
	views, audit := newTestServices(t, &fakePortalAPI{downloadErr: &reportapi.StatusError{StatusCode: 500}})
	h := NewReportsHandler(views, audit)

	rec := httptest.NewRecorder()
	h.Download(rec, newAuthedRequest(http.MethodGet, "/api/v1/reports/r7/download", "", map[string]string{"id": "r7"}))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "UPSTREAM_ERROR", decodeError(t, rec).Code)

	entries, err := audit.Recent(context.Background(), testIdentity.Email, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "failure", entries[0].Status)
}

func TestSetFilterRejectsUnknownPeriod(t *testing.T) {
	views, audit := newTestServices(t, &fakePortalAPI{})
	h := NewReportsHandler(views, audit)

	rec := httptest.NewRecorder()
	h.SetFilter(rec, newAuthedRequest(http.MethodPut, "/api/v1/reports/filter", `{"filter":"yearly"}`, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decodeError(t, rec).Code)
}

func TestSubmitValidationIsNotAudited(t *testing.T) {
	api := &fakePortalAPI{}
	views, audit := newTestServices(t, api)
	h := NewSubmissionHandler(views, audit)

	rec := httptest.NewRecorder()
	h.Submit(rec, newAuthedRequest(http.MethodPost, "/api/v1/submission/submit", "", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, "INCOMPLETE_FORM", apiErr.Code)
	assert.Equal(t, "Incomplete Form", apiErr.Message)

	entries, err := audit.Recent(context.Background(), testIdentity.Email, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, api.submitted)
}

func TestSubmitAfterMarkAllGood(t *testing.T) {
	api := &fakePortalAPI{}
	views, audit := newTestServices(t, api)
	h := NewSubmissionHandler(views, audit)

	rec := httptest.NewRecorder()
	h.MarkAllGood(rec, newAuthedRequest(http.MethodPost, "/api/v1/submission/mark-all-good", "", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Submit(rec, newAuthedRequest(http.MethodPost, "/api/v1/submission/submit", "", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, api.submitted)

	entries, err := audit.Recent(context.Background(), testIdentity.Email, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, service.AuditReportSubmitted, entries[0].Action)
}

func TestHandlersRequireIdentity(t *testing.T) {
	views, audit := newTestServices(t, &fakePortalAPI{})
	reports := NewReportsHandler(views, audit)

	rec := httptest.NewRecorder()
	reports.State(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
}

func TestHealthReportsDegradedDatabase(t *testing.T) {
	h := NewHealthHandler(func(context.Context) error { return errors.New("down") }, func() int { return 3 })

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)

	h = NewHealthHandler(nil, nil)
	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"disabled"`)
}
