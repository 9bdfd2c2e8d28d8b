package reportapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-portal/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Options{BaseURL: server.URL, Token: "upstream-token"})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "ftp://reports.local"})
	require.Error(t, err)

	client, err := New(Options{BaseURL: "http://reports.local/"})
	require.NoError(t, err)
	assert.Equal(t, "/api/report", client.prefix)
	assert.NotNil(t, client.httpClient.Jar)
}

func TestListReportsQuery(t *testing.T) {
	var got *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"reports": []map[string]any{{"id": "r1", "title": "Week 1", "status": "pending", "class": "A"}},
				"pagination": map[string]any{
					"currentPage": 2, "totalPages": 3, "totalReports": 21, "hasNext": true, "hasPrev": true,
				},
			},
		})
	})

	page, err := client.ListReports(context.Background(), ListQuery{
		StudentEmail: "student@example.edu",
		Page:         2,
		Limit:        10,
		Filter:       model.FilterWeekly,
		Search:       "  lab  ",
	})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/api/report/getReports", got.URL.Path)
	assert.Equal(t, "student@example.edu", got.URL.Query().Get("studentEmail"))
	assert.Equal(t, "2", got.URL.Query().Get("page"))
	assert.Equal(t, "10", got.URL.Query().Get("limit"))
	assert.Equal(t, "weekly", got.URL.Query().Get("filter"))
	assert.Equal(t, "lab", got.URL.Query().Get("search"))
	assert.Equal(t, "Bearer upstream-token", got.Header.Get("Authorization"))

	require.Len(t, page.Reports, 1)
	assert.Equal(t, "r1", page.Reports[0].ID)
	assert.Equal(t, 21, page.Pagination.TotalReports)
}

func TestListReportsOmitsAllFilterAndBlankSearch(t *testing.T) {
	var query map[string][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"reports": nil}})
	})

	page, err := client.ListReports(context.Background(), ListQuery{
		StudentEmail: "student@example.edu",
		Page:         1,
		Limit:        10,
		Filter:       model.FilterAll,
		Search:       "   ",
	})
	require.NoError(t, err)

	assert.NotContains(t, query, "filter")
	assert.NotContains(t, query, "search")
	assert.NotNil(t, page.Reports)
	assert.Empty(t, page.Reports)
}

func TestListReportsFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		wantErr error
	}{
		{name: "not found", status: http.StatusNotFound, body: map[string]any{"message": "none"}, wantErr: ErrNotFound},
		{name: "reported failure", status: http.StatusOK, body: map[string]any{"success": false, "message": "nope"}, wantErr: ErrReportedFailure},
		{name: "missing data", status: http.StatusOK, body: map[string]any{"success": true}, wantErr: ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := client.ListReports(context.Background(), ListQuery{StudentEmail: "a@b.co", Page: 1, Limit: 10})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStatusErrorCarriesMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, map[string]any{"message": "database offline"})
	})

	_, err := client.GetReport(context.Background(), "r1")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "database offline", statusErr.Message)
	assert.True(t, IsUpstreamFailure(err))
	assert.Equal(t, "server_error", outcomeOf(err))
}

func TestGetReportEscapesID(t *testing.T) {
	var path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"id":    "a/b",
				"title": "Week 2",
				"items": []map[string]any{{"id": "i1", "name": "Lights", "status": "bad", "comment": "flicker"}},
			},
		})
	})

	detail, err := client.GetReport(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "/api/report/getReportById/a%2Fb", path)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, model.OutcomeBad, detail.Items[0].Status)
}

func TestDownloadReport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/report/download/r9", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	})

	file, err := client.DownloadReport(context.Background(), "r9")
	require.NoError(t, err)
	assert.Equal(t, "report-r9.pdf", file.Filename)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, []byte("%PDF-1.7"), file.Body)
}

func TestDownloadReportRejectsEmptyBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.DownloadReport(context.Background(), "r9")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestDotSegmentIDsNeverReachUpstream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected upstream call to %s", r.URL.Path)
	})

	for _, id := range []string{"", ".", ".."} {
		_, err := client.GetReport(context.Background(), id)
		assert.ErrorIs(t, err, model.ErrInvalidInput, "GetReport(%q)", id)

		_, err = client.DownloadReport(context.Background(), id)
		assert.ErrorIs(t, err, model.ErrInvalidInput, "DownloadReport(%q)", id)
	}
	assert.True(t, ValidReportID("a.b"))
	assert.True(t, ValidReportID("..."))
}

func TestListItems(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/item/getAllItems", r.URL.Path)
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"items":   []map[string]any{{"id": "i1", "name": "Lights", "description": "All lights work"}},
			})
		})

		items, err := client.ListItems(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []model.CatalogItem{{ID: "i1", Name: "Lights", Description: "All lights work"}}, items)
	})

	t.Run("missing items", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []string{}})
		})

		_, err := client.ListItems(context.Background())
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})
}

func TestSubmitReport(t *testing.T) {
	var received model.SubmitReportRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/report/submit", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "saved"})
	})

	result, err := client.SubmitReport(context.Background(), model.SubmitReportRequest{
		ReporterEmail:  "student@example.edu",
		Title:          "Inspection Report - 2026-03-14",
		GeneralComment: "No general comment provided",
		Category:       "daily",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "student@example.edu", received.ReporterEmail)
	assert.Equal(t, "daily", received.Category)
}

func TestSubmitReportReportedFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "duplicate"})
	})

	result, err := client.SubmitReport(context.Background(), model.SubmitReportRequest{})
	assert.ErrorIs(t, err, ErrReportedFailure)
	assert.Equal(t, "duplicate", result.Message)
}

func TestCanceledRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{}})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListReports(ctx, ListQuery{StudentEmail: "a@b.co", Page: 1, Limit: 10})
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.Equal(t, "transport_error", outcomeOf(err))
}
