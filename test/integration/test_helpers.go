//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"report-portal/internal/app"
	"report-portal/internal/config"
	"report-portal/internal/model"
)

// fakeRemote is an in-memory Remote Report API.
type fakeRemote struct {
	mu        sync.Mutex
	reports   map[string][]model.Report
	details   map[string]model.ReportDetail
	items     []model.CatalogItem
	failItems bool
	submitted []model.SubmitReportRequest
	queries   []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		reports: map[string][]model.Report{},
		details: map[string]model.ReportDetail{},
		items: []model.CatalogItem{
			{ID: "i1", Name: "Lights", Description: "All lights work"},
			{ID: "i2", Name: "Outlets", Description: "Outlets are covered"},
		},
	}
}

func (f *fakeRemote) addReports(email string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := 1; i <= n; i++ {
		id := "r" + strconv.Itoa(i)
		f.reports[email] = append(f.reports[email], model.Report{
			ID:             id,
			Title:          "Inspection Report " + strconv.Itoa(i),
			SubmissionDate: "2026-03-14",
			Status:         model.ReportStatusPending,
			Class:          "A",
		})
		f.details[id] = model.ReportDetail{
			ID:    id,
			Title: "Inspection Report " + strconv.Itoa(i),
			Items: []model.EvaluatedItem{{ID: "i1", Name: "Lights", Status: model.OutcomeGood}},
		}
	}
}

func (f *fakeRemote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/api/report/getReports":
		f.queries = append(f.queries, r.URL.RawQuery)
		f.listReports(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/report/getReportById/"):
		detail, ok := f.details[strings.TrimPrefix(r.URL.Path, "/api/report/getReportById/")]
		if !ok {
			writeRemoteJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "not found"})
			return
		}
		writeRemoteJSON(w, http.StatusOK, map[string]any{"success": true, "data": detail})
	case strings.HasPrefix(r.URL.Path, "/api/report/download/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/report/download/")
		if _, ok := f.details[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 " + id))
	case r.URL.Path == "/api/item/getAllItems":
		if f.failItems {
			writeRemoteJSON(w, http.StatusInternalServerError, map[string]any{"message": "down"})
			return
		}
		writeRemoteJSON(w, http.StatusOK, map[string]any{"success": true, "items": f.items})
	case r.URL.Path == "/api/report/submit" && r.Method == http.MethodPost:
		var payload model.SubmitReportRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeRemoteJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "bad body"})
			return
		}
		f.submitted = append(f.submitted, payload)
		writeRemoteJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeRemote) listReports(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	all := f.reports[query.Get("studentEmail")]
	if len(all) == 0 {
		writeRemoteJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "no reports"})
		return
	}

	search := strings.ToLower(query.Get("search"))
	matched := make([]model.Report, 0, len(all))
	for _, report := range all {
		if search == "" || strings.Contains(strings.ToLower(report.Title), search) {
			matched = append(matched, report)
		}
	}

	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	totalPages := (len(matched) + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}
	start := (page - 1) * limit
	end := start + limit
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	writeRemoteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"reports": matched[start:end],
			"pagination": model.PaginationInfo{
				CurrentPage:  page,
				TotalPages:   totalPages,
				TotalReports: len(matched),
				HasNext:      page < totalPages,
				HasPrev:      page > 1,
			},
		},
	})
}

func (f *fakeRemote) Submitted() []model.SubmitReportRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SubmitReportRequest(nil), f.submitted...)
}

func writeRemoteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestConfig(t *testing.T, remoteURL string) *config.Config {
	t.Helper()

	catalog, err := config.LoadCatalog("")
	require.NoError(t, err)

	return &config.Config{
		ServerPort:          "8080",
		RequestTimeout:      10 * time.Second,
		DownloadTimeout:     10 * time.Second,
		SessionSecret:       "test-secret",
		SessionTTL:          time.Hour,
		SessionCookieName:   "portal_session",
		CORSOrigins:         []string{"*"},
		RateLimitRPM:        1000,
		SessionRateLimitRPM: 1000,
		ReportAPIBaseURL:    remoteURL,
		ReportAPIPrefix:     "/api/report",
		ReportAPITimeout:    5 * time.Second,
		ReportPageSize:      10,
		SearchDebounce:      20 * time.Millisecond,
		ViewIdleTimeout:     time.Hour,
		DefaultCatalog:      catalog,
		AuditLogFile:        filepath.Join(t.TempDir(), "activity.log"),
		LogFormat:           "pretty",
	}
}

// newPortalServer starts the portal against remote. tweak may adjust the
// config before wiring.
func newPortalServer(t *testing.T, remote *fakeRemote, tweak func(cfg *config.Config)) *httptest.Server {
	t.Helper()

	remoteServer := httptest.NewServer(remote)
	t.Cleanup(remoteServer.Close)

	cfg := newTestConfig(t, remoteServer.URL)
	if tweak != nil {
		tweak(cfg)
	}
	require.NoError(t, cfg.Validate())

	handler, cleanup, err := app.NewHandler(cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
}

func signIn(t *testing.T, server *httptest.Server, email string) string {
	t.Helper()

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/session", map[string]string{"email": email}, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var parsed envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(parsed.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func doJSON(t *testing.T, method string, url string, body any, token string) *http.Response {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// decodeData checks the status code and decodes the envelope data into dst.
func decodeData(t *testing.T, resp *http.Response, status int, dst any) envelope {
	t.Helper()
	defer resp.Body.Close()

	require.Equal(t, status, resp.StatusCode)

	var parsed envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	if dst != nil && len(parsed.Data) > 0 {
		require.NoError(t, json.Unmarshal(parsed.Data, dst))
	}
	return parsed
}
