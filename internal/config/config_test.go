package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("REPORT_API_BASE_URL", "https://reports.example.edu")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "/api/report", cfg.ReportAPIPrefix)
	assert.Equal(t, 10, cfg.ReportPageSize)
	assert.Equal(t, 500*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, "portal_session", cfg.SessionCookieName)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Len(t, cfg.DefaultCatalog, 5)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("REPORT_API_BASE_URL", "http://localhost:4000")
	t.Setenv("REPORT_PAGE_SIZE", "25")
	t.Setenv("SEARCH_DEBOUNCE", "250ms")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example.edu, https://b.example.edu")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.ReportPageSize)
	assert.Equal(t, 250*time.Millisecond, cfg.SearchDebounce)
	assert.True(t, cfg.SessionCookieSecure)
	assert.Equal(t, []string{"https://a.example.edu", "https://b.example.edu"}, cfg.CORSOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadRequiresSecretAndBaseURL(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("REPORT_API_BASE_URL", "https://reports.example.edu")
	_, err := Load()
	require.ErrorContains(t, err, "SESSION_SECRET")

	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("REPORT_API_BASE_URL", "reports.example.edu")
	_, err = Load()
	require.ErrorContains(t, err, "REPORT_API_BASE_URL")
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"x1","name":"Desk","description":"Desk is tidy"}]`), 0o644))

	items, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Desk", items[0].Name)

	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"","name":"Desk"}]`), 0o644))
	_, err = LoadCatalog(path)
	require.Error(t, err)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
