package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"report-portal/internal/model"
)

//go:embed default_catalog.json
var defaultCatalogJSON []byte

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	DownloadTimeout         time.Duration
	DatabaseURL             string
	DBMaxConns              int32
	DBMinConns              int32
	SessionSecret           string
	SessionTTL              time.Duration
	SessionCookieName       string
	SessionCookieSecure     bool
	CORSOrigins             []string
	RateLimitRPM            int
	SessionRateLimitRPM     int
	ReportAPIBaseURL        string
	ReportAPIPrefix         string
	ReportAPIToken          string
	ReportAPITimeout        time.Duration
	ReportPageSize          int
	SearchDebounce          time.Duration
	ViewIdleTimeout         time.Duration
	DefaultCatalogFile      string
	DefaultCatalog          []model.CatalogItem
	AuditLogFile            string
	LogLevel                slog.Level
	LogFormat               string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 0),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		DownloadTimeout:         getDuration("DOWNLOAD_TIMEOUT", 2*time.Minute),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 1)),
		SessionSecret:           strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		SessionTTL:              getDuration("SESSION_TTL", 12*time.Hour),
		SessionCookieName:       getEnv("SESSION_COOKIE_NAME", "portal_session"),
		SessionCookieSecure:     getBool("SESSION_COOKIE_SECURE", false),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 300),
		SessionRateLimitRPM:     getInt("SESSION_RATE_LIMIT_RPM", 10),
		ReportAPIBaseURL:        strings.TrimSpace(os.Getenv("REPORT_API_BASE_URL")),
		ReportAPIPrefix:         getEnv("REPORT_API_PREFIX", "/api/report"),
		ReportAPIToken:          strings.TrimSpace(os.Getenv("REPORT_API_TOKEN")),
		ReportAPITimeout:        getDuration("REPORT_API_TIMEOUT", 15*time.Second),
		ReportPageSize:          getInt("REPORT_PAGE_SIZE", 10),
		SearchDebounce:          getDuration("SEARCH_DEBOUNCE", 500*time.Millisecond),
		ViewIdleTimeout:         getDuration("VIEW_IDLE_TIMEOUT", 30*time.Minute),
		DefaultCatalogFile:      strings.TrimSpace(os.Getenv("DEFAULT_CATALOG_FILE")),
		AuditLogFile:            getEnv("AUDIT_LOG_FILE", "./state/activity.log"),
		LogLevel:                getLevel("LOG_LEVEL", slog.LevelInfo),
		LogFormat:               strings.ToLower(getEnv("LOG_FORMAT", "pretty")),
	}

	catalog, err := LoadCatalog(cfg.DefaultCatalogFile)
	if err != nil {
		return nil, err
	}
	cfg.DefaultCatalog = catalog

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.ReportAPIBaseURL == "" {
		return fmt.Errorf("REPORT_API_BASE_URL is required")
	}
	if parsed, err := url.Parse(c.ReportAPIBaseURL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("REPORT_API_BASE_URL must be an absolute http(s) URL")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.ReportAPITimeout <= 0 {
		return fmt.Errorf("REPORT_API_TIMEOUT must be positive")
	}

	if c.ReportPageSize <= 0 {
		return fmt.Errorf("REPORT_PAGE_SIZE must be positive")
	}

	if c.SearchDebounce < 0 {
		return fmt.Errorf("SEARCH_DEBOUNCE cannot be negative")
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME cannot be empty")
	}

	if c.DatabaseURL == "" && strings.TrimSpace(c.AuditLogFile) == "" {
		return fmt.Errorf("AUDIT_LOG_FILE is required when DATABASE_URL is not set")
	}

	if len(c.DefaultCatalog) == 0 {
		return fmt.Errorf("default catalog cannot be empty")
	}

	if c.LogFormat != "pretty" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be pretty or json")
	}

	return nil
}

// LoadCatalog reads the default inspection catalog from path, or the built-in
// catalog when path is empty.
func LoadCatalog(path string) ([]model.CatalogItem, error) {
	raw := defaultCatalogJSON
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read DEFAULT_CATALOG_FILE: %w", err)
		}
		raw = data
	}

	var items []model.CatalogItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse default catalog: %w", err)
	}

	for i, item := range items {
		if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.Name) == "" {
			return nil, fmt.Errorf("default catalog item %d needs an id and a name", i)
		}
	}

	return items, nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getLevel(key string, fallback slog.Level) slog.Level {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}

	return level
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
