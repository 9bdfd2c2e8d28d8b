package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"report-portal/internal/config"
	"report-portal/internal/database"
	"report-portal/internal/event"
	"report-portal/internal/handler"
	"report-portal/internal/metrics"
	"report-portal/internal/middleware"
	"report-portal/internal/reportapi"
	"report-portal/internal/repository"
	"report-portal/internal/router"
	"report-portal/internal/service"
	"report-portal/internal/session"
	"report-portal/internal/view/reportlist"
	"report-portal/internal/websocket"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	appHandler, cleanup, err := NewHandler(cfg)
	if err != nil {
		return nil, err
	}

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appHandler,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		cleanupFuncs: []func(){cleanup},
	}, nil
}

// NewHandler wires the portal and starts its background workers. The
// returned cleanup stops the workers and closes the database.
func NewHandler(cfg *config.Config) (http.Handler, func(), error) {
	metrics.Register()

	var (
		db           *database.DB
		sessionStore session.Store
		auditStore   service.AuditStore
	)

	if cfg.DatabaseURL != "" {
		slog.Info("connecting to PostgreSQL")
		var err error
		db, err = database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := db.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}

		sessionStore = repository.NewSessionRepository(db.Pool)
		auditStore = repository.NewAuditRepository(db.Pool)
		slog.Info("database ready")
	} else {
		slog.Warn("DATABASE_URL not set; sessions are kept in memory", "activity_log", cfg.AuditLogFile)
		sessionStore = session.NewMemoryStore()

		fileStore, err := service.NewFileAuditStore(cfg.AuditLogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize activity log: %w", err)
		}
		auditStore = fileStore
	}

	closeDB := func() {
		if db != nil {
			db.Close()
		}
	}

	sessions, err := session.NewManager(cfg.SessionSecret, cfg.SessionTTL, sessionStore)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	api, err := reportapi.New(reportapi.Options{
		BaseURL: cfg.ReportAPIBaseURL,
		Prefix:  cfg.ReportAPIPrefix,
		Token:   cfg.ReportAPIToken,
		Timeout: cfg.ReportAPITimeout,
	})
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to initialize report api client: %w", err)
	}

	bus := event.NewBus()
	hub := websocket.NewHub(bus)

	views := service.NewViewService(api, bus, service.ViewOptions{
		ReportList: reportlist.Options{
			PageSize:       cfg.ReportPageSize,
			SearchDebounce: cfg.SearchDebounce,
		},
		Defaults:    cfg.DefaultCatalog,
		IdleTimeout: cfg.ViewIdleTimeout,
	})
	auditService := service.NewAuditService(auditStore)

	var dbCheck func(ctx context.Context) error
	if db != nil {
		dbCheck = db.Health
	}

	sessionMiddleware := middleware.NewSessionMiddleware(sessions, cfg.SessionCookieName)
	appRouter := router.New(cfg, sessionMiddleware, router.Handlers{
		Health: handler.NewHealthHandler(dbCheck, hub.ConnectedClients),
		Session: handler.NewSessionHandler(sessions, views, auditService, bus, handler.CookieOptions{
			Name:   cfg.SessionCookieName,
			Secure: cfg.SessionCookieSecure,
		}),
		Reports:    handler.NewReportsHandler(views, auditService),
		Submission: handler.NewSubmissionHandler(views, auditService),
		Activity:   handler.NewActivityHandler(auditService),
		WS:         handler.NewWSHandler(hub, cfg.CORSOrigins),
	})

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	go hub.Run(backgroundCtx)
	go sessions.StartCleanupTicker(backgroundCtx, time.Hour)
	go views.StartEvictionTicker(backgroundCtx, time.Minute)

	return appRouter, func() {
		backgroundCancel()
		closeDB()
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
