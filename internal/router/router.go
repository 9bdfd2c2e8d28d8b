package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"report-portal/internal/config"
	"report-portal/internal/handler"
	"report-portal/internal/middleware"
)

type Handlers struct {
	Health     *handler.HealthHandler
	Session    *handler.SessionHandler
	Reports    *handler.ReportsHandler
	Submission *handler.SubmissionHandler
	Activity   *handler.ActivityHandler
	WS         *handler.WSHandler
}

func New(cfg *config.Config, sessionMiddleware *middleware.SessionMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.SessionRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		// Buffered timeout for JSON endpoints.
		api.Group(func(jsonAPI chi.Router) {
			jsonAPI.Use(middleware.Timeout(cfg.RequestTimeout))

			jsonAPI.Post("/session", h.Session.Start)

			jsonAPI.Group(func(authed chi.Router) {
				authed.Use(sessionMiddleware.RequireSession)

				authed.Get("/session", h.Session.Current)
				authed.Delete("/session", h.Session.End)
				authed.Get("/activity", h.Activity.List)

				authed.Get("/reports", h.Reports.State)
				authed.Put("/reports/filter", h.Reports.SetFilter)
				authed.Put("/reports/search", h.Reports.SetSearch)
				authed.Put("/reports/page", h.Reports.ChangePage)
				authed.Post("/reports/detail/retry", h.Reports.RetryDetail)
				authed.Post("/reports/detail/close", h.Reports.CloseDetail)
				authed.Post("/reports/{id}/view", h.Reports.OpenDetail)

				authed.Get("/submission", h.Submission.State)
				authed.Put("/submission/items/{id}/status", h.Submission.SetItemStatus)
				authed.Put("/submission/items/{id}/comment", h.Submission.SetItemComment)
				authed.Put("/submission/comment", h.Submission.SetGeneralComment)
				authed.Post("/submission/mark-all-good", h.Submission.MarkAllGood)
				authed.Post("/submission/clear", h.Submission.Clear)
				authed.Post("/submission/submit", h.Submission.Submit)
			})
		})

		// The PDF relay and the websocket must not be buffered.
		api.With(sessionMiddleware.RequireSession, middleware.TransferTimeout(cfg.DownloadTimeout, cfg.RequestTimeout)).
			Get("/reports/{id}/download", h.Reports.Download)
		api.With(sessionMiddleware.RequireSession).Get("/ws", h.WS.Connect)
	})

	return r
}
