package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"report-portal/internal/event"
	"report-portal/internal/metrics"
	"report-portal/internal/model"
	"report-portal/internal/view/reportlist"
	"report-portal/internal/view/submission"
)

// PortalAPI is everything the portal's views need from the Remote Report API.
type PortalAPI interface {
	reportlist.ReportAPI
	submission.SubmissionAPI
}

type ViewOptions struct {
	ReportList  reportlist.Options
	Defaults    []model.CatalogItem
	IdleTimeout time.Duration
}

type sessionViews struct {
	reports    *reportlist.View
	submission *submission.View
}

func (s *sessionViews) lastActive() time.Time {
	var last time.Time
	if s.reports != nil {
		last = s.reports.LastActive()
	}
	if s.submission != nil {
		if t := s.submission.LastActive(); t.After(last) {
			last = t
		}
	}
	return last
}

func (s *sessionViews) close() {
	if s.reports != nil {
		s.reports.Close()
		metrics.ActiveViews.WithLabelValues("reportlist").Dec()
	}
	if s.submission != nil {
		metrics.ActiveViews.WithLabelValues("submission").Dec()
	}
}

// ViewService holds the server-side views of every signed-in session.
type ViewService struct {
	api  PortalAPI
	bus  event.Bus
	opts ViewOptions

	mu       sync.Mutex
	sessions map[string]*sessionViews
}

func NewViewService(api PortalAPI, bus event.Bus, opts ViewOptions) *ViewService {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}

	return &ViewService{
		api:      api,
		bus:      bus,
		opts:     opts,
		sessions: map[string]*sessionViews{},
	}
}

// ReportList returns the session's report list view, mounting it on first use.
func (s *ViewService) ReportList(ctx context.Context, identity model.Identity) *reportlist.View {
	s.mu.Lock()
	views := s.sessionLocked(identity.SessionID)
	view := views.reports
	created := view == nil
	if created {
		view = reportlist.New(s.api, identity, event.NewSessionNotifier(s.bus, identity.SessionID), s.opts.ReportList)
		views.reports = view
		metrics.ActiveViews.WithLabelValues("reportlist").Inc()
	}
	s.mu.Unlock()

	if created {
		view.Mount(ctx)
	}
	return view
}

// Submission returns the session's submission form, loading the catalog on
// first use.
func (s *ViewService) Submission(ctx context.Context, identity model.Identity) *submission.View {
	s.mu.Lock()
	views := s.sessionLocked(identity.SessionID)
	view := views.submission
	created := view == nil
	if created {
		view = submission.New(s.api, identity, event.NewSessionNotifier(s.bus, identity.SessionID), s.opts.Defaults, nil)
		views.submission = view
		metrics.ActiveViews.WithLabelValues("submission").Inc()
	}
	s.mu.Unlock()

	if created {
		view.Load(ctx)
	}
	return view
}

// Drop closes and forgets a session's views.
func (s *ViewService) Drop(sessionID string) {
	s.mu.Lock()
	views, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if ok {
		views.close()
	}
}

// EvictIdle drops the views of sessions with no activity since before
// now minus the idle timeout. It returns the number of sessions dropped.
func (s *ViewService) EvictIdle(now time.Time) int {
	cutoff := now.Add(-s.opts.IdleTimeout)

	s.mu.Lock()
	idle := make([]*sessionViews, 0)
	for id, views := range s.sessions {
		if views.lastActive().Before(cutoff) {
			idle = append(idle, views)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, views := range idle {
		views.close()
	}
	return len(idle)
}

// StartEvictionTicker evicts idle views until ctx is done.
func (s *ViewService) StartEvictionTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case now := <-ticker.C:
			if evicted := s.EvictIdle(now); evicted > 0 {
				slog.Info("idle views evicted", "sessions", evicted)
			}
		}
	}
}

func (s *ViewService) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *ViewService) sessionLocked(sessionID string) *sessionViews {
	views, ok := s.sessions[sessionID]
	if !ok {
		views = &sessionViews{}
		s.sessions[sessionID] = views
	}
	return views
}

func (s *ViewService) closeAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = map[string]*sessionViews{}
	s.mu.Unlock()

	for _, views := range all {
		views.close()
	}
}
