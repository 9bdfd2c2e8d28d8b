// Package reportlist holds the per-session state of the report listing page:
// filter, search, pagination, the detail modal and in-flight downloads.
//
// Every list fetch takes a new generation and cancels the one before it; a
// response is applied only while its generation is still current, so the
// latest request always wins regardless of arrival order. The detail modal
// has its own generation with the same rule.
package reportlist

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"report-portal/internal/event"
	"report-portal/internal/metrics"
	"report-portal/internal/model"
	"report-portal/internal/reportapi"
)

const (
	DefaultPageSize       = 10
	DefaultSearchDebounce = 500 * time.Millisecond
)

type ReportAPI interface {
	ListReports(ctx context.Context, query reportapi.ListQuery) (reportapi.ReportPage, error)
	GetReport(ctx context.Context, id string) (model.ReportDetail, error)
	DownloadReport(ctx context.Context, id string) (model.ReportFile, error)
}

type Notifier interface {
	Toast(t model.Toast)
	Publish(t event.Type, payload any)
}

type Options struct {
	PageSize       int
	SearchDebounce time.Duration
}

type DetailStatus string

const (
	DetailLoading  DetailStatus = "loading"
	DetailLoaded   DetailStatus = "loaded"
	DetailNotFound DetailStatus = "not_found"
	DetailError    DetailStatus = "error"
)

// CloseReason names the control that dismissed the detail modal.
type CloseReason string

const (
	CloseButton   CloseReason = "button"
	CloseBackdrop CloseReason = "backdrop"
	CloseEscape   CloseReason = "escape"
)

func (r CloseReason) IsValid() bool {
	switch r {
	case CloseButton, CloseBackdrop, CloseEscape:
		return true
	}
	return false
}

type Modal struct {
	Open     bool                `json:"open"`
	ReportID string              `json:"reportId,omitempty"`
	Status   DetailStatus        `json:"status,omitempty"`
	Detail   *model.ReportDetail `json:"detail,omitempty"`
	CanRetry bool                `json:"canRetry"`
}

type Controls struct {
	PrevDisabled bool `json:"prevDisabled"`
	NextDisabled bool `json:"nextDisabled"`
}

type State struct {
	Reports      []model.Report       `json:"reports"`
	Pagination   model.PaginationInfo `json:"pagination"`
	Filter       model.ReportFilter   `json:"filter"`
	Search       string               `json:"search"`
	Loading      bool                 `json:"loading"`
	Controls     Controls             `json:"controls"`
	Modal        Modal                `json:"modal"`
	ScrollLocked bool                 `json:"scrollLocked"`
	Downloading  []string             `json:"downloading"`
}

type View struct {
	api      ReportAPI
	identity model.Identity
	notifier Notifier
	opts     Options
	log      *slog.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu          sync.Mutex
	reports     []model.Report
	pagination  model.PaginationInfo
	filter      model.ReportFilter
	search      string
	page        int
	inFlight    int
	listGen     uint64
	cancelList  context.CancelFunc
	debounce    *time.Timer
	debounceGen uint64

	modal        Modal
	detailGen    uint64
	cancelDetail context.CancelFunc

	downloading map[string]struct{}
	lastActive  time.Time
	closed      bool
}

func New(api ReportAPI, identity model.Identity, notifier Notifier, opts Options) *View {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = DefaultSearchDebounce
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())

	return &View{
		api:         api,
		identity:    identity,
		notifier:    notifier,
		opts:        opts,
		log:         slog.With("view", "reportlist", "session_id", identity.SessionID),
		baseCtx:     baseCtx,
		cancelBase:  cancelBase,
		reports:     []model.Report{},
		pagination:  model.DefaultPagination(),
		filter:      model.FilterAll,
		page:        1,
		downloading: map[string]struct{}{},
		lastActive:  time.Now(),
	}
}

// Mount performs the initial fetch. Without an identity nothing is fetched.
func (v *View) Mount(ctx context.Context) State {
	v.mu.Lock()
	filter, search, page := v.filter, v.search, v.page
	v.mu.Unlock()

	v.fetchReports(ctx, filter, search, page)
	return v.State()
}

// SetFilter switches the reporting period and fetches page 1 immediately.
func (v *View) SetFilter(ctx context.Context, filter model.ReportFilter) (State, error) {
	parsed, err := model.ParseReportFilter(string(filter))
	if err != nil {
		return v.State(), err
	}

	v.mu.Lock()
	v.touchLocked()
	v.stopDebounceLocked()
	v.filter = parsed
	v.resetPageLocked()
	search := v.search
	v.mu.Unlock()

	v.fetchReports(ctx, parsed, search, 1)
	return v.State(), nil
}

// SetSearch records the search text and resets to page 1. Blank text fetches
// immediately; anything else is fetched once the debounce window passes
// without a further change.
func (v *View) SetSearch(ctx context.Context, text string) State {
	v.mu.Lock()
	v.touchLocked()
	v.stopDebounceLocked()
	v.search = text
	v.resetPageLocked()
	filter := v.filter

	if strings.TrimSpace(text) == "" {
		v.mu.Unlock()
		v.fetchReports(ctx, filter, "", 1)
		return v.State()
	}

	v.debounceGen++
	gen := v.debounceGen
	v.debounce = time.AfterFunc(v.opts.SearchDebounce, func() { v.fireDebounce(gen) })
	v.mu.Unlock()

	v.publishState()
	return v.State()
}

// ChangePage moves to page when it lies within the known page range.
func (v *View) ChangePage(ctx context.Context, page int) State {
	v.mu.Lock()
	v.touchLocked()
	if !v.pagination.Contains(page) {
		v.mu.Unlock()
		return v.State()
	}
	v.page = page
	filter, search := v.filter, v.search
	v.mu.Unlock()

	v.fetchReports(ctx, filter, search, page)
	return v.State()
}

// OpenDetail opens the modal in the loading state right away, then fetches
// the report detail.
func (v *View) OpenDetail(ctx context.Context, id string) (Modal, error) {
	id = strings.TrimSpace(id)
	if !reportapi.ValidReportID(id) {
		return v.Modal(), model.ErrInvalidInput
	}

	v.mu.Lock()
	v.touchLocked()
	gen := v.beginDetailLocked(id)
	v.mu.Unlock()

	v.publishDetail()
	v.loadDetail(ctx, gen, id)
	return v.Modal(), nil
}

// RetryDetail re-issues the detail fetch for the open report.
func (v *View) RetryDetail(ctx context.Context) (Modal, error) {
	v.mu.Lock()
	v.touchLocked()
	if !v.modal.Open {
		v.mu.Unlock()
		return v.Modal(), model.ErrDetailNotOpen
	}
	id := v.modal.ReportID
	gen := v.beginDetailLocked(id)
	v.mu.Unlock()

	v.publishDetail()
	v.loadDetail(ctx, gen, id)
	return v.Modal(), nil
}

// CloseDetail dismisses the modal, drops any detail data and releases the
// scroll lock. Closing a modal that is not open does nothing.
func (v *View) CloseDetail(reason CloseReason) (Modal, error) {
	if !reason.IsValid() {
		return v.Modal(), model.ErrInvalidInput
	}

	v.mu.Lock()
	v.touchLocked()
	if !v.modal.Open {
		v.mu.Unlock()
		return v.Modal(), nil
	}

	v.detailGen++
	if v.cancelDetail != nil {
		v.cancelDetail()
		v.cancelDetail = nil
	}
	v.modal = Modal{}
	v.mu.Unlock()

	v.log.Debug("detail closed", "reason", reason)
	v.publishDetail()
	return v.Modal(), nil
}

// Download fetches a report PDF. Only one download per report id may be in
// flight; other ids are unaffected.
func (v *View) Download(ctx context.Context, id string) (model.ReportFile, error) {
	id = strings.TrimSpace(id)
	if !reportapi.ValidReportID(id) {
		return model.ReportFile{}, model.ErrInvalidInput
	}

	v.mu.Lock()
	v.touchLocked()
	if _, busy := v.downloading[id]; busy {
		v.mu.Unlock()
		return model.ReportFile{}, model.ErrDownloadInProgress
	}
	v.downloading[id] = struct{}{}
	v.mu.Unlock()

	metrics.DownloadsInFlight.Inc()
	v.publishState()

	defer func() {
		v.mu.Lock()
		delete(v.downloading, id)
		v.mu.Unlock()
		metrics.DownloadsInFlight.Dec()
		v.publishState()
	}()

	file, err := v.api.DownloadReport(ctx, id)
	if err != nil {
		v.log.Warn("report download failed", "report_id", id, "error", err)
		v.notifier.Toast(model.Toast{
			Variant:     model.ToastError,
			Title:       "Download failed",
			Description: "The report could not be downloaded. Please try again.",
		})
		return model.ReportFile{}, err
	}

	file.Filename = reportapi.ReportFilename(id)
	if file.ContentType == "" {
		file.ContentType = "application/pdf"
	}

	v.notifier.Toast(model.Toast{
		Variant:     model.ToastSuccess,
		Title:       "Download started",
		Description: file.Filename,
	})
	return file, nil
}

// State returns a snapshot safe to hand out.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	reports := make([]model.Report, len(v.reports))
	copy(reports, v.reports)

	downloading := make([]string, 0, len(v.downloading))
	for id := range v.downloading {
		downloading = append(downloading, id)
	}

	loading := v.inFlight > 0
	return State{
		Reports:    reports,
		Pagination: v.pagination,
		Filter:     v.filter,
		Search:     v.search,
		Loading:    loading,
		Controls: Controls{
			PrevDisabled: !v.pagination.HasPrev || loading,
			NextDisabled: !v.pagination.HasNext || loading,
		},
		Modal:        v.modalLocked(),
		ScrollLocked: v.modal.Open,
		Downloading:  downloading,
	}
}

func (v *View) Modal() Modal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.modalLocked()
}

// IsDownloading reports whether a download of id is in flight.
func (v *View) IsDownloading(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, busy := v.downloading[id]
	return busy
}

func (v *View) LastActive() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastActive
}

// Close stops the debounce timer and cancels in-flight fetches. The view
// ignores all responses afterwards.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	v.stopDebounceLocked()
	v.listGen++
	v.detailGen++
	if v.cancelList != nil {
		v.cancelList()
		v.cancelList = nil
	}
	if v.cancelDetail != nil {
		v.cancelDetail()
		v.cancelDetail = nil
	}
	v.cancelBase()
}

func (v *View) fireDebounce(gen uint64) {
	v.mu.Lock()
	if v.closed || gen != v.debounceGen {
		v.mu.Unlock()
		return
	}
	v.debounce = nil
	filter, search, page := v.filter, v.search, v.page
	v.mu.Unlock()

	v.fetchReports(v.baseCtx, filter, search, page)
}

func (v *View) fetchReports(ctx context.Context, filter model.ReportFilter, search string, page int) {
	if v.identity.IsZero() {
		return
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.listGen++
	gen := v.listGen
	if v.cancelList != nil {
		v.cancelList()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	v.cancelList = cancel
	v.inFlight++
	v.mu.Unlock()

	v.publishState()

	result, err := v.api.ListReports(fetchCtx, reportapi.ListQuery{
		StudentEmail: v.identity.Email,
		Page:         page,
		Limit:        v.opts.PageSize,
		Filter:       filter,
		Search:       strings.TrimSpace(search),
	})
	cancel()

	v.mu.Lock()
	v.inFlight--
	if gen != v.listGen {
		v.mu.Unlock()
		metrics.StaleResponsesTotal.WithLabelValues("list").Inc()
		v.log.Debug("stale list response discarded", "generation", gen)
		v.publishState()
		return
	}
	v.cancelList = nil

	var toast *model.Toast
	switch {
	case err == nil:
		v.reports = result.Reports
		v.pagination = result.Pagination.Normalize()
		v.page = v.pagination.CurrentPage
	case errors.Is(err, reportapi.ErrNotFound):
		v.clearListLocked()
	case reportapi.IsCanceled(err):
		// The caller went away; keep what is on screen.
	case reportapi.IsUpstreamFailure(err):
		v.clearListLocked()
		toast = &model.Toast{
			Variant:     model.ToastError,
			Title:       "Failed to load reports",
			Description: "The report service could not return your reports.",
		}
	default:
		v.clearListLocked()
		toast = &model.Toast{
			Variant:     model.ToastError,
			Title:       "Load failed",
			Description: "Could not reach the report service. Please try again.",
		}
	}
	v.mu.Unlock()

	if toast != nil {
		v.log.Warn("report listing failed", "filter", filter, "page", page, "error", err)
		v.notifier.Toast(*toast)
	}
	v.publishState()
}

func (v *View) loadDetail(ctx context.Context, gen uint64, id string) {
	v.mu.Lock()
	if v.closed || gen != v.detailGen {
		v.mu.Unlock()
		return
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	v.cancelDetail = cancel
	v.mu.Unlock()

	detail, err := v.api.GetReport(fetchCtx, id)
	cancel()

	v.mu.Lock()
	if gen != v.detailGen || !v.modal.Open || v.modal.ReportID != id {
		v.mu.Unlock()
		metrics.StaleResponsesTotal.WithLabelValues("detail").Inc()
		return
	}
	v.cancelDetail = nil

	failed := false
	switch {
	case err == nil:
		v.modal.Status = DetailLoaded
		v.modal.Detail = &detail
		v.modal.CanRetry = false
	case errors.Is(err, reportapi.ErrNotFound):
		v.modal.Status = DetailNotFound
		v.modal.CanRetry = false
	default:
		v.modal.Status = DetailError
		v.modal.CanRetry = true
		failed = !reportapi.IsCanceled(err)
	}
	v.mu.Unlock()

	if failed {
		v.log.Warn("report detail failed", "report_id", id, "error", err)
		v.notifier.Toast(model.Toast{
			Variant:     model.ToastError,
			Title:       "Failed to load report",
			Description: "The report details could not be loaded.",
		})
	}
	v.publishDetail()
}

func (v *View) beginDetailLocked(id string) uint64 {
	v.detailGen++
	if v.cancelDetail != nil {
		v.cancelDetail()
		v.cancelDetail = nil
	}
	v.modal = Modal{Open: true, ReportID: id, Status: DetailLoading}
	return v.detailGen
}

func (v *View) modalLocked() Modal {
	modal := v.modal
	if modal.Detail != nil {
		detail := *modal.Detail
		detail.Items = append([]model.EvaluatedItem(nil), modal.Detail.Items...)
		modal.Detail = &detail
	}
	return modal
}

func (v *View) clearListLocked() {
	v.reports = []model.Report{}
	v.pagination = model.DefaultPagination()
	v.page = 1
}

func (v *View) resetPageLocked() {
	v.page = 1
	v.pagination.CurrentPage = 1
	v.pagination = v.pagination.Normalize()
}

func (v *View) stopDebounceLocked() {
	if v.debounce != nil {
		v.debounce.Stop()
		v.debounce = nil
	}
	v.debounceGen++
}

func (v *View) touchLocked() {
	v.lastActive = time.Now()
}

func (v *View) publishState() {
	v.notifier.Publish(event.TypeReportsState, v.State())
}

func (v *View) publishDetail() {
	v.notifier.Publish(event.TypeDetailState, v.Modal())
}

type noopNotifier struct{}

func (noopNotifier) Toast(model.Toast)        {}
func (noopNotifier) Publish(event.Type, any) {}
