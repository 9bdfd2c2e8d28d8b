// Package submission holds the per-session state of the inspection report
// form: the checklist, per-item comments and the general comment.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"report-portal/internal/event"
	"report-portal/internal/model"
	"report-portal/internal/reportapi"
)

const (
	// Category is the tag every submitted report is filed under.
	Category = "daily"

	defaultGeneralComment = "No general comment provided"
	titleDateLayout       = "2006-01-02"
)

type SubmissionAPI interface {
	ListItems(ctx context.Context) ([]model.CatalogItem, error)
	SubmitReport(ctx context.Context, payload model.SubmitReportRequest) (model.SubmitReportResult, error)
}

type Notifier interface {
	Toast(t model.Toast)
	Publish(t event.Type, payload any)
}

type ValidationKind string

const (
	ValidationIncomplete       ValidationKind = "incomplete"
	ValidationCommentsRequired ValidationKind = "comments_required"
	ValidationAuthentication   ValidationKind = "authentication"
)

// ValidationError is returned by Submit when the form cannot be sent yet.
type ValidationError struct {
	Kind        ValidationKind `json:"kind"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Count       int            `json:"count,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Title + ": " + e.Description
}

type State struct {
	Items          []model.InspectionItem `json:"items"`
	GeneralComment string                 `json:"generalComment"`
	Stats          model.Stats            `json:"stats"`
	Loading        bool                   `json:"loading"`
	Submitting     bool                   `json:"submitting"`
	UsingDefaults  bool                   `json:"usingDefaults"`
	CanSubmit      bool                   `json:"canSubmit"`
	Identified     bool                   `json:"identified"`
}

type View struct {
	api      SubmissionAPI
	identity model.Identity
	notifier Notifier
	defaults []model.CatalogItem
	now      func() time.Time
	log      *slog.Logger

	mu             sync.Mutex
	items          []model.InspectionItem
	generalComment string
	loading        bool
	submitting     bool
	usingDefaults  bool
	lastActive     time.Time
}

// New builds a form view. defaults is the catalog used when the remote
// catalog cannot be loaded.
func New(api SubmissionAPI, identity model.Identity, notifier Notifier, defaults []model.CatalogItem, now func() time.Time) *View {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if now == nil {
		now = time.Now
	}

	return &View{
		api:        api,
		identity:   identity,
		notifier:   notifier,
		defaults:   append([]model.CatalogItem(nil), defaults...),
		now:        now,
		log:        slog.With("view", "submission", "session_id", identity.SessionID),
		items:      []model.InspectionItem{},
		lastActive: time.Now(),
	}
}

// Load fetches the catalog and projects it into editable items. When the
// catalog cannot be fetched the injected defaults are used instead.
func (v *View) Load(ctx context.Context) State {
	v.mu.Lock()
	v.loading = true
	v.touchLocked()
	v.mu.Unlock()
	v.publish()

	catalog, err := v.api.ListItems(ctx)
	if err == nil && len(catalog) == 0 {
		err = fmt.Errorf("%w: empty catalog", reportapi.ErrInvalidResponse)
	}

	usingDefaults := err != nil
	if usingDefaults {
		catalog = v.defaults
	}

	items := make([]model.InspectionItem, 0, len(catalog))
	for _, entry := range catalog {
		items = append(items, model.NewInspectionItem(entry))
	}

	v.mu.Lock()
	v.items = items
	v.usingDefaults = usingDefaults
	v.loading = false
	v.mu.Unlock()

	if usingDefaults {
		v.log.Warn("inspection catalog unavailable, using defaults", "error", err, "default_items", len(items))
		v.notifier.Toast(model.Toast{
			Variant:     model.ToastWarning,
			Title:       "Connection issue",
			Description: "Could not load inspection items. Showing the default checklist.",
		})
	}

	v.publish()
	return v.State()
}

func (v *View) SetStatus(id string, status model.ItemStatus) (State, error) {
	parsed, err := model.ParseItemStatus(string(status))
	if err != nil {
		return v.State(), err
	}

	if err := v.mutateItem(id, func(item *model.InspectionItem) { item.Status = parsed }); err != nil {
		return v.State(), err
	}
	return v.State(), nil
}

func (v *View) SetComment(id string, comment string) (State, error) {
	if err := v.mutateItem(id, func(item *model.InspectionItem) { item.Comment = comment }); err != nil {
		return v.State(), err
	}
	return v.State(), nil
}

// SetGeneralComment and the other edits are refused while a submit is in
// flight; a successful submit resets the form and would drop them.
func (v *View) SetGeneralComment(comment string) (State, error) {
	v.mu.Lock()
	v.touchLocked()
	if v.submitting {
		v.mu.Unlock()
		return v.State(), model.ErrSubmitInProgress
	}
	v.generalComment = comment
	v.mu.Unlock()

	v.publish()
	return v.State(), nil
}

// MarkAllGood sets every item to good and leaves comments as they are.
func (v *View) MarkAllGood() (State, error) {
	v.mu.Lock()
	v.touchLocked()
	if v.submitting {
		v.mu.Unlock()
		return v.State(), model.ErrSubmitInProgress
	}
	for i := range v.items {
		v.items[i].Status = model.ItemGood
	}
	v.mu.Unlock()

	v.notifier.Toast(model.Toast{
		Variant:     model.ToastSuccess,
		Title:       "All items marked good",
		Description: "Every inspection item is now marked as good.",
	})
	v.publish()
	return v.State(), nil
}

// ClearSelection returns every item to pending with an empty comment.
func (v *View) ClearSelection() (State, error) {
	v.mu.Lock()
	v.touchLocked()
	if v.submitting {
		v.mu.Unlock()
		return v.State(), model.ErrSubmitInProgress
	}
	v.resetItemsLocked()
	v.mu.Unlock()

	v.notifier.Toast(model.Toast{
		Variant:     model.ToastSuccess,
		Title:       "Selection cleared",
		Description: "All inspection items were reset.",
	})
	v.publish()
	return v.State(), nil
}

func (v *View) Stats() model.Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return model.ComputeStats(v.items)
}

// Submit validates the form and posts it. A *ValidationError is returned
// when validation fails; the form is left untouched on any failure.
func (v *View) Submit(ctx context.Context) (State, error) {
	v.mu.Lock()
	v.touchLocked()
	if v.submitting {
		v.mu.Unlock()
		return v.State(), model.ErrSubmitInProgress
	}

	if verr := v.validateLocked(); verr != nil {
		v.mu.Unlock()
		v.notifier.Toast(model.Toast{Variant: model.ToastError, Title: verr.Title, Description: verr.Description})
		return v.State(), verr
	}

	payload := v.payloadLocked()
	v.submitting = true
	v.mu.Unlock()
	v.publish()

	result, err := v.api.SubmitReport(ctx, payload)

	v.mu.Lock()
	v.submitting = false
	if err == nil {
		v.resetItemsLocked()
		v.generalComment = ""
	}
	v.mu.Unlock()

	if err != nil {
		description := "Your report could not be submitted. Please try again."
		if errors.Is(err, reportapi.ErrReportedFailure) && result.Message != "" {
			description = result.Message
		}
		v.log.Warn("report submission failed", "error", err)
		v.notifier.Toast(model.Toast{Variant: model.ToastError, Title: "Submission failed", Description: description})
		v.publish()
		return v.State(), err
	}

	v.log.Info("report submitted", "items", len(payload.ItemEvaluated.Items))
	v.notifier.Toast(model.Toast{
		Variant:     model.ToastSuccess,
		Title:       "Report submitted",
		Description: "Your inspection report was submitted successfully.",
	})
	v.publish()
	return v.State(), nil
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	items := make([]model.InspectionItem, len(v.items))
	copy(items, v.items)

	return State{
		Items:          items,
		GeneralComment: v.generalComment,
		Stats:          model.ComputeStats(v.items),
		Loading:        v.loading,
		Submitting:     v.submitting,
		UsingDefaults:  v.usingDefaults,
		CanSubmit:      !v.submitting && v.validateLocked() == nil,
		Identified:     !v.identity.IsZero(),
	}
}

func (v *View) LastActive() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastActive
}

func (v *View) validateLocked() *ValidationError {
	if len(v.items) == 0 {
		return &ValidationError{
			Kind:        ValidationIncomplete,
			Title:       "Incomplete Form",
			Description: "There are no inspection items to report on.",
		}
	}

	for _, item := range v.items {
		if item.Status == model.ItemPending {
			return &ValidationError{
				Kind:        ValidationIncomplete,
				Title:       "Incomplete Form",
				Description: "Please set a status for every inspection item.",
			}
		}
	}

	missing := 0
	for _, item := range v.items {
		if item.Status.NeedsComment() && strings.TrimSpace(item.Comment) == "" {
			missing++
		}
	}
	if missing > 0 {
		return &ValidationError{
			Kind:        ValidationCommentsRequired,
			Title:       "Comments Required",
			Description: fmt.Sprintf("Please add a comment to %d item(s) marked bad or flagged.", missing),
			Count:       missing,
		}
	}

	if v.identity.IsZero() {
		return &ValidationError{
			Kind:        ValidationAuthentication,
			Title:       "Authentication Error",
			Description: "Please sign in again before submitting.",
		}
	}
	return nil
}

func (v *View) payloadLocked() model.SubmitReportRequest {
	now := v.now()
	stats := model.ComputeStats(v.items)

	items := make([]model.InspectionItem, len(v.items))
	copy(items, v.items)

	generalComment := strings.TrimSpace(v.generalComment)
	if generalComment == "" {
		generalComment = defaultGeneralComment
	}

	return model.SubmitReportRequest{
		ReporterEmail:  v.identity.Email,
		Title:          "Inspection Report - " + now.Format(titleDateLayout),
		GeneralComment: generalComment,
		ItemEvaluated: model.ItemEvaluation{
			Items: items,
			Summary: model.SubmissionSummary{
				TotalItems:   stats.Total,
				GoodItems:    stats.Good,
				BadItems:     stats.Bad,
				FlaggedItems: stats.Flagged,
				CompletedAt:  now.UTC(),
			},
		},
		Category: Category,
	}
}

func (v *View) mutateItem(id string, apply func(item *model.InspectionItem)) error {
	v.mu.Lock()
	v.touchLocked()
	if v.submitting {
		v.mu.Unlock()
		return model.ErrSubmitInProgress
	}
	index := -1
	for i := range v.items {
		if v.items[i].ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		v.mu.Unlock()
		return model.ErrItemNotFound
	}
	apply(&v.items[index])
	v.mu.Unlock()

	v.publish()
	return nil
}

func (v *View) resetItemsLocked() {
	for i := range v.items {
		v.items[i].Status = model.ItemPending
		v.items[i].Comment = ""
	}
}

func (v *View) touchLocked() {
	v.lastActive = time.Now()
}

func (v *View) publish() {
	v.notifier.Publish(event.TypeSubmissionState, v.State())
}

type noopNotifier struct{}

func (noopNotifier) Toast(model.Toast)        {}
func (noopNotifier) Publish(event.Type, any) {}
