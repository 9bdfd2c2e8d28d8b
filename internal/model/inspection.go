package model

import (
	"strings"
	"time"
)

// ItemStatus is the editable state of a checklist entry on the submission form.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemGood    ItemStatus = "good"
	ItemBad     ItemStatus = "bad"
	ItemFlagged ItemStatus = "flagged"
)

func ParseItemStatus(raw string) (ItemStatus, error) {
	status := ItemStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case ItemPending, ItemGood, ItemBad, ItemFlagged:
		return status, nil
	}
	return "", ErrInvalidInput
}

// NeedsComment is true for outcomes that must be explained before submitting.
func (s ItemStatus) NeedsComment() bool {
	return s == ItemBad || s == ItemFlagged
}

// CatalogItem is an entry of the inspection item catalog.
type CatalogItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type InspectionItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      ItemStatus `json:"status"`
	Comment     string     `json:"comment"`
}

func NewInspectionItem(c CatalogItem) InspectionItem {
	return InspectionItem{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Status:      ItemPending,
	}
}

type Stats struct {
	Total             int     `json:"total"`
	Good              int     `json:"good"`
	Bad               int     `json:"bad"`
	Flagged           int     `json:"flagged"`
	Pending           int     `json:"pending"`
	CompletionPercent float64 `json:"completionPercent"`
}

func ComputeStats(items []InspectionItem) Stats {
	stats := Stats{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case ItemGood:
			stats.Good++
		case ItemBad:
			stats.Bad++
		case ItemFlagged:
			stats.Flagged++
		default:
			stats.Pending++
		}
	}
	if stats.Total > 0 {
		stats.CompletionPercent = float64(stats.Total-stats.Pending) / float64(stats.Total) * 100
	}
	return stats
}

type SubmissionSummary struct {
	TotalItems   int       `json:"totalItems"`
	GoodItems    int       `json:"goodItems"`
	BadItems     int       `json:"badItems"`
	FlaggedItems int       `json:"flaggedItems"`
	CompletedAt  time.Time `json:"completedAt"`
}

type ItemEvaluation struct {
	Items   []InspectionItem  `json:"items"`
	Summary SubmissionSummary `json:"summary"`
}

// SubmitReportRequest is the body posted to the remote submit endpoint.
type SubmitReportRequest struct {
	ReporterEmail  string         `json:"reporterEmail"`
	Title          string         `json:"title"`
	GeneralComment string         `json:"generalComment"`
	ItemEvaluated  ItemEvaluation `json:"itemEvaluated"`
	Category       string         `json:"category"`
}

type SubmitReportResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
