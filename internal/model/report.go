package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ReportStatus is the review state a report is in on the remote side.
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusApproved ReportStatus = "approved"
	ReportStatusRejected ReportStatus = "rejected"
)

func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportStatusPending, ReportStatusApproved, ReportStatusRejected:
		return true
	}
	return false
}

// ReportFilter narrows the listing to a reporting period.
type ReportFilter string

const (
	FilterAll     ReportFilter = "all"
	FilterDaily   ReportFilter = "daily"
	FilterWeekly  ReportFilter = "weekly"
	FilterMonthly ReportFilter = "monthly"
)

// ParseReportFilter accepts the filter names case-insensitively. An empty
// value means FilterAll.
func ParseReportFilter(raw string) (ReportFilter, error) {
	switch ReportFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterDaily:
		return FilterDaily, nil
	case FilterWeekly:
		return FilterWeekly, nil
	case FilterMonthly:
		return FilterMonthly, nil
	}
	return "", ErrInvalidInput
}

// Report is one row of the report listing.
type Report struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	SubmissionDate string          `json:"submissionDate"`
	Approvals      map[string]bool `json:"approvals,omitempty"`
	Status         ReportStatus    `json:"status"`
	Class          string          `json:"class"`
	GeneralComment string          `json:"generalComment,omitempty"`
	ItemEvaluated  json.RawMessage `json:"itemEvaluated,omitempty"`
}

// ItemOutcome is the evaluated state of a checklist entry in a submitted report.
type ItemOutcome string

const (
	OutcomeGood    ItemOutcome = "good"
	OutcomeBad     ItemOutcome = "bad"
	OutcomeFlagged ItemOutcome = "flagged"
)

type EvaluatedItem struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Status  ItemOutcome `json:"status"`
	Comment string      `json:"comment"`
}

type ReportDetail struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Class          string          `json:"class"`
	CreatedAt      time.Time       `json:"createdAt"`
	GeneralComment string          `json:"generalComment,omitempty"`
	Items          []EvaluatedItem `json:"items"`
	Approvals      map[string]bool `json:"approvals,omitempty"`
	Status         ReportStatus    `json:"status"`
}

type PaginationInfo struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalReports int  `json:"totalReports"`
	HasNext      bool `json:"hasNext"`
	HasPrev      bool `json:"hasPrev"`
}

func DefaultPagination() PaginationInfo {
	return PaginationInfo{CurrentPage: 1, TotalPages: 1}
}

// Normalize clamps the current page into [1, TotalPages] and re-derives the
// next/prev flags from the page bounds.
func (p PaginationInfo) Normalize() PaginationInfo {
	if p.TotalPages < 1 {
		p.TotalPages = 1
	}
	if p.TotalReports < 0 {
		p.TotalReports = 0
	}
	if p.CurrentPage < 1 {
		p.CurrentPage = 1
	}
	if p.CurrentPage > p.TotalPages {
		p.CurrentPage = p.TotalPages
	}
	p.HasNext = p.CurrentPage < p.TotalPages
	p.HasPrev = p.CurrentPage > 1
	return p
}

// Contains reports whether page is a navigable page of this listing.
func (p PaginationInfo) Contains(page int) bool {
	return page >= 1 && page <= p.TotalPages
}

// ReportFile is a downloaded report exposed to the browser as an attachment.
type ReportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
