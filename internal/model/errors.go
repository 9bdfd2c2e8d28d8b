package model

import "errors"

var (
	// Session related errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrNoIdentity      = errors.New("no identity")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")

	// Report related errors
	ErrReportNotFound     = errors.New("report not found")
	ErrDownloadInProgress = errors.New("download already in progress")
	ErrDetailNotOpen      = errors.New("report detail is not open")

	// Submission related errors
	ErrItemNotFound     = errors.New("inspection item not found")
	ErrSubmitInProgress = errors.New("submission already in progress")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
