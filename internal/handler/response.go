package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"report-portal/internal/model"
	"report-portal/internal/reportapi"
	"report-portal/internal/view/submission"
	"report-portal/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.Success(data))
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var validationErr *submission.ValidationError
	if apiErr, ok := apierror.As(err); ok {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.As(err, &validationErr) {
		status = http.StatusUnprocessableEntity
		body.Code = validationCode(validationErr.Kind)
		body.Message = validationErr.Title
		body.Details = validationErr.Description
	} else if errors.Is(err, model.ErrSessionExpired) {
		status = http.StatusUnauthorized
		body.Code = "SESSION_EXPIRED"
		body.Message = "Session expired, sign in again"
	} else if errors.Is(err, model.ErrSessionNotFound) || errors.Is(err, model.ErrUnauthorized) || errors.Is(err, model.ErrNoIdentity) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	} else if errors.Is(err, model.ErrReportNotFound) || errors.Is(err, reportapi.ErrNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Report not found"
	} else if errors.Is(err, model.ErrItemNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Inspection item not found"
	} else if errors.Is(err, model.ErrDownloadInProgress) {
		status = http.StatusConflict
		body.Code = "DOWNLOAD_IN_PROGRESS"
		body.Message = "This report is already being downloaded"
	} else if errors.Is(err, model.ErrSubmitInProgress) {
		status = http.StatusConflict
		body.Code = "SUBMIT_IN_PROGRESS"
		body.Message = "The report is already being submitted"
	} else if errors.Is(err, model.ErrDetailNotOpen) {
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "No report detail is open"
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
	} else if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
		body.Code = "UPSTREAM_TIMEOUT"
		body.Message = "The report service did not respond in time"
	} else if reportapi.IsUpstreamFailure(err) || errors.Is(err, reportapi.ErrInvalidResponse) {
		status = http.StatusBadGateway
		body.Code = "UPSTREAM_ERROR"
		body.Message = "The report service returned an error"
		body.Details = err.Error()
	} else {
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.Failure(body.Code, body.Message, body.Details))
}

func validationCode(kind submission.ValidationKind) string {
	switch kind {
	case submission.ValidationIncomplete:
		return "INCOMPLETE_FORM"
	case submission.ValidationCommentsRequired:
		return "COMMENTS_REQUIRED"
	case submission.ValidationAuthentication:
		return "AUTHENTICATION_REQUIRED"
	}
	return "VALIDATION_FAILED"
}
