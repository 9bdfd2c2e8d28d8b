package model

// APIResponse is the envelope of every portal JSON response.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func Success(data any) APIResponse {
	return APIResponse{Success: true, Data: data}
}

func Failure(code string, message string, details string) APIResponse {
	return APIResponse{Success: false, Error: &APIError{Code: code, Message: message, Details: details}}
}
