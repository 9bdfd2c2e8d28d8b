package middleware

import (
	"encoding/json"
	"net/http"

	"report-portal/internal/model"
)

func writeJSONError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.Failure(code, message, ""))
}
