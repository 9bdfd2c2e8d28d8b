package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"report-portal/pkg/apierror"
)

const maxBodyBytes = 64 << 10

var validate = validator.New()

// decodeBody reads a JSON body into dst and runs its validate tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apierror.BadRequest("invalid JSON body", "")
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fieldErr := range fieldErrs {
				fields = append(fields, strings.ToLower(fieldErr.Field())+":"+fieldErr.Tag())
			}
			return apierror.Validation(strings.Join(fields, ","))
		}
		return apierror.BadRequest("invalid request", "")
	}
	return nil
}

func parseIntOrDefault(raw string, fallback int) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}

	v, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}

	return v
}
