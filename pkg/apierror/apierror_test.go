package apierror

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	assert.Equal(t, "BAD_REQUEST: invalid JSON body", BadRequest("invalid JSON body", "").Error())
	assert.Equal(t, "VALIDATION_FAILED: request validation failed (email:email)", Validation("email:email").Error())

	var nilErr *APIError
	assert.Empty(t, nilErr.Error())
}

func TestAsFindsWrappedError(t *testing.T) {
	err := fmt.Errorf("start session: %w", Unauthorized())

	apiErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, CodeUnauthorized, apiErr.Code)
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatus)

	_, ok = As(fmt.Errorf("plain"))
	assert.False(t, ok)
}
