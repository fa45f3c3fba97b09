package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFromWrappedError(t *testing.T) {
	err := fmt.Errorf("join conversation: %w", ErrValidation)
	assert.Equal(t, http.StatusBadRequest, HTTPStatusFromError(err))
	assert.Equal(t, "validation", Code(err))

	err = fmt.Errorf("append message: %w", ErrPersistence)
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatusFromError(err))
	assert.Equal(t, "persistence", Code(err))
}

func TestHTTPStatusFromAPIError(t *testing.T) {
	assert.Equal(t, http.StatusTeapot, HTTPStatusFromError(NewAPIError("brew", http.StatusTeapot)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromError(fmt.Errorf("boom")))
}
