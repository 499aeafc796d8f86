package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		InvalidArgument:      http.StatusBadRequest,
		ValidationError:      http.StatusBadRequest,
		NotFound:             http.StatusNotFound,
		PayloadTooLarge:      http.StatusRequestEntityTooLarge,
		ConfigurationError:   http.StatusInternalServerError,
		ExternalServiceError: http.StatusInternalServerError,
		Unexpected:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.Status(), kind.String())
	}
}

func TestWrappedErrorKeepsKindAndCause(t *testing.T) {
	err := fmt.Errorf("get invoice: %w", Wrap(NotFound, "Invoice not found", sql.ErrNoRows))

	assert.True(t, Is(err, NotFound))
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.Equal(t, "Invoice not found", MessageOf(err))
}

func TestUnclassifiedErrorIsUnexpected(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, Unexpected, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Equal(t, "Internal server error", MessageOf(err))
	assert.False(t, Is(nil, Unexpected))
}
