package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorError(t *testing.T) {
	err := New(CodeNotFound, "property not found", http.StatusNotFound)
	assert.Equal(t, "NOT_FOUND: property not found", err.Error())

	cause := errors.New("disk full")
	wrapped := Internal("boom", cause)
	assert.Contains(t, wrapped.Error(), "disk full")
	assert.ErrorIs(t, wrapped, cause)
}

func TestFrom(t *testing.T) {
	errMissing := errors.New("missing")
	classify := func(err error) *AppError {
		if errors.Is(err, errMissing) {
			return NotFound("property")
		}
		return nil
	}

	t.Run("Classified", func(t *testing.T) {
		got := From(fmt.Errorf("lookup: %w", errMissing), classify)
		assert.Equal(t, http.StatusNotFound, got.HTTPStatus)
		assert.Equal(t, "property not found", got.Message)
		assert.ErrorIs(t, got, errMissing)
	})

	t.Run("AlreadyAppError", func(t *testing.T) {
		orig := Forbidden("nope")
		assert.Same(t, orig, From(fmt.Errorf("ctx: %w", orig), classify))
	})

	t.Run("Fallback", func(t *testing.T) {
		got := From(errors.New("other"), classify)
		assert.Equal(t, CodeInternal, got.Code)
		assert.Equal(t, http.StatusInternalServerError, got.HTTPStatus)
	})
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, Validation("invalid input", map[string]any{"field": "title"}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeValidation, body.Code)
	assert.Equal(t, "title", body.Details["field"])
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusCreated, map[string]string{"ok": "yes"}))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
}
