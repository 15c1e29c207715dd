package errs

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound("report")))
	assert.True(t, IsPermissionDenied(NewPermissionDenied("not the author")))
	assert.True(t, IsWindowExpired(NewWindowExpired("too late")))
	assert.True(t, IsValidationFailed(NewValidationFailed("title", "too long")))
	assert.True(t, IsIncompleteImageMetadata(NewIncompleteImageMetadata()))
	assert.True(t, IsConflict(NewConflict("report")))
	assert.True(t, IsUnauthorized(NewUnauthorized("no token")))

	assert.False(t, IsNotFound(NewConflict("report")))
	assert.False(t, IsConflict(errors.New("plain")))
}

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NewNotFound("report").StatusCode)
	assert.Equal(t, http.StatusForbidden, NewPermissionDenied("x").StatusCode)
	assert.Equal(t, http.StatusGone, NewWindowExpired("x").StatusCode)
	assert.Equal(t, http.StatusBadRequest, NewValidationFailed("f", "x").StatusCode)
	assert.Equal(t, http.StatusUnprocessableEntity, NewIncompleteImageMetadata().StatusCode)
	assert.Equal(t, http.StatusConflict, NewConflict("report").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, NewUnauthorized("x").StatusCode)
	assert.Equal(t, http.StatusInternalServerError, NewInternal("x").StatusCode)
}

func TestGetFullError(t *testing.T) {
	inner := NewNotFound("event")
	outer := NewInternalWithCause("refreshing snapshot", inner)

	full := outer.GetFullError()
	assert.Contains(t, full, "refreshing snapshot")
	assert.Contains(t, full, "event")
}

func TestDatabaseErrorMapping(t *testing.T) {
	dup := NewDatabaseError("insert", "report", errors.New(`duplicate key value violates unique constraint "idx_reports_author_event"`))
	assert.True(t, IsConflict(dup))

	missing := NewDatabaseError("get", "report", errors.New("record not found"))
	assert.True(t, IsNotFound(missing))
}
