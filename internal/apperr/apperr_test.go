package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("update task: %w", Forbidden("only admins can change sprint assignment"))

	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Equal(t, "only admins can change sprint assignment", PublicMessage(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Unauthenticated(), http.StatusUnauthorized},
		{Forbidden(""), http.StatusForbidden},
		{NotFound("task"), http.StatusNotFound},
		{Validation("title is required"), http.StatusBadRequest},
		{Precondition("sprint has tasks"), http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "internal server error", PublicMessage(errors.New("pq: connection refused")))
	assert.Equal(t, "internal server error", PublicMessage(Degraded("blob delete failed", errors.New("timeout"))))
	assert.Equal(t, "task not found", PublicMessage(NotFound("task")))
}

func TestDegradedUnwraps(t *testing.T) {
	cause := errors.New("timeout")
	err := Degraded("blob delete failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrDegraded)
	assert.Equal(t, "blob delete failed: timeout", err.Error())
}
