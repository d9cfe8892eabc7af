package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Unwrap(t *testing.T) {
	err := NotFound("user", "abc")
	assert.True(t, stderrors.Is(err, ErrNotFound))
	assert.Equal(t, "NOT_FOUND", err.Code)
}

func TestCredentialErrorsAreFixed(t *testing.T) {
	// Two failed logins must be byte-identical regardless of cause.
	a := InvalidCredentials()
	b := InvalidCredentials()
	assert.Equal(t, a.Message, b.Message)
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Status, b.Status)

	assert.True(t, stderrors.Is(InvalidToken(), ErrInvalidToken))
	assert.Equal(t, http.StatusUnauthorized, InvalidToken().Status)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", NotFound("user", "x"), http.StatusNotFound},
		{"already exists", AlreadyExists("user", "email", "a@b.c"), http.StatusConflict},
		{"invalid input", InvalidInput("bad"), http.StatusBadRequest},
		{"invalid credentials", InvalidCredentials(), http.StatusUnauthorized},
		{"invalid token", InvalidToken(), http.StatusUnauthorized},
		{"forbidden", Forbidden("no"), http.StatusForbidden},
		{"wrapped sentinel", Wrap(ErrNotFound, "lookup"), http.StatusNotFound},
		{"plain error", stderrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
