package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func staticResolver(p *Principal, err error) PrincipalResolver {
	return func(context.Context, string) (*Principal, error) {
		return p, err
	}
}

func TestAuth(t *testing.T) {
	principal := &Principal{ID: "u1", Email: "a@b.c", Role: "teacher"}

	tests := []struct {
		name       string
		header     string
		resolve    PrincipalResolver
		wantStatus int
	}{
		{
			name:       "valid bearer token",
			header:     "Bearer good-token",
			resolve:    staticResolver(principal, nil),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			header:     "",
			resolve:    staticResolver(principal, nil),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			header:     "Basic dXNlcjpwYXNz",
			resolve:    staticResolver(principal, nil),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "resolver rejects token",
			header:     "Bearer bad-token",
			resolve:    staticResolver(nil, errors.New("invalid")),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *Principal
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Auth(tt.resolve)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, got)
				assert.Equal(t, principal.ID, got.ID)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		principal  *Principal
		allowed    []string
		wantStatus int
	}{
		{
			name:       "role allowed",
			principal:  &Principal{ID: "u1", Role: "admin"},
			allowed:    []string{"admin"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "one of several allowed",
			principal:  &Principal{ID: "u1", Role: "teacher"},
			allowed:    []string{"admin", "teacher"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "role denied",
			principal:  &Principal{ID: "u1", Role: "parent"},
			allowed:    []string{"admin"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "no principal",
			principal:  nil,
			allowed:    []string{"admin"},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.principal != nil {
				ctx := context.WithValue(req.Context(), principalKey, tt.principal)
				req = req.WithContext(ctx)
			}
			rec := httptest.NewRecorder()

			RequireRole(tt.allowed...)(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
