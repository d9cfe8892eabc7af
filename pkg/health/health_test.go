package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivenessHandler(t *testing.T) {
	h := NewHandler()

	rec := httptest.NewRecorder()
	h.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		register   func(h *Handler)
		wantStatus int
		wantBody   Status
	}{
		{
			name:       "no checkers",
			register:   func(*Handler) {},
			wantStatus: http.StatusOK,
			wantBody:   StatusUp,
		},
		{
			name: "critical checker passing",
			register: func(h *Handler) {
				h.RegisterCritical("postgres", func(context.Context) error { return nil })
			},
			wantStatus: http.StatusOK,
			wantBody:   StatusUp,
		},
		{
			name: "critical checker failing",
			register: func(h *Handler) {
				h.RegisterCritical("postgres", func(context.Context) error { return errors.New("down") })
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   StatusDown,
		},
		{
			name: "non-critical failure stays ready",
			register: func(h *Handler) {
				h.RegisterCritical("postgres", func(context.Context) error { return nil })
				h.RegisterNonCritical("kafka", func(context.Context) error { return errors.New("down") })
			},
			wantStatus: http.StatusOK,
			wantBody:   StatusUp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			tt.register(h)

			rec := httptest.NewRecorder()
			h.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantBody, resp.Status)
		})
	}
}
