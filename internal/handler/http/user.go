package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prostokit/excursions/internal/service"
	apperrors "github.com/prostokit/excursions/pkg/errors"
	"github.com/prostokit/excursions/pkg/middleware"
)

// UserHandler serves user lookup endpoints.
type UserHandler struct {
	sessions *service.SessionService
	logger   *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(sessions *service.SessionService, logger *slog.Logger) *UserHandler {
	return &UserHandler{sessions: sessions, logger: logger}
}

// Me handles GET /api/v1/users/me. It returns the principal resolved by the
// auth middleware, re-read from storage on token verification.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		writeAppError(w, r, h.logger, apperrors.Unauthorized("not authenticated"))
		return
	}

	user, err := h.sessions.GetUser(r.Context(), principal.ID)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// GetByID handles GET /api/v1/users/{id}. Restricted to admins by the router.
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeAppError(w, r, h.logger, apperrors.InvalidInput("invalid user id"))
		return
	}

	user, err := h.sessions.GetUser(r.Context(), id)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
