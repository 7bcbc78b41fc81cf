package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pinielabera/thriftndrift-backend/api/middleware"
	"github.com/pinielabera/thriftndrift-backend/api/responses"
	"github.com/pinielabera/thriftndrift-backend/api/validators"
	"github.com/pinielabera/thriftndrift-backend/internal/admins"
	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
)

// AdminFlag returns the display-only admin flag for the caller. The
// value may be stale; moderation endpoints never trust it.
func AdminFlag(svc admins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "admins service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		isAdmin, err := svc.DisplayFlag(r.Context(), identity.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"isAdmin": isAdmin})
	}
}

// ListAdmins returns every moderation account.
func ListAdmins(svc admins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "admins service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		if _, err := svc.Authorize(r.Context(), identity.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"admins": list})
	}
}

type grantAdminRequest struct {
	UserID string `json:"userId" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Role   string `json:"role" validate:"required"`
}

// GrantAdmin creates or updates a moderation account.
func GrantAdmin(svc admins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "admins service unavailable"))
			return
		}

		var req grantAdminRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role, err := enums.ParseAdminRole(req.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "invalid role"))
			return
		}

		actorID := middleware.IdentityFromContext(r.Context()).ID
		admin, err := svc.Grant(r.Context(), actorID, req.UserID, req.Email, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, admin)
	}
}

// RevokeAdmin removes a moderation account.
func RevokeAdmin(svc admins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "admins service unavailable"))
			return
		}

		actorID := middleware.IdentityFromContext(r.Context()).ID
		if err := svc.Revoke(r.Context(), actorID, chi.URLParam(r, "userId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "revoked"})
	}
}
