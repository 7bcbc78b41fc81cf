package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pinielabera/thriftndrift-backend/api/middleware"
	"github.com/pinielabera/thriftndrift-backend/api/responses"
	"github.com/pinielabera/thriftndrift-backend/internal/favorites"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
)

// ListFavorites returns the caller's favorite store ids.
func ListFavorites(svc favorites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "favorites service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		ids, err := svc.List(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"storeIds": ids})
	}
}

// ToggleFavorite flips a store in or out of the caller's favorites.
func ToggleFavorite(svc favorites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "favorites service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		favorited, err := svc.Toggle(r.Context(), identity, chi.URLParam(r, "storeId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"favorited": favorited})
	}
}

// RemoveFavorite drops a store from the caller's favorites.
func RemoveFavorite(svc favorites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "favorites service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		if err := svc.Remove(r.Context(), identity, chi.URLParam(r, "storeId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}
