package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pinielabera/thriftndrift-backend/api/responses"
	"github.com/pinielabera/thriftndrift-backend/api/validators"
	"github.com/pinielabera/thriftndrift-backend/internal/cities"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
)

// ListCities returns the city index for a region, defaulting to the
// active catalog region.
func ListCities(svc *cities.Service, activeRegion func() string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "cities service unavailable"))
			return
		}

		region := validators.OptionalQuery(r, "region", activeRegion())
		responses.WriteSuccess(w, map[string]any{
			"region": region,
			"cities": svc.CitiesForRegion(region),
		})
	}
}

// StoresNearCity returns the stores within the proximity radius of a city.
func StoresNearCity(svc *cities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "cities service unavailable"))
			return
		}

		cityID := chi.URLParam(r, "cityId")
		stores, err := svc.StoresNearCity(cityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"stores": stores})
	}
}

// SearchCities filters the city index by a text query.
func SearchCities(svc *cities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "cities service unavailable"))
			return
		}

		query, err := validators.RequireQuery(r, "q")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"cities": svc.Search(query)})
	}
}
