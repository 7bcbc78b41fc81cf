package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pinielabera/thriftndrift-backend/api/middleware"
	"github.com/pinielabera/thriftndrift-backend/api/responses"
	"github.com/pinielabera/thriftndrift-backend/api/validators"
	"github.com/pinielabera/thriftndrift-backend/internal/cityrequests"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
)

type submitCityRequest struct {
	CityName string `json:"cityName" validate:"required"`
	State    string `json:"state" validate:"required,len=2"`
	Reason   string `json:"reason"`
}

// SubmitCityRequest records a request to cover a new city.
func SubmitCityRequest(svc cityrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "city requests service unavailable"))
			return
		}

		var req submitCityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		created, err := svc.Submit(r.Context(), identity, req.CityName, req.State, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ListCityRequests returns the caller's own requests.
func ListCityRequests(svc cityrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "city requests service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		list, err := svc.ListByUser(r.Context(), identity.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"requests": list})
	}
}

// CancelCityRequest withdraws the caller's own pending request.
func CancelCityRequest(svc cityrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "city requests service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		if err := svc.Cancel(r.Context(), identity, chi.URLParam(r, "requestId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

// ListPendingCityRequests returns the moderation queue of open requests.
func ListPendingCityRequests(svc cityrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "city requests service unavailable"))
			return
		}

		moderatorID := middleware.IdentityFromContext(r.Context()).ID
		list, err := svc.ListPending(r.Context(), moderatorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"requests": list})
	}
}

// CompleteCityRequest marks a request as done.
func CompleteCityRequest(svc cityrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "city requests service unavailable"))
			return
		}

		moderatorID := middleware.IdentityFromContext(r.Context()).ID
		request, err := svc.Complete(r.Context(), moderatorID, chi.URLParam(r, "requestId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// RejectCityRequest declines a request.
func RejectCityRequest(svc cityrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "city requests service unavailable"))
			return
		}

		moderatorID := middleware.IdentityFromContext(r.Context()).ID
		request, err := svc.Reject(r.Context(), moderatorID, chi.URLParam(r, "requestId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}
