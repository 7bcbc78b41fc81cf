package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pinielabera/thriftndrift-backend/api/middleware"
	"github.com/pinielabera/thriftndrift-backend/api/responses"
	"github.com/pinielabera/thriftndrift-backend/api/validators"
	"github.com/pinielabera/thriftndrift-backend/internal/submissions"
	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
)

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ListPhotoSubmissions returns photo submissions in a moderation state,
// defaulting to pending.
func ListPhotoSubmissions(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "submissions service unavailable"))
			return
		}

		status, err := enums.ParseSubmissionStatus(validators.OptionalQuery(r, "status", string(enums.SubmissionStatusPending)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "invalid status"))
			return
		}

		moderatorID := middleware.IdentityFromContext(r.Context()).ID
		list, err := svc.ListPhotoSubmissions(r.Context(), moderatorID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"submissions": list})
	}
}

// ListStoreSubmissions returns store submissions in a verification
// state, defaulting to pending.
func ListStoreSubmissions(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "submissions service unavailable"))
			return
		}

		status, err := enums.ParseVerificationStatus(validators.OptionalQuery(r, "status", string(enums.VerificationStatusPending)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "invalid status"))
			return
		}

		moderatorID := middleware.IdentityFromContext(r.Context()).ID
		list, err := svc.ListStoreSubmissions(r.Context(), moderatorID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"submissions": list})
	}
}

// ApprovePhotoSubmission promotes a pending photo batch.
func ApprovePhotoSubmission(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "submissions service unavailable"))
			return
		}

		moderatorID := middleware.IdentityFromContext(r.Context()).ID
		submission, err := svc.ApprovePhotos(r.Context(), moderatorID, chi.URLParam(r, "submissionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, submission)
	}
}

// RejectPhotoSubmission rejects a pending photo batch.
func RejectPhotoSubmission(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "submissions service unavailable"))
			return
		}

		var req rejectRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		moderatorID := middleware.IdentityFromContext(r.Context()).ID
		submission, err := svc.RejectPhotos(r.Context(), moderatorID, chi.URLParam(r, "submissionId"), req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, submission)
	}
}

// ApproveStoreSubmission verifies a pending store and moves it into the
// stores collection.
func ApproveStoreSubmission(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "submissions service unavailable"))
			return
		}

		moderatorID := middleware.IdentityFromContext(r.Context()).ID
		record, err := svc.ApproveStore(r.Context(), moderatorID, chi.URLParam(r, "submissionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// RejectStoreSubmission rejects a pending store in place.
func RejectStoreSubmission(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "submissions service unavailable"))
			return
		}

		var req rejectRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		moderatorID := middleware.IdentityFromContext(r.Context()).ID
		record, err := svc.RejectStore(r.Context(), moderatorID, chi.URLParam(r, "submissionId"), req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}
