package controllers

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pinielabera/thriftndrift-backend/api/middleware"
	"github.com/pinielabera/thriftndrift-backend/api/responses"
	"github.com/pinielabera/thriftndrift-backend/api/validators"
	"github.com/pinielabera/thriftndrift-backend/internal/finds"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
)

const maxFindUploadBytes = 20 << 20

// ListFinds returns the whole feed, or one user's posts when the
// userId query is present.
func ListFinds(svc finds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "finds service unavailable"))
			return
		}

		var err error
		var list any
		if userID := validators.OptionalQuery(r, "userId", ""); userID != "" {
			list, err = svc.ListByUser(r.Context(), userID)
		} else {
			list, err = svc.ListAll(r.Context())
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"finds": list})
	}
}

// CreateFind accepts a multipart post with photos and metadata.
func CreateFind(svc finds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "finds service unavailable"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxFindUploadBytes)
		if err := r.ParseMultipartForm(maxFindUploadBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "invalid multipart body"))
			return
		}

		find := finds.NewFind{
			StoreID:     strings.TrimSpace(r.FormValue("storeId")),
			StoreName:   strings.TrimSpace(r.FormValue("storeName")),
			Description: strings.TrimSpace(r.FormValue("description")),
			Category:    strings.TrimSpace(r.FormValue("category")),
			Location:    strings.TrimSpace(r.FormValue("location")),
		}

		if raw := strings.TrimSpace(r.FormValue("price")); raw != "" {
			price, err := decimal.NewFromString(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "invalid price"))
				return
			}
			find.Price = &price
		}

		if r.MultipartForm != nil {
			for _, header := range r.MultipartForm.File["images"] {
				file, err := header.Open()
				if err != nil {
					responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "open uploaded file"))
					return
				}
				data, err := io.ReadAll(file)
				file.Close()
				if err != nil {
					responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "read uploaded file"))
					return
				}
				find.Images = append(find.Images, data)
			}
		}

		identity := middleware.IdentityFromContext(r.Context())
		created, err := svc.Create(r.Context(), identity, find)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ToggleFindLike flips the caller's like on a post.
func ToggleFindLike(svc finds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "finds service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		find, err := svc.ToggleLike(r.Context(), identity, chi.URLParam(r, "findId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, find)
	}
}

type addCommentRequest struct {
	Text string `json:"text" validate:"required,max=500"`
}

// AddFindComment appends a comment to a post.
func AddFindComment(svc finds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "finds service unavailable"))
			return
		}

		var req addCommentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		find, err := svc.AddComment(r.Context(), identity, chi.URLParam(r, "findId"), req.Text)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, find)
	}
}

// DeleteFind removes the caller's own post.
func DeleteFind(svc finds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "finds service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		if err := svc.Delete(r.Context(), identity, chi.URLParam(r, "findId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
