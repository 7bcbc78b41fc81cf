package controllers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pinielabera/thriftndrift-backend/api/middleware"
	"github.com/pinielabera/thriftndrift-backend/api/responses"
	"github.com/pinielabera/thriftndrift-backend/api/validators"
	"github.com/pinielabera/thriftndrift-backend/internal/submissions"
	"github.com/pinielabera/thriftndrift-backend/pkg/config"
	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
	"github.com/pinielabera/thriftndrift-backend/pkg/types"
)

type submitStoreRequest struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Street      string   `json:"street"`
	City        string   `json:"city"`
	State       string   `json:"state" validate:"required,len=2"`
	Zip         string   `json:"zip"`
	Latitude    float64  `json:"latitude" validate:"required"`
	Longitude   float64  `json:"longitude" validate:"required"`
	Categories  []string `json:"categories"`
	PriceRange  string   `json:"priceRange"`
	Website     string   `json:"website"`
	PhoneNumber string   `json:"phoneNumber"`

	AcceptsDonations      bool `json:"acceptsDonations"`
	HasClothingSection    bool `json:"hasClothingSection"`
	HasFurnitureSection   bool `json:"hasFurnitureSection"`
	HasElectronicsSection bool `json:"hasElectronicsSection"`
}

// SubmitStore accepts a user-submitted store for moderation.
func SubmitStore(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "submissions service unavailable"))
			return
		}

		var req submitStoreRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record := models.StoreRecord{
			ID:          req.ID,
			Name:        req.Name,
			Description: req.Description,
			Address: types.Address{
				Street: req.Street,
				City:   req.City,
				State:  req.State,
				Zip:    req.Zip,
			},
			Location: types.Coordinate{
				Latitude:  req.Latitude,
				Longitude: req.Longitude,
			},
			Categories:  req.Categories,
			PriceRange:  enums.PriceRange(req.PriceRange),
			Website:     req.Website,
			PhoneNumber: req.PhoneNumber,

			AcceptsDonations:      req.AcceptsDonations,
			HasClothingSection:    req.HasClothingSection,
			HasFurnitureSection:   req.HasFurnitureSection,
			HasElectronicsSection: req.HasElectronicsSection,
		}

		identity := middleware.IdentityFromContext(r.Context())
		created, err := svc.SubmitStore(r.Context(), identity, record)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// SubmitPhotos accepts a multipart batch of photos for a store.
func SubmitPhotos(svc submissions.Service, cfg config.SubmissionsConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeInternal, "submissions service unavailable"))
			return
		}

		storeID := chi.URLParam(r, "storeId")

		maxBytes := int64(cfg.MaxUploadMB) * 1024 * 1024
		limit := maxBytes * int64(cfg.MaxPhotosPerSubmission)
		if limit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "invalid multipart body"))
			return
		}

		if r.MultipartForm == nil || len(r.MultipartForm.File["photos"]) == 0 {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeValidation, "at least one photo is required"))
			return
		}

		var photos []submissions.PhotoUpload
		for _, header := range r.MultipartForm.File["photos"] {
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
			photos = append(photos, submissions.PhotoUpload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			})
		}

		identity := middleware.IdentityFromContext(r.Context())
		result, err := svc.SubmitPhotos(r.Context(), identity, storeID, photos)
		if err != nil {
			if apperrors.Is(err, apperrors.CodePartialFailure) && result.Submission.ID != "" {
				responses.WriteSuccessStatus(w, http.StatusMultiStatus, result)
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
