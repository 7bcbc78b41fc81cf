// Package cityrequests handles user requests for new cities and their
// moderator resolution.
package cityrequests

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pinielabera/thriftndrift-backend/internal/admins"
	"github.com/pinielabera/thriftndrift-backend/pkg/auth"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
)

// ServiceParams groups dependencies for the city requests service.
type ServiceParams struct {
	Docs   docstore.Store
	Admins admins.Service
	Logger *logger.Logger
}

// Service exposes city request intake and resolution.
type Service interface {
	Submit(ctx context.Context, identity auth.Identity, cityName, state, reason string) (models.CityRequest, error)
	Cancel(ctx context.Context, identity auth.Identity, requestID string) error
	Complete(ctx context.Context, moderatorID, requestID string) (models.CityRequest, error)
	Reject(ctx context.Context, moderatorID, requestID string) (models.CityRequest, error)
	ListByUser(ctx context.Context, userID string) ([]models.CityRequest, error)
	ListPending(ctx context.Context, moderatorID string) ([]models.CityRequest, error)
}

type service struct {
	docs   docstore.Store
	admins admins.Service
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds a city requests service.
func NewService(params ServiceParams) (Service, error) {
	if params.Docs == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "document store is required")
	}
	if params.Admins == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "admins service is required")
	}
	if params.Logger == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "logger is required")
	}
	return &service{docs: params.Docs, admins: params.Admins, logg: params.Logger, now: time.Now}, nil
}

// Submit records a request. A user with a pending request for the same
// city is refused with CONFLICT.
func (s *service) Submit(ctx context.Context, identity auth.Identity, cityName, state, reason string) (models.CityRequest, error) {
	if identity.ID == "" {
		return models.CityRequest{}, apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}
	cityName = strings.TrimSpace(cityName)
	state = strings.ToUpper(strings.TrimSpace(state))
	if cityName == "" {
		return models.CityRequest{}, apperrors.New(apperrors.CodeValidation, "city name is required")
	}
	if len(state) != 2 {
		return models.CityRequest{}, apperrors.New(apperrors.CodeValidation, "state must be a 2-letter code")
	}

	existing, err := s.ListByUser(ctx, identity.ID)
	if err != nil {
		return models.CityRequest{}, err
	}
	for _, request := range existing {
		if request.Status == enums.CityRequestStatusPending &&
			strings.EqualFold(request.CityName, cityName) && request.State == state {
			return models.CityRequest{}, apperrors.New(apperrors.CodeConflict, "a pending request for this city already exists")
		}
	}

	request := models.CityRequest{
		ID:          uuid.NewString(),
		CityName:    cityName,
		State:       state,
		Reason:      reason,
		Status:      enums.CityRequestStatusPending,
		RequestedBy: identity.ID,
		RequestedAt: s.now().UTC(),
	}
	if _, err := s.docs.Set(ctx, models.CollectionCityRequests, request.ID, request); err != nil {
		return models.CityRequest{}, apperrors.Wrap(apperrors.CodeDependency, err, "persist city request")
	}

	s.logg.Info(s.logg.WithUserID(ctx, identity.ID), "city request created for "+cityName+", "+state)
	return request, nil
}

// Cancel deletes a pending request. Owner only.
func (s *service) Cancel(ctx context.Context, identity auth.Identity, requestID string) error {
	if identity.ID == "" {
		return apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}
	_, request, err := s.load(ctx, requestID)
	if err != nil {
		return err
	}
	if request.RequestedBy != identity.ID {
		return apperrors.New(apperrors.CodeForbidden, "only the requester can cancel a request")
	}
	if request.Status != enums.CityRequestStatusPending {
		return apperrors.New(apperrors.CodeStateConflict, "request already "+request.Status.String())
	}
	if err := s.docs.Delete(ctx, models.CollectionCityRequests, requestID); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "delete city request")
	}
	return nil
}

// Complete marks the request completed. Moderator only.
func (s *service) Complete(ctx context.Context, moderatorID, requestID string) (models.CityRequest, error) {
	return s.resolve(ctx, moderatorID, requestID, enums.CityRequestStatusCompleted)
}

// Reject marks the request rejected. Moderator only.
func (s *service) Reject(ctx context.Context, moderatorID, requestID string) (models.CityRequest, error) {
	return s.resolve(ctx, moderatorID, requestID, enums.CityRequestStatusRejected)
}

func (s *service) resolve(ctx context.Context, moderatorID, requestID string, status enums.CityRequestStatus) (models.CityRequest, error) {
	admin, err := s.admins.Authorize(ctx, moderatorID)
	if err != nil {
		return models.CityRequest{}, err
	}

	snap, request, err := s.load(ctx, requestID)
	if err != nil {
		return models.CityRequest{}, err
	}
	if request.Status != enums.CityRequestStatusPending {
		return models.CityRequest{}, apperrors.New(apperrors.CodeStateConflict, "request already "+request.Status.String())
	}

	updated, err := s.docs.CompareAndUpdate(ctx, models.CollectionCityRequests, requestID, snap.Revision, map[string]any{
		"status":     status.String(),
		"resolvedAt": s.now().UTC(),
		"resolvedBy": admin.UserID,
	})
	if err != nil {
		if apperrors.Is(err, apperrors.CodeStateConflict) {
			return models.CityRequest{}, err
		}
		return models.CityRequest{}, apperrors.Wrap(apperrors.CodeDependency, err, "resolve city request")
	}
	if err := updated.Decode(&request); err != nil {
		return models.CityRequest{}, err
	}

	s.logg.Info(ctx, "city request "+requestID+" "+status.String())
	return request, nil
}

// ListByUser returns the user's requests, newest first.
func (s *service) ListByUser(ctx context.Context, userID string) ([]models.CityRequest, error) {
	return s.list(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "requestedBy", Op: docstore.OpEqual, Value: userID}},
		OrderBy: "requestedAt",
		Desc:    true,
	})
}

// ListPending returns every pending request, oldest first. Moderator
// only.
func (s *service) ListPending(ctx context.Context, moderatorID string) ([]models.CityRequest, error) {
	if _, err := s.admins.Authorize(ctx, moderatorID); err != nil {
		return nil, err
	}
	return s.list(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "status", Op: docstore.OpEqual, Value: enums.CityRequestStatusPending.String()}},
		OrderBy: "requestedAt",
	})
}

func (s *service) list(ctx context.Context, q docstore.Query) ([]models.CityRequest, error) {
	snaps, err := s.docs.Query(ctx, models.CollectionCityRequests, q)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "list city requests")
	}
	out := make([]models.CityRequest, 0, len(snaps))
	for _, snap := range snaps {
		var request models.CityRequest
		if err := snap.Decode(&request); err != nil {
			return nil, err
		}
		out = append(out, request)
	}
	return out, nil
}

func (s *service) load(ctx context.Context, requestID string) (docstore.Snapshot, models.CityRequest, error) {
	snap, err := s.docs.Get(ctx, models.CollectionCityRequests, requestID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return docstore.Snapshot{}, models.CityRequest{}, err
		}
		return docstore.Snapshot{}, models.CityRequest{}, apperrors.Wrap(apperrors.CodeDependency, err, "load city request")
	}
	var request models.CityRequest
	if err := snap.Decode(&request); err != nil {
		return docstore.Snapshot{}, models.CityRequest{}, err
	}
	return snap, request, nil
}
