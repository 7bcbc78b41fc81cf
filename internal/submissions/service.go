// Package submissions implements the store and photo submission
// workflow: user-facing intake with duplicate-image detection and the
// moderator-facing approve/reject transitions.
package submissions

import (
	"context"
	"time"

	"github.com/pinielabera/thriftndrift-backend/internal/admins"
	"github.com/pinielabera/thriftndrift-backend/pkg/auth"
	"github.com/pinielabera/thriftndrift-backend/pkg/blobstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/config"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/metrics"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
	"github.com/pinielabera/thriftndrift-backend/pkg/staticdata"
)

// ServiceParams groups dependencies for the submissions service.
type ServiceParams struct {
	Docs      docstore.Store
	Blobs     blobstore.Store
	Admins    admins.Service
	Static    *staticdata.Catalog
	Publisher EventPublisher
	Config    config.SubmissionsConfig
	Logger    *logger.Logger
	Metrics   *metrics.SubmissionMetrics
}

// Service exposes the submission workflow.
type Service interface {
	SubmitStore(ctx context.Context, identity auth.Identity, record models.StoreRecord) (models.StoreRecord, error)
	SubmitPhotos(ctx context.Context, identity auth.Identity, storeID string, photos []PhotoUpload) (SubmitPhotosResult, error)

	ApprovePhotos(ctx context.Context, moderatorID, submissionID string) (models.PhotoSubmission, error)
	RejectPhotos(ctx context.Context, moderatorID, submissionID, reason string) (models.PhotoSubmission, error)
	ApproveStore(ctx context.Context, moderatorID, submissionID string) (models.StoreRecord, error)
	RejectStore(ctx context.Context, moderatorID, submissionID, reason string) (models.StoreRecord, error)

	ListPhotoSubmissions(ctx context.Context, moderatorID string, status enums.SubmissionStatus) ([]models.PhotoSubmission, error)
	ListStoreSubmissions(ctx context.Context, moderatorID string, status enums.VerificationStatus) ([]models.StoreRecord, error)
}

type service struct {
	docs      docstore.Store
	blobs     blobstore.Store
	admins    admins.Service
	static    *staticdata.Catalog
	publisher EventPublisher
	cfg       config.SubmissionsConfig
	logg      *logger.Logger
	metrics   *metrics.SubmissionMetrics
	now       func() time.Time
}

// NewService builds a submissions service with the required
// dependencies. Publisher and Static may be nil.
func NewService(params ServiceParams) (Service, error) {
	if params.Docs == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "document store is required")
	}
	if params.Blobs == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "blob store is required")
	}
	if params.Admins == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "admins service is required")
	}
	if params.Logger == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "logger is required")
	}
	return &service{
		docs:      params.Docs,
		blobs:     params.Blobs,
		admins:    params.Admins,
		static:    params.Static,
		publisher: params.Publisher,
		cfg:       params.Config,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       time.Now,
	}, nil
}

// ListPhotoSubmissions returns photo submissions in the given status,
// newest first. Moderator only.
func (s *service) ListPhotoSubmissions(ctx context.Context, moderatorID string, status enums.SubmissionStatus) ([]models.PhotoSubmission, error) {
	if _, err := s.admins.Authorize(ctx, moderatorID); err != nil {
		return nil, err
	}
	q := docstore.Query{OrderBy: "submittedAt", Desc: true}
	if status != "" {
		q.Filters = []docstore.Filter{{Field: "status", Op: docstore.OpEqual, Value: status.String()}}
	}
	snaps, err := s.docs.Query(ctx, models.CollectionPhotoSubmissions, q)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "list photo submissions")
	}
	out := make([]models.PhotoSubmission, 0, len(snaps))
	for _, snap := range snaps {
		var submission models.PhotoSubmission
		if err := snap.Decode(&submission); err != nil {
			return nil, err
		}
		out = append(out, submission)
	}
	return out, nil
}

// ListStoreSubmissions returns store submissions in the given status,
// newest first. Moderator only.
func (s *service) ListStoreSubmissions(ctx context.Context, moderatorID string, status enums.VerificationStatus) ([]models.StoreRecord, error) {
	if _, err := s.admins.Authorize(ctx, moderatorID); err != nil {
		return nil, err
	}
	q := docstore.Query{OrderBy: "createdAt", Desc: true}
	if status != "" {
		q.Filters = []docstore.Filter{{Field: "verificationStatus", Op: docstore.OpEqual, Value: status.String()}}
	}
	snaps, err := s.docs.Query(ctx, models.CollectionStoreSubmissions, q)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "list store submissions")
	}
	out := make([]models.StoreRecord, 0, len(snaps))
	for _, snap := range snaps {
		var record models.StoreRecord
		if err := snap.Decode(&record); err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *service) publish(ctx context.Context, event ModerationEvent) {
	if s.publisher == nil {
		return
	}
	event.OccurredAt = s.now().UTC()
	if err := s.publisher.PublishModerationEvent(ctx, event); err != nil {
		s.logg.Warn(s.logg.WithSubmissionID(ctx, event.SubmissionID), "publishing moderation event failed")
	}
}

// resolveStoreName looks the store up in the live collections, then in
// the static dataset. The second return reports whether a document
// exists that can receive approved image URLs.
func (s *service) resolveStoreName(ctx context.Context, storeID string) (string, bool, error) {
	for _, collection := range []string{models.CollectionStores, models.CollectionStoreSubmissions} {
		snap, err := s.docs.Get(ctx, collection, storeID)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				continue
			}
			return "", false, apperrors.Wrap(apperrors.CodeDependency, err, "load store "+storeID)
		}
		var record models.StoreRecord
		if err := snap.Decode(&record); err != nil {
			return "", false, err
		}
		return record.Name, true, nil
	}

	if s.static != nil {
		for _, region := range s.static.Regions() {
			for _, record := range s.static.StoresForRegion(region) {
				if record.ID == storeID {
					return record.Name, false, nil
				}
			}
		}
	}
	return "", false, apperrors.New(apperrors.CodeNotFound, "store "+storeID+" not found")
}
