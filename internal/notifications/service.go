// Package notifications turns moderation events into per-user
// notification documents and serves them back to clients.
package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pinielabera/thriftndrift-backend/internal/submissions"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
)

// ServiceParams groups dependencies for the notifications service.
type ServiceParams struct {
	Docs   docstore.Store
	Logger *logger.Logger
}

// Service records and serves user notifications.
type Service interface {
	HandleModerationEvent(ctx context.Context, event submissions.ModerationEvent) error
	HandleMessage(ctx context.Context, data []byte) error
	ListForUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
}

type service struct {
	docs docstore.Store
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds a notifications service.
func NewService(params ServiceParams) (Service, error) {
	if params.Docs == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "document store is required")
	}
	if params.Logger == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "logger is required")
	}
	return &service{docs: params.Docs, logg: params.Logger, now: time.Now}, nil
}

// HandleMessage decodes a raw moderation event message and records the
// notification. Malformed payloads are dropped with a warning so the
// subscription does not redeliver them forever.
func (s *service) HandleMessage(ctx context.Context, data []byte) error {
	var event submissions.ModerationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logg.Warn(ctx, "dropping malformed moderation event")
		return nil
	}
	return s.HandleModerationEvent(ctx, event)
}

// HandleModerationEvent writes one notification for the submitter.
func (s *service) HandleModerationEvent(ctx context.Context, event submissions.ModerationEvent) error {
	if event.SubmittedBy == "" {
		return nil
	}

	notification := models.Notification{
		ID:        uuid.NewString(),
		UserID:    event.SubmittedBy,
		Kind:      event.Kind,
		Subject:   subjectFor(event),
		Body:      event.Reason,
		CreatedAt: s.now().UTC(),
	}
	if _, err := s.docs.Set(ctx, models.CollectionNotifications, notification.ID, notification); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "persist notification")
	}
	s.logg.Info(s.logg.WithUserID(ctx, event.SubmittedBy), "notification recorded for "+event.Kind)
	return nil
}

func subjectFor(event submissions.ModerationEvent) string {
	name := event.StoreName
	if name == "" {
		name = event.StoreID
	}
	switch event.Kind {
	case submissions.EventKindPhotoSubmission:
		return "Your photos for " + name + " were " + event.Outcome
	case submissions.EventKindStoreSubmission:
		return "Your store submission " + name + " was " + event.Outcome
	default:
		return "Your submission was " + event.Outcome
	}
}

// ListForUser returns the user's notifications, newest first.
func (s *service) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	if userID == "" {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}
	snaps, err := s.docs.Query(ctx, models.CollectionNotifications, docstore.Query{
		Filters: []docstore.Filter{{Field: "userId", Op: docstore.OpEqual, Value: userID}},
		OrderBy: "createdAt",
		Desc:    true,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "list notifications")
	}
	out := make([]models.Notification, 0, len(snaps))
	for _, snap := range snaps {
		var notification models.Notification
		if err := snap.Decode(&notification); err != nil {
			return nil, err
		}
		out = append(out, notification)
	}
	return out, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *service) MarkRead(ctx context.Context, userID, notificationID string) error {
	if userID == "" {
		return apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}
	snap, err := s.docs.Get(ctx, models.CollectionNotifications, notificationID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return err
		}
		return apperrors.Wrap(apperrors.CodeDependency, err, "load notification")
	}
	var notification models.Notification
	if err := snap.Decode(&notification); err != nil {
		return err
	}
	if notification.UserID != userID {
		return apperrors.New(apperrors.CodeForbidden, "notification belongs to another user")
	}
	if _, err := s.docs.Update(ctx, models.CollectionNotifications, notificationID, map[string]any{"read": true}); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "mark notification read")
	}
	return nil
}
