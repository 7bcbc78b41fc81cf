package submissions

import (
	"context"

	"github.com/pinielabera/thriftndrift-backend/pkg/auth"
	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
)

// SubmitStore writes a new pending store record keyed by the
// client-generated id. Field presence is the only validation; the
// caller is expected to have resolved geocoding before this boundary.
func (s *service) SubmitStore(ctx context.Context, identity auth.Identity, record models.StoreRecord) (models.StoreRecord, error) {
	if identity.ID == "" {
		return models.StoreRecord{}, apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}
	if record.ID == "" {
		return models.StoreRecord{}, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	if record.Name == "" {
		return models.StoreRecord{}, apperrors.New(apperrors.CodeValidation, "store name is required")
	}
	if record.Address.State == "" {
		return models.StoreRecord{}, apperrors.New(apperrors.CodeValidation, "store state is required")
	}

	for _, collection := range []string{models.CollectionStores, models.CollectionStoreSubmissions} {
		if _, err := s.docs.Get(ctx, collection, record.ID); err == nil {
			return models.StoreRecord{}, apperrors.New(apperrors.CodeConflict, "store id already in use")
		} else if !apperrors.Is(err, apperrors.CodeNotFound) {
			return models.StoreRecord{}, apperrors.Wrap(apperrors.CodeDependency, err, "check store id")
		}
	}

	record.VerificationStatus = enums.VerificationStatusPending
	record.IsUserSubmitted = true
	record.SubmittedBy = identity.ID
	record.RejectionReason = ""
	record.LastVerified = nil
	record.PromotedFrom = ""
	record.CreatedAt = s.now().UTC()

	if _, err := s.docs.Set(ctx, models.CollectionStoreSubmissions, record.ID, record); err != nil {
		return models.StoreRecord{}, apperrors.Wrap(apperrors.CodeDependency, err, "persist store submission")
	}

	s.logg.Info(s.logg.WithStoreID(s.logg.WithUserID(ctx, identity.ID), record.ID), "store submission created")
	s.metrics.IncOutcome(EventKindStoreSubmission, "submitted")
	return record, nil
}

// ApproveStore flips the pending record to verified in place, copies
// it into the verified partition and deletes the leftover pending
// document. The in-place flip keeps the store visible through the
// submission-partition subscription until the promoted copy lands;
// the copy carries promotedFrom so a crash between steps leaves a
// detectable partial state rather than silent loss.
func (s *service) ApproveStore(ctx context.Context, moderatorID, submissionID string) (models.StoreRecord, error) {
	admin, err := s.admins.Authorize(ctx, moderatorID)
	if err != nil {
		return models.StoreRecord{}, err
	}

	snap, err := s.docs.Get(ctx, models.CollectionStoreSubmissions, submissionID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return models.StoreRecord{}, err
		}
		return models.StoreRecord{}, apperrors.Wrap(apperrors.CodeDependency, err, "load store submission")
	}
	var record models.StoreRecord
	if err := snap.Decode(&record); err != nil {
		return models.StoreRecord{}, err
	}
	if record.VerificationStatus != enums.VerificationStatusPending {
		return models.StoreRecord{}, apperrors.New(apperrors.CodeStateConflict,
			"store submission already "+record.VerificationStatus.String())
	}

	ctx = s.logg.WithStoreID(ctx, record.ID)

	now := s.now().UTC()
	record.VerificationStatus = enums.VerificationStatusVerified
	record.LastVerified = &now
	record.RejectionReason = ""

	if _, err := s.docs.Set(ctx, models.CollectionStoreSubmissions, submissionID, record); err != nil {
		return models.StoreRecord{}, apperrors.Wrap(apperrors.CodeDependency, err, "mark store submission verified")
	}

	record.PromotedFrom = submissionID
	if _, err := s.docs.Set(ctx, models.CollectionStores, record.ID, record); err != nil {
		return models.StoreRecord{}, apperrors.Wrap(apperrors.CodeDependency, err, "write verified store")
	}
	if err := s.docs.Delete(ctx, models.CollectionStoreSubmissions, submissionID); err != nil {
		s.logg.Warn(ctx, "deleting promoted store submission failed; reconciliation will catch the leftover copy")
	}

	s.logg.Info(ctx, "store submission approved")
	s.metrics.IncOutcome(EventKindStoreSubmission, "approved")
	s.publish(ctx, ModerationEvent{
		Kind:         EventKindStoreSubmission,
		SubmissionID: submissionID,
		StoreID:      record.ID,
		StoreName:    record.Name,
		Outcome:      enums.VerificationStatusVerified.String(),
		SubmittedBy:  record.SubmittedBy,
		ReviewedBy:   admin.UserID,
	})
	return record, nil
}

// RejectStore marks the pending record rejected in place; nothing is
// deleted.
func (s *service) RejectStore(ctx context.Context, moderatorID, submissionID, reason string) (models.StoreRecord, error) {
	admin, err := s.admins.Authorize(ctx, moderatorID)
	if err != nil {
		return models.StoreRecord{}, err
	}

	snap, err := s.docs.Get(ctx, models.CollectionStoreSubmissions, submissionID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return models.StoreRecord{}, err
		}
		return models.StoreRecord{}, apperrors.Wrap(apperrors.CodeDependency, err, "load store submission")
	}
	var record models.StoreRecord
	if err := snap.Decode(&record); err != nil {
		return models.StoreRecord{}, err
	}
	if record.VerificationStatus != enums.VerificationStatusPending {
		return models.StoreRecord{}, apperrors.New(apperrors.CodeStateConflict,
			"store submission already "+record.VerificationStatus.String())
	}

	updated, err := s.docs.CompareAndUpdate(ctx, models.CollectionStoreSubmissions, submissionID, snap.Revision, map[string]any{
		"verificationStatus": enums.VerificationStatusRejected.String(),
		"rejectionReason":    reason,
	})
	if err != nil {
		if apperrors.Is(err, apperrors.CodeStateConflict) {
			return models.StoreRecord{}, err
		}
		return models.StoreRecord{}, apperrors.Wrap(apperrors.CodeDependency, err, "reject store submission")
	}
	if err := updated.Decode(&record); err != nil {
		return models.StoreRecord{}, err
	}

	s.logg.Info(s.logg.WithStoreID(ctx, record.ID), "store submission rejected")
	s.metrics.IncOutcome(EventKindStoreSubmission, "rejected")
	s.publish(ctx, ModerationEvent{
		Kind:         EventKindStoreSubmission,
		SubmissionID: submissionID,
		StoreID:      record.ID,
		StoreName:    record.Name,
		Outcome:      enums.VerificationStatusRejected.String(),
		Reason:       reason,
		SubmittedBy:  record.SubmittedBy,
		ReviewedBy:   admin.UserID,
	})
	return record, nil
}
