package submissions

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pinielabera/thriftndrift-backend/pkg/auth"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
	"go.uber.org/multierr"
)

// SubmitPhotos deduplicates the candidate images against every blob
// already stored for the store, uploads the survivors and records a
// pending submission. Duplicate detection hashes raw bytes; a batch
// whose every image already exists fails with ALL_DUPLICATES and writes
// nothing.
func (s *service) SubmitPhotos(ctx context.Context, identity auth.Identity, storeID string, photos []PhotoUpload) (SubmitPhotosResult, error) {
	if identity.ID == "" {
		return SubmitPhotosResult{}, apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}
	if storeID == "" {
		return SubmitPhotosResult{}, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	if len(photos) == 0 {
		return SubmitPhotosResult{}, apperrors.New(apperrors.CodeValidation, "at least one photo is required")
	}
	if max := s.cfg.MaxPhotosPerSubmission; max > 0 && len(photos) > max {
		return SubmitPhotosResult{}, apperrors.New(apperrors.CodeValidation, "too many photos in one submission")
	}
	maxBytes := int64(s.cfg.MaxUploadMB) * 1024 * 1024
	for _, photo := range photos {
		if len(photo.Data) == 0 {
			return SubmitPhotosResult{}, apperrors.New(apperrors.CodeValidation, "empty image payload")
		}
		if maxBytes > 0 && int64(len(photo.Data)) > maxBytes {
			return SubmitPhotosResult{}, apperrors.New(apperrors.CodeValidation, "image exceeds the upload size limit")
		}
	}

	storeName, _, err := s.resolveStoreName(ctx, storeID)
	if err != nil {
		return SubmitPhotosResult{}, err
	}
	legacy, err := s.legacyHashes(ctx, storeID)
	if err != nil {
		return SubmitPhotosResult{}, err
	}

	ctx = s.logg.WithStoreID(s.logg.WithUserID(ctx, identity.ID), storeID)

	var (
		uploadedURLs []string
		skipped      int
		failures     []UploadFailure
		firstErr     error
		batchHashes  = make(map[string]bool)
	)
	for _, photo := range photos {
		hash := hashBytes(photo.Data)

		dup := batchHashes[hash]
		if !dup {
			var dupErr error
			dup, dupErr = s.isDuplicate(ctx, storeID, hash, legacy)
			if dupErr != nil {
				failures = append(failures, UploadFailure{Filename: photo.Filename, Reason: dupErr.Error()})
				if firstErr == nil {
					firstErr = dupErr
				}
				s.metrics.IncUpload("failure")
				continue
			}
		}
		if dup {
			skipped++
			s.metrics.IncDuplicate()
			continue
		}

		detected := mimetype.Detect(photo.Data)
		contentType := photo.ContentType
		if contentType == "" {
			contentType = detected.String()
		}
		blobPath := pendingDir(storeID) + uuid.NewString() + detected.Extension()

		object, putErr := s.blobs.Put(ctx, blobPath, contentType, map[string]string{metadataHashKey: hash}, bytes.NewReader(photo.Data))
		if putErr != nil {
			failures = append(failures, UploadFailure{Filename: photo.Filename, Reason: putErr.Error()})
			if firstErr == nil {
				firstErr = putErr
			}
			s.metrics.IncUpload("failure")
			continue
		}
		s.metrics.IncUpload("success")
		batchHashes[hash] = true
		uploadedURLs = append(uploadedURLs, s.blobs.URL(object.Path))
	}

	if len(uploadedURLs) == 0 {
		if skipped > 0 {
			return SubmitPhotosResult{SkippedDuplicates: skipped, Failures: failures},
				apperrors.New(apperrors.CodeAllDuplicates, "every photo already exists for this store")
		}
		return SubmitPhotosResult{Failures: failures},
			apperrors.Wrap(apperrors.CodeUploadFailed, firstErr, "no photo could be uploaded")
	}

	submission := models.PhotoSubmission{
		ID:            uuid.NewString(),
		StoreID:       storeID,
		StoreName:     storeName,
		ImageURLs:     uploadedURLs,
		Status:        enums.SubmissionStatusPending,
		SubmittedBy:   identity.ID,
		SubmitterName: identity.DisplayName,
		SubmittedAt:   s.now().UTC(),
	}
	if _, err := s.docs.Set(ctx, models.CollectionPhotoSubmissions, submission.ID, submission); err != nil {
		return SubmitPhotosResult{}, apperrors.Wrap(apperrors.CodeDependency, err, "persist photo submission")
	}

	s.logg.Info(s.logg.WithSubmissionID(ctx, submission.ID), "photo submission created")
	s.metrics.IncOutcome(EventKindPhotoSubmission, "submitted")
	result := SubmitPhotosResult{
		Submission:        submission,
		UploadedURLs:      uploadedURLs,
		SkippedDuplicates: skipped,
		Failures:          failures,
	}
	if len(failures) > 0 {
		// The submission exists; the caller gets it back together
		// with the per-file failures.
		return result, apperrors.Wrap(apperrors.CodePartialFailure, firstErr, "some photos failed to upload")
	}
	return result, nil
}

// ApprovePhotos runs the second dedup pass, moves the surviving blobs
// into the store's canonical photo path, appends their URLs to the
// store document and transitions the submission. The transition is
// guarded by the revision read at the start, so a concurrent approval
// of the same submission fails with STATE_CONFLICT.
func (s *service) ApprovePhotos(ctx context.Context, moderatorID, submissionID string) (models.PhotoSubmission, error) {
	admin, err := s.admins.Authorize(ctx, moderatorID)
	if err != nil {
		return models.PhotoSubmission{}, err
	}

	snap, submission, err := s.loadPhotoSubmission(ctx, submissionID)
	if err != nil {
		return models.PhotoSubmission{}, err
	}
	if submission.Status.IsTerminal() {
		return models.PhotoSubmission{}, apperrors.New(apperrors.CodeStateConflict,
			"submission already "+submission.Status.String())
	}

	ctx = s.logg.WithSubmissionID(s.logg.WithStoreID(ctx, submission.StoreID), submissionID)

	hashes, err := s.storeHashes(ctx, submission.StoreID)
	if err != nil {
		return models.PhotoSubmission{}, err
	}

	var finalURLs []string
	var dropped int
	for _, url := range submission.ImageURLs {
		blobPath, ours := s.pathFromURL(url)
		if !ours {
			finalURLs = append(finalURLs, url)
			continue
		}
		hash, ok := hashes[blobPath]
		if !ok {
			// Blob disappeared between submission and review.
			dropped++
			continue
		}
		if duplicateOf(hashes, blobPath, hash) {
			dropped++
			s.metrics.IncDuplicate()
			if err := s.blobs.Delete(ctx, blobPath); err != nil {
				s.logg.Warn(ctx, "deleting duplicate blob "+blobPath+" failed")
			}
			continue
		}
		finalURLs = append(finalURLs, s.promotePhoto(ctx, submission.StoreID, blobPath))
	}

	if len(finalURLs) == 0 {
		reason := "every photo duplicated an existing image"
		if _, err := s.transitionPhotoSubmission(ctx, snap, enums.SubmissionStatusRejected, admin.UserID, reason, nil); err != nil {
			return models.PhotoSubmission{}, err
		}
		s.metrics.IncOutcome(EventKindPhotoSubmission, "auto_rejected")
		s.publish(ctx, ModerationEvent{
			Kind:         EventKindPhotoSubmission,
			SubmissionID: submissionID,
			StoreID:      submission.StoreID,
			StoreName:    submission.StoreName,
			Outcome:      enums.SubmissionStatusRejected.String(),
			Reason:       reason,
			SubmittedBy:  submission.SubmittedBy,
			ReviewedBy:   admin.UserID,
		})
		return models.PhotoSubmission{}, apperrors.New(apperrors.CodeAllDuplicates, reason)
	}

	s.appendStoreImages(ctx, submission.StoreID, finalURLs)

	updated, err := s.transitionPhotoSubmission(ctx, snap, enums.SubmissionStatusApproved, admin.UserID, "", finalURLs)
	if err != nil {
		return models.PhotoSubmission{}, err
	}

	s.logg.Info(ctx, "photo submission approved")
	s.metrics.IncOutcome(EventKindPhotoSubmission, "approved")
	s.publish(ctx, ModerationEvent{
		Kind:         EventKindPhotoSubmission,
		SubmissionID: submissionID,
		StoreID:      submission.StoreID,
		StoreName:    submission.StoreName,
		Outcome:      enums.SubmissionStatusApproved.String(),
		SubmittedBy:  submission.SubmittedBy,
		ReviewedBy:   admin.UserID,
	})
	return updated, nil
}

// RejectPhotos deletes the submission's blobs best-effort and
// transitions it to rejected, guarded by the revision read at the
// start.
func (s *service) RejectPhotos(ctx context.Context, moderatorID, submissionID, reason string) (models.PhotoSubmission, error) {
	admin, err := s.admins.Authorize(ctx, moderatorID)
	if err != nil {
		return models.PhotoSubmission{}, err
	}

	snap, submission, err := s.loadPhotoSubmission(ctx, submissionID)
	if err != nil {
		return models.PhotoSubmission{}, err
	}
	if submission.Status.IsTerminal() {
		return models.PhotoSubmission{}, apperrors.New(apperrors.CodeStateConflict,
			"submission already "+submission.Status.String())
	}

	ctx = s.logg.WithSubmissionID(s.logg.WithStoreID(ctx, submission.StoreID), submissionID)

	var deleteErrs error
	for _, url := range submission.ImageURLs {
		blobPath, ours := s.pathFromURL(url)
		if !ours {
			continue
		}
		if err := s.blobs.Delete(ctx, blobPath); err != nil {
			deleteErrs = multierr.Append(deleteErrs, err)
		}
	}
	if deleteErrs != nil {
		s.logg.Warn(ctx, "deleting rejected blobs: "+deleteErrs.Error())
	}

	updated, err := s.transitionPhotoSubmission(ctx, snap, enums.SubmissionStatusRejected, admin.UserID, reason, nil)
	if err != nil {
		return models.PhotoSubmission{}, err
	}

	s.logg.Info(ctx, "photo submission rejected")
	s.metrics.IncOutcome(EventKindPhotoSubmission, "rejected")
	s.publish(ctx, ModerationEvent{
		Kind:         EventKindPhotoSubmission,
		SubmissionID: submissionID,
		StoreID:      submission.StoreID,
		StoreName:    submission.StoreName,
		Outcome:      enums.SubmissionStatusRejected.String(),
		Reason:       reason,
		SubmittedBy:  submission.SubmittedBy,
		ReviewedBy:   admin.UserID,
	})
	return updated, nil
}

func (s *service) loadPhotoSubmission(ctx context.Context, submissionID string) (docstore.Snapshot, models.PhotoSubmission, error) {
	snap, err := s.docs.Get(ctx, models.CollectionPhotoSubmissions, submissionID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return docstore.Snapshot{}, models.PhotoSubmission{}, err
		}
		return docstore.Snapshot{}, models.PhotoSubmission{}, apperrors.Wrap(apperrors.CodeDependency, err, "load photo submission")
	}
	var submission models.PhotoSubmission
	if err := snap.Decode(&submission); err != nil {
		return docstore.Snapshot{}, models.PhotoSubmission{}, err
	}
	return snap, submission, nil
}

// transitionPhotoSubmission applies the terminal transition with a
// compare-and-update against the snapshot the moderator loaded.
func (s *service) transitionPhotoSubmission(ctx context.Context, snap docstore.Snapshot, status enums.SubmissionStatus, reviewerID, reason string, imageURLs []string) (models.PhotoSubmission, error) {
	fields := map[string]any{
		"status":     status.String(),
		"reviewedAt": s.now().UTC(),
		"reviewedBy": reviewerID,
	}
	if reason != "" {
		fields["rejectionReason"] = reason
	}
	if imageURLs != nil {
		fields["imageUrls"] = imageURLs
	}

	updated, err := s.docs.CompareAndUpdate(ctx, models.CollectionPhotoSubmissions, snap.ID, snap.Revision, fields)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeStateConflict) {
			return models.PhotoSubmission{}, err
		}
		return models.PhotoSubmission{}, apperrors.Wrap(apperrors.CodeDependency, err, "transition photo submission")
	}
	var submission models.PhotoSubmission
	if err := updated.Decode(&submission); err != nil {
		return models.PhotoSubmission{}, err
	}
	return submission, nil
}

// promotePhoto moves a pending blob into the canonical photo path and
// returns the URL to reference. A failed move keeps the original
// location rather than losing the photo.
func (s *service) promotePhoto(ctx context.Context, storeID, blobPath string) string {
	canonicalDir := photoDir(storeID)
	if strings.HasPrefix(blobPath, canonicalDir) {
		return s.blobs.URL(blobPath)
	}

	object, body, err := s.blobs.Get(ctx, blobPath)
	if err != nil {
		s.logg.Warn(ctx, "reading blob "+blobPath+" for promotion failed")
		return s.blobs.URL(blobPath)
	}
	defer body.Close()

	target := canonicalDir + path.Base(blobPath)
	promoted, err := s.blobs.Put(ctx, target, object.ContentType, object.Metadata, body)
	if err != nil {
		s.logg.Warn(ctx, "promoting blob "+blobPath+" failed")
		return s.blobs.URL(blobPath)
	}
	if err := s.blobs.Delete(ctx, blobPath); err != nil {
		s.logg.Warn(ctx, "deleting promoted blob "+blobPath+" failed")
	}
	return s.blobs.URL(promoted.Path)
}

// appendStoreImages adds the approved URLs to the store document's
// image list. Stores without a document (static partition) keep their
// images only in the submission record.
func (s *service) appendStoreImages(ctx context.Context, storeID string, urls []string) {
	for _, collection := range []string{models.CollectionStores, models.CollectionStoreSubmissions} {
		snap, err := s.docs.Get(ctx, collection, storeID)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				continue
			}
			s.logg.Warn(ctx, "loading store document for image append failed")
			return
		}
		var record models.StoreRecord
		if err := snap.Decode(&record); err != nil {
			s.logg.Warn(ctx, "decoding store document for image append failed")
			return
		}
		combined := append(append([]string{}, record.ImageURLs...), urls...)
		if _, err := s.docs.Update(ctx, collection, storeID, map[string]any{"imageUrls": combined}); err != nil {
			s.logg.Warn(ctx, "appending approved image urls failed")
		}
		return
	}
	s.logg.Warn(ctx, "store has no document; approved images stay on the submission only")
}

// duplicateOf reports whether any other blob carries the same hash.
func duplicateOf(hashes map[string]string, selfPath, hash string) bool {
	for otherPath, otherHash := range hashes {
		if otherPath != selfPath && otherHash == hash {
			return true
		}
	}
	return false
}
