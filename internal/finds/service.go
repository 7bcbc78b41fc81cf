// Package finds implements the social finds feed: user posts with
// photos, likes and comments.
package finds

import (
	"bytes"
	"context"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pinielabera/thriftndrift-backend/pkg/auth"
	"github.com/pinielabera/thriftndrift-backend/pkg/blobstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// NewFind carries the user-supplied fields for a post.
type NewFind struct {
	StoreID     string
	StoreName   string
	Description string
	Price       *decimal.Decimal
	Category    string
	Location    string
	Images      [][]byte
}

// ServiceParams groups dependencies for the finds service.
type ServiceParams struct {
	Docs   docstore.Store
	Blobs  blobstore.Store
	Logger *logger.Logger
}

// Service exposes the finds feed.
type Service interface {
	Create(ctx context.Context, identity auth.Identity, find NewFind) (models.Find, error)
	ToggleLike(ctx context.Context, identity auth.Identity, findID string) (models.Find, error)
	AddComment(ctx context.Context, identity auth.Identity, findID, text string) (models.Find, error)
	Delete(ctx context.Context, identity auth.Identity, findID string) error
	ListAll(ctx context.Context) ([]models.Find, error)
	ListByUser(ctx context.Context, userID string) ([]models.Find, error)
}

type service struct {
	docs  docstore.Store
	blobs blobstore.Store
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds a finds service.
func NewService(params ServiceParams) (Service, error) {
	if params.Docs == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "document store is required")
	}
	if params.Blobs == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "blob store is required")
	}
	if params.Logger == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "logger is required")
	}
	return &service{docs: params.Docs, blobs: params.Blobs, logg: params.Logger, now: time.Now}, nil
}

// Create uploads the images under the find's blob prefix and writes
// the document.
func (s *service) Create(ctx context.Context, identity auth.Identity, find NewFind) (models.Find, error) {
	if identity.ID == "" {
		return models.Find{}, apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}
	if find.Description == "" {
		return models.Find{}, apperrors.New(apperrors.CodeValidation, "description is required")
	}
	if find.Price != nil && find.Price.IsNegative() {
		return models.Find{}, apperrors.New(apperrors.CodeValidation, "price cannot be negative")
	}

	id := uuid.NewString()
	var imageURLs []string
	for _, data := range find.Images {
		if len(data) == 0 {
			continue
		}
		detected := mimetype.Detect(data)
		path := "finds/" + id + "/" + uuid.NewString() + detected.Extension()
		object, err := s.blobs.Put(ctx, path, detected.String(), nil, bytes.NewReader(data))
		if err != nil {
			return models.Find{}, apperrors.Wrap(apperrors.CodeUploadFailed, err, "upload find image")
		}
		imageURLs = append(imageURLs, s.blobs.URL(object.Path))
	}

	doc := models.Find{
		ID:          id,
		UserID:      identity.ID,
		UserName:    identity.DisplayName,
		StoreID:     find.StoreID,
		StoreName:   find.StoreName,
		Description: find.Description,
		Price:       find.Price,
		Category:    find.Category,
		ImageURLs:   imageURLs,
		Location:    find.Location,
		CreatedAt:   s.now().UTC(),
	}
	if _, err := s.docs.Set(ctx, models.CollectionFinds, id, doc); err != nil {
		return models.Find{}, apperrors.Wrap(apperrors.CodeDependency, err, "persist find")
	}

	s.logg.Info(s.logg.WithUserID(ctx, identity.ID), "find created")
	return doc, nil
}

// ToggleLike flips the caller's like. The write is guarded by the
// revision read, so two racing toggles never lose a count.
func (s *service) ToggleLike(ctx context.Context, identity auth.Identity, findID string) (models.Find, error) {
	if identity.ID == "" {
		return models.Find{}, apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}

	snap, find, err := s.load(ctx, findID)
	if err != nil {
		return models.Find{}, err
	}

	var likedBy []string
	if find.LikedByUser(identity.ID) {
		for _, id := range find.LikedBy {
			if id != identity.ID {
				likedBy = append(likedBy, id)
			}
		}
	} else {
		likedBy = append(append([]string{}, find.LikedBy...), identity.ID)
	}

	updated, err := s.docs.CompareAndUpdate(ctx, models.CollectionFinds, findID, snap.Revision, map[string]any{
		"likes":   len(likedBy),
		"likedBy": likedBy,
	})
	if err != nil {
		if apperrors.Is(err, apperrors.CodeStateConflict) {
			return models.Find{}, err
		}
		return models.Find{}, apperrors.Wrap(apperrors.CodeDependency, err, "toggle like")
	}
	if err := updated.Decode(&find); err != nil {
		return models.Find{}, err
	}
	return find, nil
}

// AddComment appends a comment to the find.
func (s *service) AddComment(ctx context.Context, identity auth.Identity, findID, text string) (models.Find, error) {
	if identity.ID == "" {
		return models.Find{}, apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}
	if text == "" {
		return models.Find{}, apperrors.New(apperrors.CodeValidation, "comment text is required")
	}

	snap, find, err := s.load(ctx, findID)
	if err != nil {
		return models.Find{}, err
	}

	comment := models.FindComment{
		ID:        uuid.NewString(),
		UserID:    identity.ID,
		UserName:  identity.DisplayName,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	comments := append(append([]models.FindComment{}, find.Comments...), comment)

	updated, err := s.docs.CompareAndUpdate(ctx, models.CollectionFinds, findID, snap.Revision, map[string]any{
		"comments": comments,
	})
	if err != nil {
		if apperrors.Is(err, apperrors.CodeStateConflict) {
			return models.Find{}, err
		}
		return models.Find{}, apperrors.Wrap(apperrors.CodeDependency, err, "add comment")
	}
	if err := updated.Decode(&find); err != nil {
		return models.Find{}, err
	}
	return find, nil
}

// Delete removes the find and its blobs. Owner only; blob deletes are
// best-effort.
func (s *service) Delete(ctx context.Context, identity auth.Identity, findID string) error {
	if identity.ID == "" {
		return apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}

	_, find, err := s.load(ctx, findID)
	if err != nil {
		return err
	}
	if find.UserID != identity.ID {
		return apperrors.New(apperrors.CodeForbidden, "only the author can delete a find")
	}

	if err := s.docs.Delete(ctx, models.CollectionFinds, findID); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "delete find")
	}

	objects, err := s.blobs.List(ctx, "finds/"+findID+"/")
	if err != nil {
		s.logg.Warn(ctx, "listing find blobs for cleanup failed")
		return nil
	}
	var deleteErrs error
	for _, object := range objects {
		if err := s.blobs.Delete(ctx, object.Path); err != nil {
			deleteErrs = multierr.Append(deleteErrs, err)
		}
	}
	if deleteErrs != nil {
		s.logg.Warn(ctx, "deleting find blobs: "+deleteErrs.Error())
	}
	return nil
}

// ListAll returns every find, newest first.
func (s *service) ListAll(ctx context.Context) ([]models.Find, error) {
	return s.list(ctx, docstore.Query{OrderBy: "createdAt", Desc: true})
}

// ListByUser returns one user's finds, newest first.
func (s *service) ListByUser(ctx context.Context, userID string) ([]models.Find, error) {
	return s.list(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "userId", Op: docstore.OpEqual, Value: userID}},
		OrderBy: "createdAt",
		Desc:    true,
	})
}

func (s *service) list(ctx context.Context, q docstore.Query) ([]models.Find, error) {
	snaps, err := s.docs.Query(ctx, models.CollectionFinds, q)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "list finds")
	}
	out := make([]models.Find, 0, len(snaps))
	for _, snap := range snaps {
		var find models.Find
		if err := snap.Decode(&find); err != nil {
			return nil, err
		}
		out = append(out, find)
	}
	return out, nil
}

func (s *service) load(ctx context.Context, findID string) (docstore.Snapshot, models.Find, error) {
	snap, err := s.docs.Get(ctx, models.CollectionFinds, findID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return docstore.Snapshot{}, models.Find{}, err
		}
		return docstore.Snapshot{}, models.Find{}, apperrors.Wrap(apperrors.CodeDependency, err, "load find")
	}
	var find models.Find
	if err := snap.Decode(&find); err != nil {
		return docstore.Snapshot{}, models.Find{}, err
	}
	return snap, find, nil
}
