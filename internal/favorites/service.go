// Package favorites stores each user's favorite stores as a single
// document keyed by the user id.
package favorites

import (
	"context"
	"time"

	"github.com/pinielabera/thriftndrift-backend/pkg/auth"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
)

// ServiceParams groups dependencies for the favorites service.
type ServiceParams struct {
	Docs   docstore.Store
	Logger *logger.Logger
}

// Service manages per-user favorite store lists.
type Service interface {
	List(ctx context.Context, identity auth.Identity) ([]string, error)
	Add(ctx context.Context, identity auth.Identity, storeID string) error
	Remove(ctx context.Context, identity auth.Identity, storeID string) error
	Toggle(ctx context.Context, identity auth.Identity, storeID string) (bool, error)
	IsFavorite(ctx context.Context, identity auth.Identity, storeID string) (bool, error)
}

type service struct {
	docs docstore.Store
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds a favorites service.
func NewService(params ServiceParams) (Service, error) {
	if params.Docs == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "document store is required")
	}
	if params.Logger == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "logger is required")
	}
	return &service{docs: params.Docs, logg: params.Logger, now: time.Now}, nil
}

// List returns the user's favorite store ids in insertion order.
func (s *service) List(ctx context.Context, identity auth.Identity) ([]string, error) {
	doc, _, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	return doc.StoreIDs, nil
}

// Add appends the store id; adding an existing favorite is a no-op.
func (s *service) Add(ctx context.Context, identity auth.Identity, storeID string) error {
	if storeID == "" {
		return apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	doc, _, err := s.load(ctx, identity)
	if err != nil {
		return err
	}
	if contains(doc.StoreIDs, storeID) {
		return nil
	}
	doc.StoreIDs = append(doc.StoreIDs, storeID)
	return s.save(ctx, doc)
}

// Remove drops the store id; removing an absent favorite is a no-op.
func (s *service) Remove(ctx context.Context, identity auth.Identity, storeID string) error {
	if storeID == "" {
		return apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	doc, found, err := s.load(ctx, identity)
	if err != nil {
		return err
	}
	if !found || !contains(doc.StoreIDs, storeID) {
		return nil
	}
	kept := doc.StoreIDs[:0]
	for _, id := range doc.StoreIDs {
		if id != storeID {
			kept = append(kept, id)
		}
	}
	doc.StoreIDs = kept
	return s.save(ctx, doc)
}

// Toggle flips the favorite state and reports the new state.
func (s *service) Toggle(ctx context.Context, identity auth.Identity, storeID string) (bool, error) {
	favored, err := s.IsFavorite(ctx, identity, storeID)
	if err != nil {
		return false, err
	}
	if favored {
		return false, s.Remove(ctx, identity, storeID)
	}
	return true, s.Add(ctx, identity, storeID)
}

// IsFavorite reports whether the store is on the user's list.
func (s *service) IsFavorite(ctx context.Context, identity auth.Identity, storeID string) (bool, error) {
	if storeID == "" {
		return false, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	doc, _, err := s.load(ctx, identity)
	if err != nil {
		return false, err
	}
	return contains(doc.StoreIDs, storeID), nil
}

func (s *service) load(ctx context.Context, identity auth.Identity) (models.Favorites, bool, error) {
	if identity.ID == "" {
		return models.Favorites{}, false, apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}
	snap, err := s.docs.Get(ctx, models.CollectionFavorites, identity.ID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return models.Favorites{UserID: identity.ID}, false, nil
		}
		return models.Favorites{}, false, apperrors.Wrap(apperrors.CodeDependency, err, "load favorites")
	}
	var doc models.Favorites
	if err := snap.Decode(&doc); err != nil {
		return models.Favorites{}, false, err
	}
	return doc, true, nil
}

func (s *service) save(ctx context.Context, doc models.Favorites) error {
	doc.UpdatedAt = s.now().UTC()
	if _, err := s.docs.Set(ctx, models.CollectionFavorites, doc.UserID, doc); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "persist favorites")
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
