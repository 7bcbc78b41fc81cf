// Package admins implements the moderation access gate. Privileged
// operations call Authorize on every invocation; the cached flag only
// feeds UI affordances and is never consulted for gating.
package admins

import (
	"context"
	"time"

	"github.com/pinielabera/thriftndrift-backend/pkg/config"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
)

// FlagCache caches the display-only admin flag.
type FlagCache interface {
	CacheAdminFlag(ctx context.Context, userID string, isAdmin bool, ttl time.Duration) error
	CachedAdminFlag(ctx context.Context, userID string) (bool, bool, error)
}

// ServiceParams groups dependencies for the admins service.
type ServiceParams struct {
	Docs   docstore.Store
	Cache  FlagCache
	Config config.AdminConfig
	Logger *logger.Logger
}

// Service exposes moderation access checks and role management.
type Service interface {
	Authorize(ctx context.Context, userID string) (models.Admin, error)
	DisplayFlag(ctx context.Context, userID string) (bool, error)
	Grant(ctx context.Context, actorID, userID, email string, role enums.AdminRole) (models.Admin, error)
	Revoke(ctx context.Context, actorID, userID string) error
	List(ctx context.Context) ([]models.Admin, error)
}

type service struct {
	docs  docstore.Store
	cache FlagCache
	cfg   config.AdminConfig
	logg  *logger.Logger
}

// NewService builds an admins service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Docs == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "document store is required")
	}
	if params.Logger == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "logger is required")
	}
	return &service{
		docs:  params.Docs,
		cache: params.Cache,
		cfg:   params.Config,
		logg:  params.Logger,
	}, nil
}

// Authorize re-checks the admins collection and returns the caller's
// record. Revocations take effect on the next privileged call.
func (s *service) Authorize(ctx context.Context, userID string) (models.Admin, error) {
	if userID == "" {
		return models.Admin{}, apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}
	snap, err := s.docs.Get(ctx, models.CollectionAdmins, userID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return models.Admin{}, apperrors.New(apperrors.CodeForbidden, "moderator access required")
		}
		return models.Admin{}, apperrors.Wrap(apperrors.CodeDependency, err, "load admin record")
	}
	var admin models.Admin
	if err := snap.Decode(&admin); err != nil {
		return models.Admin{}, err
	}
	if !admin.Role.IsValid() {
		return models.Admin{}, apperrors.New(apperrors.CodeForbidden, "moderator access required")
	}
	return admin, nil
}

// DisplayFlag reports whether the user should see moderation UI. The
// answer may be cached and slightly stale.
func (s *service) DisplayFlag(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if s.cache != nil {
		if flag, ok, err := s.cache.CachedAdminFlag(ctx, userID); err == nil && ok {
			return flag, nil
		}
	}

	_, err := s.Authorize(ctx, userID)
	isAdmin := err == nil
	if err != nil && !apperrors.Is(err, apperrors.CodeForbidden) {
		return false, err
	}

	if s.cache != nil {
		if cacheErr := s.cache.CacheAdminFlag(ctx, userID, isAdmin, s.cfg.DisplayFlagTTL); cacheErr != nil {
			s.logg.Warn(s.logg.WithUserID(ctx, userID), "caching admin display flag failed")
		}
	}
	return isAdmin, nil
}

// Grant adds or updates an admin record. Only super admins may grant.
func (s *service) Grant(ctx context.Context, actorID, userID, email string, role enums.AdminRole) (models.Admin, error) {
	actor, err := s.requireSuperAdmin(ctx, actorID)
	if err != nil {
		return models.Admin{}, err
	}
	if userID == "" {
		return models.Admin{}, apperrors.New(apperrors.CodeValidation, "user id is required")
	}
	if !role.IsValid() {
		return models.Admin{}, apperrors.New(apperrors.CodeValidation, "invalid admin role")
	}

	admin := models.Admin{
		UserID:    userID,
		Email:     email,
		Role:      role,
		GrantedAt: time.Now().UTC(),
		GrantedBy: actor.UserID,
	}
	if _, err := s.docs.Set(ctx, models.CollectionAdmins, userID, admin); err != nil {
		return models.Admin{}, apperrors.Wrap(apperrors.CodeDependency, err, "persist admin record")
	}
	s.refreshFlag(ctx, userID, true)

	s.logg.Info(s.logg.WithUserID(ctx, userID), "admin role granted: "+role.String())
	return admin, nil
}

// Revoke removes an admin record. Only super admins may revoke, and a
// super admin cannot revoke themselves.
func (s *service) Revoke(ctx context.Context, actorID, userID string) error {
	if _, err := s.requireSuperAdmin(ctx, actorID); err != nil {
		return err
	}
	if userID == "" {
		return apperrors.New(apperrors.CodeValidation, "user id is required")
	}
	if userID == actorID {
		return apperrors.New(apperrors.CodeValidation, "cannot revoke your own access")
	}
	if err := s.docs.Delete(ctx, models.CollectionAdmins, userID); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "delete admin record")
	}
	s.refreshFlag(ctx, userID, false)

	s.logg.Info(s.logg.WithUserID(ctx, userID), "admin role revoked")
	return nil
}

// List returns every admin record, ordered by grant time.
func (s *service) List(ctx context.Context) ([]models.Admin, error) {
	snaps, err := s.docs.Query(ctx, models.CollectionAdmins, docstore.Query{OrderBy: "grantedAt"})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "list admin records")
	}
	out := make([]models.Admin, 0, len(snaps))
	for _, snap := range snaps {
		var admin models.Admin
		if err := snap.Decode(&admin); err != nil {
			return nil, err
		}
		out = append(out, admin)
	}
	return out, nil
}

func (s *service) requireSuperAdmin(ctx context.Context, actorID string) (models.Admin, error) {
	actor, err := s.Authorize(ctx, actorID)
	if err != nil {
		return models.Admin{}, err
	}
	if actor.Role != enums.AdminRoleSuperAdmin {
		return models.Admin{}, apperrors.New(apperrors.CodeForbidden, "super admin access required")
	}
	return actor, nil
}

func (s *service) refreshFlag(ctx context.Context, userID string, isAdmin bool) {
	if s.cache == nil {
		return
	}
	if err := s.cache.CacheAdminFlag(ctx, userID, isAdmin, s.cfg.DisplayFlagTTL); err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, userID), "refreshing admin display flag failed")
	}
}
