package admins

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pinielabera/thriftndrift-backend/pkg/config"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
)

type memoryFlagCache struct {
	flags map[string]bool
}

func (c *memoryFlagCache) CacheAdminFlag(ctx context.Context, userID string, isAdmin bool, ttl time.Duration) error {
	if c.flags == nil {
		c.flags = make(map[string]bool)
	}
	c.flags[userID] = isAdmin
	return nil
}

func (c *memoryFlagCache) CachedAdminFlag(ctx context.Context, userID string) (bool, bool, error) {
	flag, ok := c.flags[userID]
	return flag, ok, nil
}

func newTestService(t *testing.T) (Service, *docstore.MemoryStore, *memoryFlagCache) {
	t.Helper()
	docs := docstore.NewMemoryStore()
	cache := &memoryFlagCache{flags: make(map[string]bool)}
	svc, err := NewService(ServiceParams{
		Docs:   docs,
		Cache:  cache,
		Config: config.AdminConfig{DisplayFlagTTL: time.Minute},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, docs, cache
}

func seedAdmin(t *testing.T, docs *docstore.MemoryStore, userID string, role enums.AdminRole) {
	t.Helper()
	admin := models.Admin{UserID: userID, Role: role, GrantedAt: time.Now().UTC()}
	if _, err := docs.Set(context.Background(), models.CollectionAdmins, userID, admin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	svc, docs, _ := newTestService(t)
	ctx := context.Background()
	seedAdmin(t, docs, "mod-1", enums.AdminRoleAdmin)

	admin, err := svc.Authorize(ctx, "mod-1")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if admin.Role != enums.AdminRoleAdmin {
		t.Fatalf("role = %s, want admin", admin.Role)
	}

	if _, err := svc.Authorize(ctx, "nobody"); !apperrors.Is(err, apperrors.CodeForbidden) {
		t.Fatalf("unknown user error = %v, want FORBIDDEN", err)
	}
	if _, err := svc.Authorize(ctx, ""); !apperrors.Is(err, apperrors.CodeUnauthorized) {
		t.Fatalf("anonymous error = %v, want UNAUTHORIZED", err)
	}
}

func TestAuthorizeSeesRevocationImmediately(t *testing.T) {
	t.Parallel()

	svc, docs, cache := newTestService(t)
	ctx := context.Background()
	seedAdmin(t, docs, "mod-1", enums.AdminRoleAdmin)

	if _, err := svc.Authorize(ctx, "mod-1"); err != nil {
		t.Fatalf("Authorize before revoke: %v", err)
	}

	// A warm display cache must not keep the gate open.
	cache.flags["mod-1"] = true
	if err := docs.Delete(ctx, models.CollectionAdmins, "mod-1"); err != nil {
		t.Fatalf("delete admin: %v", err)
	}

	if _, err := svc.Authorize(ctx, "mod-1"); !apperrors.Is(err, apperrors.CodeForbidden) {
		t.Fatalf("post-revoke error = %v, want FORBIDDEN", err)
	}
}

func TestDisplayFlagUsesCache(t *testing.T) {
	t.Parallel()

	svc, docs, cache := newTestService(t)
	ctx := context.Background()
	seedAdmin(t, docs, "mod-1", enums.AdminRoleAdmin)

	flag, err := svc.DisplayFlag(ctx, "mod-1")
	if err != nil {
		t.Fatalf("DisplayFlag: %v", err)
	}
	if !flag {
		t.Fatal("expected admin flag true")
	}
	if got, ok := cache.flags["mod-1"]; !ok || !got {
		t.Fatal("expected flag cached after miss")
	}

	// Stale cache entries are served as-is.
	if err := docs.Delete(ctx, models.CollectionAdmins, "mod-1"); err != nil {
		t.Fatalf("delete admin: %v", err)
	}
	flag, err = svc.DisplayFlag(ctx, "mod-1")
	if err != nil {
		t.Fatalf("DisplayFlag after revoke: %v", err)
	}
	if !flag {
		t.Fatal("expected cached flag to remain true")
	}
}

func TestGrantRequiresSuperAdmin(t *testing.T) {
	t.Parallel()

	svc, docs, _ := newTestService(t)
	ctx := context.Background()
	seedAdmin(t, docs, "super-1", enums.AdminRoleSuperAdmin)
	seedAdmin(t, docs, "mod-1", enums.AdminRoleAdmin)

	if _, err := svc.Grant(ctx, "mod-1", "user-2", "u2@example.com", enums.AdminRoleAdmin); !apperrors.Is(err, apperrors.CodeForbidden) {
		t.Fatalf("grant by plain admin error = %v, want FORBIDDEN", err)
	}

	admin, err := svc.Grant(ctx, "super-1", "user-2", "u2@example.com", enums.AdminRoleAdmin)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if admin.GrantedBy != "super-1" {
		t.Fatalf("grantedBy = %s, want super-1", admin.GrantedBy)
	}
	if _, err := svc.Authorize(ctx, "user-2"); err != nil {
		t.Fatalf("granted user not authorized: %v", err)
	}
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	svc, docs, _ := newTestService(t)
	ctx := context.Background()
	seedAdmin(t, docs, "super-1", enums.AdminRoleSuperAdmin)
	seedAdmin(t, docs, "mod-1", enums.AdminRoleAdmin)

	if err := svc.Revoke(ctx, "super-1", "super-1"); !apperrors.Is(err, apperrors.CodeValidation) {
		t.Fatalf("self revoke error = %v, want VALIDATION", err)
	}
	if err := svc.Revoke(ctx, "super-1", "mod-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Authorize(ctx, "mod-1"); !apperrors.Is(err, apperrors.CodeForbidden) {
		t.Fatalf("revoked user error = %v, want FORBIDDEN", err)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	svc, docs, _ := newTestService(t)
	seedAdmin(t, docs, "a", enums.AdminRoleAdmin)
	seedAdmin(t, docs, "b", enums.AdminRoleSuperAdmin)

	admins, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(admins) != 2 {
		t.Fatalf("len = %d, want 2", len(admins))
	}
}
