package favorites

import (
	"context"
	"io"
	"testing"

	"github.com/pinielabera/thriftndrift-backend/pkg/auth"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
)

var user = auth.Identity{ID: "user-1"}

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Docs:   docstore.NewMemoryStore(),
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.Add(ctx, user, "s1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := svc.Add(ctx, user, "s2"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := svc.Add(ctx, user, "s1"); err != nil {
		t.Fatalf("re-Add: %v", err)
	}

	ids, err := svc.List(ctx, user)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 || ids[0] != "s1" || ids[1] != "s2" {
		t.Fatalf("list = %v, want [s1 s2]", ids)
	}

	if err := svc.Remove(ctx, user, "s1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	favored, err := svc.IsFavorite(ctx, user, "s1")
	if err != nil {
		t.Fatalf("IsFavorite: %v", err)
	}
	if favored {
		t.Fatal("s1 still favorite after removal")
	}
}

func TestToggle(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	on, err := svc.Toggle(ctx, user, "s1")
	if err != nil || !on {
		t.Fatalf("first toggle = (%v, %v), want (true, nil)", on, err)
	}
	off, err := svc.Toggle(ctx, user, "s1")
	if err != nil || off {
		t.Fatalf("second toggle = (%v, %v), want (false, nil)", off, err)
	}
}

func TestScopedPerUser(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	other := auth.Identity{ID: "user-2"}

	if err := svc.Add(ctx, user, "s1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ids, err := svc.List(ctx, other)
	if err != nil {
		t.Fatalf("List other: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("other user's list = %v, want empty", ids)
	}
}

func TestRequiresIdentity(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	if _, err := svc.List(context.Background(), auth.Identity{}); !apperrors.Is(err, apperrors.CodeUnauthorized) {
		t.Fatalf("error = %v, want UNAUTHORIZED", err)
	}
}
