package finds

import (
	"context"
	"io"
	"testing"

	"github.com/pinielabera/thriftndrift-backend/pkg/auth"
	"github.com/pinielabera/thriftndrift-backend/pkg/blobstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

var (
	author = auth.Identity{ID: "user-1", DisplayName: "Backpack Pat"}
	viewer = auth.Identity{ID: "user-2", DisplayName: "Corduroy Sam"}
)

func newTestService(t *testing.T) (Service, *blobstore.MemoryStore) {
	t.Helper()
	blobs := blobstore.NewMemoryStore("")
	svc, err := NewService(ServiceParams{
		Docs:   docstore.NewMemoryStore(),
		Blobs:  blobs,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, blobs
}

func createFind(t *testing.T, svc Service) string {
	t.Helper()
	price := decimal.NewFromFloat(12.50)
	find, err := svc.Create(context.Background(), author, NewFind{
		Description: "Mid-century lamp, works",
		Price:       &price,
		Category:    "lighting",
		Images:      [][]byte{[]byte("\xff\xd8\xff\xe0lamp-photo")},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return find.ID
}

func TestCreateUploadsImages(t *testing.T) {
	t.Parallel()

	svc, blobs := newTestService(t)
	id := createFind(t, svc)

	objects, err := blobs.List(context.Background(), "finds/"+id+"/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects) != 1 {
		t.Fatalf("blobs = %d, want 1", len(objects))
	}

	finds, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(finds) != 1 || finds[0].Price == nil || !finds[0].Price.Equal(decimal.NewFromFloat(12.50)) {
		t.Fatalf("finds = %+v, want one with price 12.50", finds)
	}
}

func TestCreateRequiresIdentityAndDescription(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, auth.Identity{}, NewFind{Description: "x"}); !apperrors.Is(err, apperrors.CodeUnauthorized) {
		t.Fatalf("anonymous error = %v, want UNAUTHORIZED", err)
	}
	if _, err := svc.Create(ctx, author, NewFind{}); !apperrors.Is(err, apperrors.CodeValidation) {
		t.Fatalf("empty description error = %v, want VALIDATION", err)
	}
}

func TestToggleLike(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	id := createFind(t, svc)

	liked, err := svc.ToggleLike(ctx, viewer, id)
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if liked.Likes != 1 || !liked.LikedByUser(viewer.ID) {
		t.Fatalf("find = %+v, want one like by viewer", liked)
	}

	unliked, err := svc.ToggleLike(ctx, viewer, id)
	if err != nil {
		t.Fatalf("second ToggleLike: %v", err)
	}
	if unliked.Likes != 0 || unliked.LikedByUser(viewer.ID) {
		t.Fatalf("find = %+v, want like removed", unliked)
	}
}

func TestAddComment(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	id := createFind(t, svc)

	find, err := svc.AddComment(ctx, viewer, id, "great find!")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if len(find.Comments) != 1 || find.Comments[0].Text != "great find!" || find.Comments[0].UserName != "Corduroy Sam" {
		t.Fatalf("comments = %+v", find.Comments)
	}
}

func TestDeleteOwnerOnly(t *testing.T) {
	t.Parallel()

	svc, blobs := newTestService(t)
	ctx := context.Background()
	id := createFind(t, svc)

	if err := svc.Delete(ctx, viewer, id); !apperrors.Is(err, apperrors.CodeForbidden) {
		t.Fatalf("non-owner delete error = %v, want FORBIDDEN", err)
	}
	if err := svc.Delete(ctx, author, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	objects, err := blobs.List(ctx, "finds/"+id+"/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects) != 0 {
		t.Fatalf("blobs remain after delete: %+v", objects)
	}
	finds, err := svc.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(finds) != 0 {
		t.Fatalf("finds remain after delete: %+v", finds)
	}
}

func TestListByUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	createFind(t, svc)

	if _, err := svc.Create(ctx, viewer, NewFind{Description: "denim jacket"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mine, err := svc.ListByUser(ctx, author.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(mine) != 1 || mine[0].UserID != author.ID {
		t.Fatalf("finds = %+v, want only the author's", mine)
	}
}
