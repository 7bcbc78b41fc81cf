package notifications

import (
	"context"
	"io"
	"testing"

	"github.com/pinielabera/thriftndrift-backend/internal/submissions"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
)

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

func TestModerationEventBecomesNotification(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	err := svc.HandleModerationEvent(ctx, submissions.ModerationEvent{
		Kind:         submissions.EventKindPhotoSubmission,
		SubmissionID: "sub-1",
		StoreID:      "s1",
		StoreName:    "Father & Son Antiques",
		Outcome:      "approved",
		SubmittedBy:  "user-1",
		ReviewedBy:   "mod-1",
	})
	if err != nil {
		t.Fatalf("HandleModerationEvent: %v", err)
	}

	list, err := svc.ListForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	if list[0].Subject != "Your photos for Father & Son Antiques were approved" {
		t.Fatalf("subject = %q", list[0].Subject)
	}
	if list[0].Read {
		t.Fatal("new notification should be unread")
	}
}

func TestHandleMessageDropsMalformedPayloads(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	if err := svc.HandleMessage(context.Background(), []byte("{not json")); err != nil {
		t.Fatalf("malformed payload should be dropped, got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	err := svc.HandleModerationEvent(ctx, submissions.ModerationEvent{
		Kind:        submissions.EventKindStoreSubmission,
		StoreID:     "s1",
		Outcome:     "rejected",
		Reason:      "duplicate listing",
		SubmittedBy: "user-1",
	})
	if err != nil {
		t.Fatalf("HandleModerationEvent: %v", err)
	}
	list, err := svc.ListForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}

	if err := svc.MarkRead(ctx, "user-2", list[0].ID); !apperrors.Is(err, apperrors.CodeForbidden) {
		t.Fatalf("foreign mark-read error = %v, want FORBIDDEN", err)
	}
	if err := svc.MarkRead(ctx, "user-1", list[0].ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	list, err = svc.ListForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if !list[0].Read {
		t.Fatal("notification should be read")
	}
}
