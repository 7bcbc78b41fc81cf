package docstore

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
)

type testDoc struct {
	Name   string         `json:"name"`
	State  string         `json:"state"`
	Count  int            `json:"count"`
	Nested map[string]any `json:"nested,omitempty"`
}

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	ctx := context.Background()

	docs := map[string]testDoc{
		"a": {Name: "Raleigh Vintage", State: "NC", Count: 3},
		"b": {Name: "Durham Finds", State: "NC", Count: 7},
		"c": {Name: "Richmond Relics", State: "VA", Count: 5},
	}
	for id, doc := range docs {
		if _, err := store.Set(ctx, "stores", id, doc); err != nil {
			t.Fatalf("Set(%s) error = %v", id, err)
		}
	}
	return store
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "stores", "missing")
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Fatalf("Get(missing) error = %v, want not found", err)
	}
}

func TestSetBumpsRevision(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Set(ctx, "stores", "a", testDoc{Name: "one"})
	if err != nil {
		t.Fatalf("Set error = %v", err)
	}
	if first.Revision != 1 {
		t.Errorf("first revision = %d, want 1", first.Revision)
	}

	second, err := store.Set(ctx, "stores", "a", testDoc{Name: "two"})
	if err != nil {
		t.Fatalf("Set error = %v", err)
	}
	if second.Revision != 2 {
		t.Errorf("second revision = %d, want 2", second.Revision)
	}
}

func TestQueryFilters(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	ctx := context.Background()

	snaps, err := store.Query(ctx, "stores", Query{
		Filters: []Filter{{Field: "state", Op: OpEqual, Value: "NC"}},
		OrderBy: "count",
		Desc:    true,
	})
	if err != nil {
		t.Fatalf("Query error = %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("Query returned %d docs, want 2", len(snaps))
	}
	if snaps[0].ID != "b" || snaps[1].ID != "a" {
		t.Errorf("Query order = [%s %s], want [b a]", snaps[0].ID, snaps[1].ID)
	}
}

func TestQueryInFilter(t *testing.T) {
	t.Parallel()

	store := seedStore(t)

	snaps, err := store.Query(context.Background(), "stores", Query{
		Filters: []Filter{{Field: "state", Op: OpIn, Value: []string{"VA", "SC"}}},
	})
	if err != nil {
		t.Fatalf("Query error = %v", err)
	}
	if len(snaps) != 1 || snaps[0].ID != "c" {
		t.Fatalf("Query = %+v, want only doc c", snaps)
	}
}

func TestQueryLimit(t *testing.T) {
	t.Parallel()

	store := seedStore(t)

	snaps, err := store.Query(context.Background(), "stores", Query{Limit: 2})
	if err != nil {
		t.Fatalf("Query error = %v", err)
	}
	if len(snaps) != 2 {
		t.Errorf("Query returned %d docs, want 2", len(snaps))
	}
}

func TestUpdateNestedField(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	ctx := context.Background()

	snap, err := store.Update(ctx, "stores", "a", map[string]any{
		"nested.flag": true,
		"count":       9,
	})
	if err != nil {
		t.Fatalf("Update error = %v", err)
	}

	var doc testDoc
	if err := snap.Decode(&doc); err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	if doc.Count != 9 {
		t.Errorf("count = %d, want 9", doc.Count)
	}
	if flag, _ := doc.Nested["flag"].(bool); !flag {
		t.Errorf("nested.flag = %v, want true", doc.Nested["flag"])
	}
	if doc.Name != "Raleigh Vintage" {
		t.Errorf("untouched field changed: name = %q", doc.Name)
	}
}

func TestCompareAndUpdate(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	ctx := context.Background()

	current, err := store.Get(ctx, "stores", "a")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}

	if _, err := store.CompareAndUpdate(ctx, "stores", "a", current.Revision, map[string]any{"count": 4}); err != nil {
		t.Fatalf("CompareAndUpdate error = %v", err)
	}

	// The original revision is now stale.
	_, err = store.CompareAndUpdate(ctx, "stores", "a", current.Revision, map[string]any{"count": 5})
	if !apperrors.Is(err, apperrors.CodeStateConflict) {
		t.Fatalf("stale CompareAndUpdate error = %v, want state conflict", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	ctx := context.Background()

	if err := store.Delete(ctx, "stores", "a"); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if err := store.Delete(ctx, "stores", "a"); err != nil {
		t.Fatalf("second Delete error = %v", err)
	}
	if _, err := store.Get(ctx, "stores", "a"); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Fatalf("Get after delete error = %v, want not found", err)
	}
}

func TestListenDeliversChanges(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := store.Listen(ctx, "stores", Query{
		Filters: []Filter{{Field: "state", Op: OpEqual, Value: "NC"}},
	})
	if err != nil {
		t.Fatalf("Listen error = %v", err)
	}
	defer sub.Close()

	// Two initial added events for the NC docs.
	initial := map[string]bool{}
	for range 2 {
		ev := waitEvent(t, sub)
		if ev.Type != EventAdded {
			t.Fatalf("initial event type = %s, want added", ev.Type)
		}
		initial[ev.Snapshot.ID] = true
	}
	if !initial["a"] || !initial["b"] {
		t.Fatalf("initial events = %v, want a and b", initial)
	}

	if _, err := store.Update(ctx, "stores", "a", map[string]any{"count": 11}); err != nil {
		t.Fatalf("Update error = %v", err)
	}
	if ev := waitEvent(t, sub); ev.Type != EventModified || ev.Snapshot.ID != "a" {
		t.Fatalf("event = %s/%s, want modified/a", ev.Type, ev.Snapshot.ID)
	}

	// A VA doc does not match the filter, no event expected.
	if _, err := store.Set(ctx, "stores", "d", testDoc{Name: "Norfolk", State: "VA"}); err != nil {
		t.Fatalf("Set error = %v", err)
	}

	if err := store.Delete(ctx, "stores", "b"); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if ev := waitEvent(t, sub); ev.Type != EventRemoved || ev.Snapshot.ID != "b" {
		t.Fatalf("event = %s/%s, want removed/b", ev.Type, ev.Snapshot.ID)
	}
}

func TestListenCloseStopsEvents(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	ctx := context.Background()

	sub, err := store.Listen(ctx, "stores", Query{})
	if err != nil {
		t.Fatalf("Listen error = %v", err)
	}
	sub.Close()

	for range sub.Events() {
		// Drain whatever was buffered before close.
	}

	if _, err := store.Set(ctx, "stores", "z", testDoc{Name: "late"}); err != nil {
		t.Fatalf("Set after close error = %v", err)
	}
}

func waitEvent(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}
