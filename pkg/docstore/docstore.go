// Package docstore defines the document persistence interface the
// catalog and moderation services are written against. Implementations
// live in subpackages; the memory store in this package backs tests.
package docstore

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEqual Op = "=="
	OpIn    Op = "in"
)

// Filter restricts a query to documents whose field matches the value.
// Field may use dots to address nested JSON objects.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes a filtered, ordered read over one collection.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Snapshot is one document read at a point in time. Revision increments
// on every write and backs compare-and-update guards.
type Snapshot struct {
	ID        string
	Revision  int64
	Data      json.RawMessage
	UpdatedAt time.Time
}

// Decode unmarshals the snapshot payload into v.
func (s Snapshot) Decode(v any) error {
	if err := json.Unmarshal(s.Data, v); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "decoding document "+s.ID)
	}
	return nil
}

// EventType classifies a change delivered on a listener.
type EventType string

const (
	EventAdded    EventType = "added"
	EventModified EventType = "modified"
	EventRemoved  EventType = "removed"
)

// Event is one change observed by a listener. Removed events carry the
// last known snapshot of the document.
type Event struct {
	Type     EventType
	Snapshot Snapshot
}

// Subscription delivers change events until closed. The events channel
// is closed after Close returns or the listen context is cancelled.
type Subscription interface {
	Events() <-chan Event
	Close()
}

// Store is the document persistence contract. All writes bump the
// document revision; CompareAndUpdate fails with a state conflict when
// the stored revision no longer matches the expected one.
type Store interface {
	Get(ctx context.Context, collection, id string) (Snapshot, error)
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)
	Set(ctx context.Context, collection, id string, doc any) (Snapshot, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) (Snapshot, error)
	CompareAndUpdate(ctx context.Context, collection, id string, expectedRevision int64, fields map[string]any) (Snapshot, error)
	Delete(ctx context.Context, collection, id string) error
	Listen(ctx context.Context, collection string, q Query) (Subscription, error)
}

// NotFound builds the canonical missing-document error.
func NotFound(collection, id string) error {
	return apperrors.New(apperrors.CodeNotFound, "document "+collection+"/"+id+" not found")
}

// RevisionMismatch builds the canonical stale-revision error.
func RevisionMismatch(collection, id string) error {
	return apperrors.New(apperrors.CodeStateConflict, "document "+collection+"/"+id+" changed since it was read")
}
