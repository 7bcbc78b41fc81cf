package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
)

// MemoryStore is a goroutine-safe in-memory Store. It backs unit tests
// and local development without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Snapshot
	notifier    *Notifier
	clock       func() time.Time
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: map[string]map[string]Snapshot{},
		notifier:    NewNotifier(),
		clock:       time.Now,
	}
}

// SetClock overrides the write timestamp source. Test helper.
func (m *MemoryStore) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.collections[collection][id]
	if !ok {
		return Snapshot{}, NotFound(collection, id)
	}
	return snap, nil
}

func (m *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.queryLocked(collection, q)
}

func (m *MemoryStore) queryLocked(collection string, q Query) ([]Snapshot, error) {
	var out []Snapshot
	for _, snap := range m.collections[collection] {
		ok, err := Matches(snap, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, snap)
		}
	}

	if q.OrderBy != "" {
		SortByField(out, q.OrderBy, q.Desc)
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, doc any) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return Snapshot{}, apperrors.Wrap(apperrors.CodeInternal, err, "encoding document "+collection+"/"+id)
	}

	m.mu.Lock()
	prev, existed := m.collections[collection][id]
	snap := Snapshot{ID: id, Revision: prev.Revision + 1, Data: data, UpdatedAt: m.clock()}
	if m.collections[collection] == nil {
		m.collections[collection] = map[string]Snapshot{}
	}
	m.collections[collection][id] = snap
	m.mu.Unlock()

	evType := EventAdded
	if existed {
		evType = EventModified
	}
	m.notifier.Publish(collection, evType, snap)
	return snap, nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) (Snapshot, error) {
	return m.update(ctx, collection, id, -1, fields)
}

func (m *MemoryStore) CompareAndUpdate(ctx context.Context, collection, id string, expectedRevision int64, fields map[string]any) (Snapshot, error) {
	return m.update(ctx, collection, id, expectedRevision, fields)
}

func (m *MemoryStore) update(ctx context.Context, collection, id string, expectedRevision int64, fields map[string]any) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	m.mu.Lock()
	prev, ok := m.collections[collection][id]
	if !ok {
		m.mu.Unlock()
		return Snapshot{}, NotFound(collection, id)
	}
	if expectedRevision >= 0 && prev.Revision != expectedRevision {
		m.mu.Unlock()
		return Snapshot{}, RevisionMismatch(collection, id)
	}

	var doc map[string]any
	if err := json.Unmarshal(prev.Data, &doc); err != nil {
		m.mu.Unlock()
		return Snapshot{}, apperrors.Wrap(apperrors.CodeInternal, err, "decoding document "+collection+"/"+id)
	}
	ApplyFieldUpdates(doc, fields)

	data, err := json.Marshal(doc)
	if err != nil {
		m.mu.Unlock()
		return Snapshot{}, apperrors.Wrap(apperrors.CodeInternal, err, "encoding document "+collection+"/"+id)
	}

	snap := Snapshot{ID: id, Revision: prev.Revision + 1, Data: data, UpdatedAt: m.clock()}
	m.collections[collection][id] = snap
	m.mu.Unlock()

	m.notifier.Publish(collection, EventModified, snap)
	return snap, nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	prev, ok := m.collections[collection][id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.collections[collection], id)
	m.mu.Unlock()

	m.notifier.Publish(collection, EventRemoved, prev)
	return nil
}

func (m *MemoryStore) Listen(ctx context.Context, collection string, q Query) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	initial, err := m.queryLocked(collection, q)
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	sub := m.notifier.Subscribe(collection, q)

	// Initial state arrives as added events, mirroring how a remote
	// document listener behaves on attach.
	for _, snap := range initial {
		sub.Deliver(Event{Type: EventAdded, Snapshot: snap})
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}
