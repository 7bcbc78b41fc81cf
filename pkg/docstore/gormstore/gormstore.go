// Package gormstore implements docstore.Store on a relational database
// through GORM. Documents live as JSON in a single table keyed by
// collection and id; Postgres queries push equality filters into SQL,
// other dialects filter in process.
package gormstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pinielabera/thriftndrift-backend/pkg/db"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type documentRow struct {
	Collection string    `gorm:"column:collection;primaryKey;size:64"`
	DocID      string    `gorm:"column:doc_id;primaryKey;size:128"`
	Revision   int64     `gorm:"column:revision;not null"`
	Data       []byte    `gorm:"column:data;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

func (documentRow) TableName() string {
	return "documents"
}

// Store persists documents through a shared GORM client. Change events
// are fanned out through an in-process notifier, so listeners observe
// writes made through this Store instance.
type Store struct {
	client   *db.Client
	notifier *docstore.Notifier
	postgres bool
	clock    func() time.Time
}

// New wires a Store over the database client.
func New(client *db.Client) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	return &Store{
		client:   client,
		notifier: docstore.NewNotifier(),
		postgres: client.DB().Dialector.Name() == "postgres",
		clock:    time.Now,
	}, nil
}

// AutoMigrate creates the documents table when it does not exist yet.
// Production deployments run SQL migrations instead.
func (s *Store) AutoMigrate() error {
	return s.client.DB().AutoMigrate(&documentRow{})
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Snapshot, error) {
	var row documentRow
	err := s.client.DB().WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return docstore.Snapshot{}, docstore.NotFound(collection, id)
	}
	if err != nil {
		return docstore.Snapshot{}, apperrors.Wrap(apperrors.CodeDependency, err, "reading document "+collection+"/"+id)
	}
	return rowSnapshot(row), nil
}

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	tx := s.client.DB().WithContext(ctx).
		Model(&documentRow{}).
		Where("collection = ?", collection)

	if s.postgres {
		tx = pushDownFilters(tx, q.Filters)
	}

	var rows []documentRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "querying collection "+collection)
	}

	// Filters are re-verified in process so every dialect shares the
	// same matching semantics.
	var out []docstore.Snapshot
	for _, row := range rows {
		snap := rowSnapshot(row)
		ok, err := docstore.Matches(snap, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, snap)
		}
	}

	if q.OrderBy != "" {
		docstore.SortByField(out, q.OrderBy, q.Desc)
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc any) (docstore.Snapshot, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return docstore.Snapshot{}, apperrors.Wrap(apperrors.CodeInternal, err, "encoding document "+collection+"/"+id)
	}

	var snap docstore.Snapshot
	var existed bool
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var prev documentRow
		findErr := lockRow(tx, s.postgres).
			Where("collection = ? AND doc_id = ?", collection, id).
			Take(&prev).Error
		if findErr != nil && !stderrors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}
		existed = findErr == nil

		row := documentRow{
			Collection: collection,
			DocID:      id,
			Revision:   prev.Revision + 1,
			Data:       data,
			UpdatedAt:  s.clock(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"revision", "data", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}
		snap = rowSnapshot(row)
		return nil
	})
	if err != nil {
		return docstore.Snapshot{}, apperrors.Wrap(apperrors.CodeDependency, err, "writing document "+collection+"/"+id)
	}

	evType := docstore.EventAdded
	if existed {
		evType = docstore.EventModified
	}
	s.notifier.Publish(collection, evType, snap)
	return snap, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) (docstore.Snapshot, error) {
	return s.update(ctx, collection, id, -1, fields)
}

func (s *Store) CompareAndUpdate(ctx context.Context, collection, id string, expectedRevision int64, fields map[string]any) (docstore.Snapshot, error) {
	return s.update(ctx, collection, id, expectedRevision, fields)
}

func (s *Store) update(ctx context.Context, collection, id string, expectedRevision int64, fields map[string]any) (docstore.Snapshot, error) {
	var snap docstore.Snapshot
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var prev documentRow
		findErr := lockRow(tx, s.postgres).
			Where("collection = ? AND doc_id = ?", collection, id).
			Take(&prev).Error
		if stderrors.Is(findErr, gorm.ErrRecordNotFound) {
			return docstore.NotFound(collection, id)
		}
		if findErr != nil {
			return apperrors.Wrap(apperrors.CodeDependency, findErr, "reading document "+collection+"/"+id)
		}
		if expectedRevision >= 0 && prev.Revision != expectedRevision {
			return docstore.RevisionMismatch(collection, id)
		}

		var doc map[string]any
		if err := json.Unmarshal(prev.Data, &doc); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "decoding document "+collection+"/"+id)
		}
		docstore.ApplyFieldUpdates(doc, fields)

		data, err := json.Marshal(doc)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "encoding document "+collection+"/"+id)
		}

		row := documentRow{
			Collection: collection,
			DocID:      id,
			Revision:   prev.Revision + 1,
			Data:       data,
			UpdatedAt:  s.clock(),
		}
		if err := tx.Model(&documentRow{}).
			Where("collection = ? AND doc_id = ?", collection, id).
			Updates(map[string]any{
				"revision":   row.Revision,
				"data":       row.Data,
				"updated_at": row.UpdatedAt,
			}).Error; err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "updating document "+collection+"/"+id)
		}
		snap = rowSnapshot(row)
		return nil
	})
	if err != nil {
		return docstore.Snapshot{}, err
	}

	s.notifier.Publish(collection, docstore.EventModified, snap)
	return snap, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	var prev documentRow
	err := s.client.DB().WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Take(&prev).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "reading document "+collection+"/"+id)
	}

	result := s.client.DB().WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Delete(&documentRow{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.CodeDependency, result.Error, "deleting document "+collection+"/"+id)
	}
	if result.RowsAffected > 0 {
		s.notifier.Publish(collection, docstore.EventRemoved, rowSnapshot(prev))
	}
	return nil
}

func (s *Store) Listen(ctx context.Context, collection string, q docstore.Query) (docstore.Subscription, error) {
	initial, err := s.Query(ctx, collection, q)
	if err != nil {
		return nil, err
	}

	sub := s.notifier.Subscribe(collection, q)
	for _, snap := range initial {
		sub.Deliver(docstore.Event{Type: docstore.EventAdded, Snapshot: snap})
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

func rowSnapshot(row documentRow) docstore.Snapshot {
	return docstore.Snapshot{
		ID:        row.DocID,
		Revision:  row.Revision,
		Data:      json.RawMessage(row.Data),
		UpdatedAt: row.UpdatedAt,
	}
}

func lockRow(tx *gorm.DB, postgres bool) *gorm.DB {
	if postgres {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// pushDownFilters narrows a Postgres query with JSON path predicates.
// Only string-valued filters are pushed; everything else is matched in
// process after the fetch.
func pushDownFilters(tx *gorm.DB, filters []docstore.Filter) *gorm.DB {
	for _, f := range filters {
		path := jsonPath(f.Field)
		switch f.Op {
		case docstore.OpEqual:
			if v, ok := f.Value.(string); ok {
				tx = tx.Where(fmt.Sprintf("data #>> '%s' = ?", path), v)
			}
		case docstore.OpIn:
			if vs, ok := f.Value.([]string); ok {
				tx = tx.Where(fmt.Sprintf("data #>> '%s' = ANY(?)", path), pq.Array(vs))
			}
		}
	}
	return tx
}

func jsonPath(field string) string {
	return "{" + strings.ReplaceAll(field, ".", ",") + "}"
}
