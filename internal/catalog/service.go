// Package catalog maintains the merged per-region store list: the
// bundled static partition plus live listeners over verified store
// documents and approved-but-unpromoted submissions. All shared state
// is owned by a single dispatcher goroutine; listener callbacks and
// async image checks post back to it and are discarded when the region
// changed underneath them.
package catalog

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pinielabera/thriftndrift-backend/pkg/blobstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/config"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/metrics"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
	"github.com/pinielabera/thriftndrift-backend/pkg/staticdata"
)

// sourceKind names the three catalog inputs.
type sourceKind string

const (
	sourceStatic          sourceKind = "static"
	sourceVerified        sourceKind = "verified"
	sourcePendingVerified sourceKind = "pending_verified"
)

// Subscription delivers a fresh merged snapshot after every applied
// change. The channel holds the latest snapshot only; slow consumers
// skip intermediate states.
type Subscription struct {
	ch    chan []models.StoreRecord
	close func()
}

// Updates returns the snapshot channel. It is closed when the
// subscription or the service shuts down.
func (s *Subscription) Updates() <-chan []models.StoreRecord {
	return s.ch
}

// Close detaches the subscription.
func (s *Subscription) Close() {
	s.close()
}

// ServiceParams groups dependencies for the catalog service.
type ServiceParams struct {
	Docs    docstore.Store
	Blobs   blobstore.Store
	Static  *staticdata.Catalog
	Config  config.CatalogConfig
	Logger  *logger.Logger
	Metrics *metrics.CatalogMetrics
}

// Service owns the merged store list for the active region.
type Service struct {
	docs    docstore.Store
	blobs   blobstore.Store
	static  *staticdata.Catalog
	cfg     config.CatalogConfig
	logg    *logger.Logger
	metrics *metrics.CatalogMetrics

	lifeCtx  context.Context
	lifeStop context.CancelFunc
	commands chan func()
	stopped  chan struct{}

	// Everything below is touched only from the dispatcher goroutine.
	region       string
	token        int64
	staticRows   []models.StoreRecord
	verified     map[string]models.StoreRecord
	pending      map[string]models.StoreRecord
	cancelRegion context.CancelFunc
	subscribers  map[int]chan []models.StoreRecord
	nextSubID    int
}

// NewService builds the catalog service and starts its dispatcher. The
// caller selects the initial region with SwitchRegion.
func NewService(params ServiceParams) (*Service, error) {
	if params.Docs == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "document store is required")
	}
	if params.Blobs == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "blob store is required")
	}
	if params.Static == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "static dataset is required")
	}
	if params.Logger == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "logger is required")
	}

	lifeCtx, lifeStop := context.WithCancel(context.Background())
	s := &Service{
		docs:        params.Docs,
		blobs:       params.Blobs,
		static:      params.Static,
		cfg:         params.Config,
		logg:        params.Logger,
		metrics:     params.Metrics,
		lifeCtx:     lifeCtx,
		lifeStop:    lifeStop,
		commands:    make(chan func(), 64),
		stopped:     make(chan struct{}),
		verified:    make(map[string]models.StoreRecord),
		pending:     make(map[string]models.StoreRecord),
		subscribers: make(map[int]chan []models.StoreRecord),
	}
	go s.dispatch()
	return s, nil
}

// Close stops the dispatcher and detaches all listeners and
// subscribers.
func (s *Service) Close() {
	s.lifeStop()
	<-s.stopped
}

func (s *Service) dispatch() {
	defer close(s.stopped)
	for {
		select {
		case <-s.lifeCtx.Done():
			if s.cancelRegion != nil {
				s.cancelRegion()
			}
			for id, ch := range s.subscribers {
				close(ch)
				delete(s.subscribers, id)
			}
			return
		case cmd := <-s.commands:
			cmd()
		}
	}
}

func (s *Service) enqueue(cmd func()) bool {
	select {
	case s.commands <- cmd:
		return true
	case <-s.lifeCtx.Done():
		return false
	}
}

func (s *Service) call(ctx context.Context, cmd func() error) error {
	reply := make(chan error, 1)
	if !s.enqueue(func() { reply <- cmd() }) {
		return apperrors.New(apperrors.CodeDependency, "catalog service is shut down")
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return apperrors.Wrap(apperrors.CodeDependency, ctx.Err(), "waiting on catalog dispatcher")
	}
}

// SwitchRegion cancels the listeners for the previous region, clears
// the merged list, reloads the static partition and re-subscribes.
// Updates still in flight for the old region carry its token and are
// discarded on delivery.
func (s *Service) SwitchRegion(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return apperrors.New(apperrors.CodeValidation, "region must be a 2-letter state code")
	}
	return s.call(ctx, func() error {
		s.switchRegion(code)
		return nil
	})
}

// Region returns the active region code, empty before the first switch.
func (s *Service) Region() string {
	var region string
	_ = s.call(context.Background(), func() error {
		region = s.region
		return nil
	})
	return region
}

// Regions lists the region codes present in the static dataset.
func (s *Service) Regions() []string {
	return s.static.Regions()
}

// Snapshot returns the current merged, validated store list. The slice
// is owned by the caller.
func (s *Service) Snapshot(ctx context.Context) ([]models.StoreRecord, error) {
	var out []models.StoreRecord
	err := s.call(ctx, func() error {
		out = s.merge()
		return nil
	})
	return out, err
}

// Search filters the current snapshot by case-insensitive substring
// match over name, description and categories. An empty query returns
// the full list.
func (s *Service) Search(ctx context.Context, query string) ([]models.StoreRecord, error) {
	records, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return records, nil
	}
	out := records[:0]
	for _, record := range records {
		if storeMatches(record, query) {
			out = append(out, record)
		}
	}
	return out, nil
}

// Subscribe registers for merged-snapshot push updates.
func (s *Service) Subscribe(ctx context.Context) (*Subscription, error) {
	var sub *Subscription
	err := s.call(ctx, func() error {
		id := s.nextSubID
		s.nextSubID++
		ch := make(chan []models.StoreRecord, 1)
		s.subscribers[id] = ch
		sub = &Subscription{
			ch: ch,
			close: func() {
				s.enqueue(func() {
					if existing, ok := s.subscribers[id]; ok {
						delete(s.subscribers, id)
						close(existing)
					}
				})
			},
		}
		return nil
	})
	return sub, err
}

func storeMatches(record models.StoreRecord, query string) bool {
	if strings.Contains(strings.ToLower(record.Name), query) {
		return true
	}
	if strings.Contains(strings.ToLower(record.Description), query) {
		return true
	}
	for _, category := range record.Categories {
		if strings.Contains(strings.ToLower(category), query) {
			return true
		}
	}
	return false
}

// switchRegion runs on the dispatcher.
func (s *Service) switchRegion(code string) {
	started := time.Now()

	s.token++
	token := s.token
	s.region = code
	if s.cancelRegion != nil {
		s.cancelRegion()
	}
	s.verified = make(map[string]models.StoreRecord)
	s.pending = make(map[string]models.StoreRecord)

	s.staticRows = nil
	for _, record := range s.static.StoresForRegion(code) {
		if includeRecord(record, code) {
			s.staticRows = append(s.staticRows, record)
		}
	}

	regionCtx, cancel := context.WithCancel(s.lifeCtx)
	s.cancelRegion = cancel
	go s.runListener(regionCtx, token, code, sourceVerified, models.CollectionStores)
	// Store approval flips the submission doc to verified before the
	// promoted copy lands; this source covers that window and any
	// leftover copy whose delete failed.
	go s.runListener(regionCtx, token, code, sourcePendingVerified, models.CollectionStoreSubmissions)

	s.metrics.ObserveReload(code, time.Since(started))
	s.logg.Info(s.logg.WithRegion(s.lifeCtx, code), "catalog region switched")
	s.notifySubscribers()
}

// runListener feeds one remote source into the dispatcher. Failures
// degrade the source to empty; the other sources keep populating.
func (s *Service) runListener(ctx context.Context, token int64, region string, source sourceKind, collection string) {
	sub, err := s.docs.Listen(ctx, collection, docstore.Query{
		Filters: []docstore.Filter{
			{Field: "verificationStatus", Op: docstore.OpEqual, Value: enums.VerificationStatusVerified.String()},
		},
	})
	if err != nil {
		s.logg.Error(s.logg.WithRegion(ctx, region), "catalog listener setup failed for "+collection, err)
		return
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				if ctx.Err() == nil {
					s.logg.Warn(ctx, "catalog listener closed unexpectedly for "+collection)
				}
				return
			}
			s.enqueue(func() { s.applyEvent(token, source, collection, event) })
		}
	}
}

// applyEvent runs on the dispatcher.
func (s *Service) applyEvent(token int64, source sourceKind, collection string, event docstore.Event) {
	if token != s.token {
		s.metrics.IncStaleDiscard(s.region)
		return
	}

	rows := s.sourceRows(source)
	if event.Type == docstore.EventRemoved {
		delete(rows, event.Snapshot.ID)
		s.metrics.IncListenerEvent(s.region, string(event.Type))
		s.notifySubscribers()
		return
	}

	var record models.StoreRecord
	if err := event.Snapshot.Decode(&record); err != nil {
		s.logg.Error(s.logg.WithRegion(s.lifeCtx, s.region), "decoding catalog document "+event.Snapshot.ID, err)
		return
	}
	if !includeRecord(record, s.region) {
		delete(rows, event.Snapshot.ID)
		s.notifySubscribers()
		return
	}

	rows[event.Snapshot.ID] = record
	s.metrics.IncListenerEvent(s.region, string(event.Type))
	if len(record.ImageURLs) > 0 {
		go s.verifyImages(token, source, collection, event.Snapshot.ID, record.ImageURLs)
	}
	s.notifySubscribers()
}

func (s *Service) sourceRows(source sourceKind) map[string]models.StoreRecord {
	if source == sourcePendingVerified {
		return s.pending
	}
	return s.verified
}

// includeRecord applies the merge filter: valid coordinates and a
// case-insensitive state match against the active region.
func includeRecord(record models.StoreRecord, region string) bool {
	return record.HasValidLocation() && strings.EqualFold(record.State(), region)
}

// verifyImages checks each image URL against the blob store and posts
// the surviving list back to the dispatcher. URLs that cannot be
// verified inside the window stay absent for this cycle but are not
// pruned from the document; confirmed-dead URLs are pruned and written
// back asynchronously.
func (s *Service) verifyImages(token int64, source sourceKind, collection, docID string, urls []string) {
	ctx, cancel := context.WithTimeout(s.lifeCtx, s.checkWindow())
	defer cancel()

	var alive, dead, unknown []string
	base := s.blobs.URL("")
	for _, url := range urls {
		path, ours := strings.CutPrefix(url, base)
		if !ours || path == "" {
			alive = append(alive, url)
			continue
		}
		objects, err := s.blobs.List(ctx, path)
		if err != nil {
			unknown = append(unknown, url)
			continue
		}
		found := false
		for _, object := range objects {
			if object.Path == path {
				found = true
				break
			}
		}
		if found {
			alive = append(alive, url)
		} else {
			dead = append(dead, url)
		}
	}
	if len(dead) == 0 && len(unknown) == 0 {
		return
	}

	s.enqueue(func() { s.applyImageCheck(token, source, docID, alive) })

	if len(dead) > 0 {
		for range dead {
			s.metrics.IncPrunedImage()
		}
		kept := append(append([]string{}, alive...), unknown...)
		if _, err := s.docs.Update(ctx, collection, docID, map[string]any{"imageUrls": kept}); err != nil {
			s.logg.Warn(s.logg.WithStoreID(ctx, docID), "writing back pruned image list failed")
		}
	}
}

// applyImageCheck runs on the dispatcher.
func (s *Service) applyImageCheck(token int64, source sourceKind, docID string, alive []string) {
	if token != s.token {
		s.metrics.IncStaleDiscard(s.region)
		return
	}
	rows := s.sourceRows(source)
	record, ok := rows[docID]
	if !ok {
		return
	}
	record.ImageURLs = alive
	rows[docID] = record
	s.notifySubscribers()
}

func (s *Service) checkWindow() time.Duration {
	if s.cfg.ImageCheckWindow > 0 {
		return s.cfg.ImageCheckWindow
	}
	return 10 * time.Second
}

// merge runs on the dispatcher and builds the presented list: static
// rows then remote rows, sorted by name. Ids are not deduplicated
// across sources.
func (s *Service) merge() []models.StoreRecord {
	out := make([]models.StoreRecord, 0, len(s.staticRows)+len(s.verified)+len(s.pending))
	out = append(out, s.staticRows...)
	for _, record := range s.verified {
		out = append(out, record)
	}
	for _, record := range s.pending {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// notifySubscribers runs on the dispatcher. The latest snapshot
// replaces any undelivered one.
func (s *Service) notifySubscribers() {
	if len(s.subscribers) == 0 {
		return
	}
	snapshot := s.merge()
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}
