// Package cities maintains the per-region city index: the static city
// list joined against the live catalog by great-circle proximity, with
// derived store counts and featured-store lists.
package cities

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pinielabera/thriftndrift-backend/internal/catalog"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
	"github.com/pinielabera/thriftndrift-backend/pkg/staticdata"
	"github.com/pinielabera/thriftndrift-backend/pkg/types"
)

// ProximityRadiusMeters is the join radius between a city centroid and
// its stores.
const ProximityRadiusMeters = 25_000

// FeaturedStoreLimit caps the per-city featured list at the nearest
// stores.
const FeaturedStoreLimit = 5

// ServiceParams groups dependencies for the cities service.
type ServiceParams struct {
	Catalog *catalog.Service
	Static  *staticdata.Catalog
	Logger  *logger.Logger
}

// Service exposes the derived city index. It follows the catalog's
// push updates and recomputes on every change.
type Service struct {
	catalog *catalog.Service
	static  *staticdata.Catalog
	logg    *logger.Logger

	mu     sync.RWMutex
	region string
	cities []models.City
	stores []models.StoreRecord

	stop func()
	done chan struct{}
}

// NewService builds the city index and starts following catalog
// updates.
func NewService(params ServiceParams) (*Service, error) {
	if params.Catalog == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "catalog service is required")
	}
	if params.Static == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "static dataset is required")
	}
	if params.Logger == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "logger is required")
	}

	s := &Service{
		catalog: params.Catalog,
		static:  params.Static,
		logg:    params.Logger,
		done:    make(chan struct{}),
	}

	followCtx, cancel := context.WithCancel(context.Background())
	sub, err := params.Catalog.Subscribe(followCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	s.stop = func() {
		sub.Close()
		cancel()
	}
	go s.follow(followCtx, sub)

	s.refresh(context.Background())
	return s, nil
}

// Close stops following catalog updates.
func (s *Service) Close() {
	s.stop()
	<-s.done
}

func (s *Service) follow(ctx context.Context, sub *catalog.Subscription) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-sub.Updates():
			if !ok {
				return
			}
			s.apply(snapshot)
		}
	}
}

// refresh pulls the current catalog state, for startup and after a
// region switch initiated elsewhere.
func (s *Service) refresh(ctx context.Context) {
	snapshot, err := s.catalog.Snapshot(ctx)
	if err != nil {
		s.logg.Warn(ctx, "city index refresh failed")
		return
	}
	s.apply(snapshot)
}

func (s *Service) apply(stores []models.StoreRecord) {
	region := s.catalog.Region()
	base := s.static.CitiesForRegion(region)
	computed := Recompute(base, stores)

	s.mu.Lock()
	s.region = region
	s.cities = computed
	s.stores = stores
	s.mu.Unlock()
}

// Recompute derives storeCount and featuredStores for every city from
// the given store snapshot and sorts cities by store count descending.
// The result depends only on the inputs.
func Recompute(base []models.City, stores []models.StoreRecord) []models.City {
	out := make([]models.City, len(base))
	copy(out, base)
	for i := range out {
		near := storesNear(out[i].Coordinate, stores)
		out[i].StoreCount = len(near)
		if len(near) > FeaturedStoreLimit {
			near = near[:FeaturedStoreLimit]
		}
		out[i].FeaturedStores = near
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StoreCount != out[j].StoreCount {
			return out[i].StoreCount > out[j].StoreCount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// storesNear returns the stores within the join radius of the
// centroid, nearest first.
func storesNear(centroid types.Coordinate, stores []models.StoreRecord) []models.StoreRecord {
	type scored struct {
		record   models.StoreRecord
		distance float64
	}
	var near []scored
	for _, record := range stores {
		distance := centroid.DistanceMeters(record.Location)
		if distance <= ProximityRadiusMeters {
			near = append(near, scored{record: record, distance: distance})
		}
	}
	sort.SliceStable(near, func(i, j int) bool { return near[i].distance < near[j].distance })
	out := make([]models.StoreRecord, len(near))
	for i, item := range near {
		out[i] = item.record
	}
	return out
}

// CitiesForRegion returns the derived city list for the active region.
// A different code than the active region falls back to the static
// list without derived counts.
func (s *Service) CitiesForRegion(code string) []models.City {
	code = strings.ToUpper(strings.TrimSpace(code))

	s.mu.RLock()
	defer s.mu.RUnlock()
	if code == "" || strings.EqualFold(code, s.region) {
		out := make([]models.City, len(s.cities))
		copy(out, s.cities)
		return out
	}
	return s.static.CitiesForRegion(code)
}

// StoresNearCity returns every catalog store within the join radius of
// the city's centroid, nearest first.
func (s *Service) StoresNearCity(cityID string) ([]models.StoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, city := range s.cities {
		if city.ID == cityID {
			return storesNear(city.Coordinate, s.stores), nil
		}
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "city "+cityID+" not found")
}

// Search filters the derived city list by case-insensitive substring
// match over name, state, description and tags. An empty query returns
// the unfiltered list.
func (s *Service) Search(query string) []models.City {
	s.mu.RLock()
	cities := make([]models.City, len(s.cities))
	copy(cities, s.cities)
	s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return cities
	}
	out := cities[:0]
	for _, city := range cities {
		if cityMatches(city, query) {
			out = append(out, city)
		}
	}
	return out
}

func cityMatches(city models.City, query string) bool {
	if strings.Contains(strings.ToLower(city.Name), query) {
		return true
	}
	if strings.Contains(strings.ToLower(city.State), query) {
		return true
	}
	if strings.Contains(strings.ToLower(city.Description), query) {
		return true
	}
	for _, tag := range city.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}
