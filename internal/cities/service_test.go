package cities

import (
	"context"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/pinielabera/thriftndrift-backend/internal/catalog"
	"github.com/pinielabera/thriftndrift-backend/pkg/blobstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/config"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
	"github.com/pinielabera/thriftndrift-backend/pkg/staticdata"
	"github.com/pinielabera/thriftndrift-backend/pkg/types"
)

func storeAt(id, name string, lat, lon float64) models.StoreRecord {
	return models.StoreRecord{
		ID:                 id,
		Name:               name,
		Address:            types.Address{Street: "1 Main St", City: "Raleigh", State: "NC", Zip: "27601"},
		Location:           types.Coordinate{Latitude: lat, Longitude: lon},
		VerificationStatus: enums.VerificationStatusVerified,
	}
}

func cityAt(id, name string, lat, lon float64, tags ...string) models.City {
	return models.City{
		ID:         id,
		Name:       name,
		State:      "NC",
		Coordinate: types.Coordinate{Latitude: lat, Longitude: lon},
		Tags:       tags,
	}
}

func newTestIndex(t *testing.T, stores []models.StoreRecord, cityList []models.City) *Service {
	t.Helper()
	static := staticdata.FromRecords(
		map[string][]models.StoreRecord{"NC": stores},
		map[string][]models.City{"NC": cityList},
	)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	cat, err := catalog.NewService(catalog.ServiceParams{
		Docs:   docstore.NewMemoryStore(),
		Blobs:  blobstore.NewMemoryStore(""),
		Static: static,
		Config: config.CatalogConfig{ImageCheckWindow: time.Second},
		Logger: logg,
	})
	if err != nil {
		t.Fatalf("catalog.NewService: %v", err)
	}
	t.Cleanup(cat.Close)
	if err := cat.SwitchRegion(context.Background(), "NC"); err != nil {
		t.Fatalf("SwitchRegion: %v", err)
	}

	svc, err := NewService(ServiceParams{Catalog: cat, Static: static, Logger: logg})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func TestStoresNearCityRadius(t *testing.T) {
	t.Parallel()

	raleigh := cityAt("nc-raleigh", "Raleigh", 35.78, -78.64)
	svc := newTestIndex(t, []models.StoreRecord{
		storeAt("near", "Near Store", 35.79, -78.63),
		storeAt("far", "Far Store", 36.5, -79.5),
	}, []models.City{raleigh})

	stores, err := svc.StoresNearCity("nc-raleigh")
	if err != nil {
		t.Fatalf("StoresNearCity: %v", err)
	}
	if len(stores) != 1 || stores[0].ID != "near" {
		t.Fatalf("stores = %+v, want only the 1.3 km store", stores)
	}

	if _, err := svc.StoresNearCity("nc-nowhere"); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Fatalf("unknown city error = %v, want NOT_FOUND", err)
	}
}

func TestDerivedFieldsAndSorting(t *testing.T) {
	t.Parallel()

	svc := newTestIndex(t, []models.StoreRecord{
		storeAt("r1", "Raleigh One", 35.79, -78.63),
		storeAt("r2", "Raleigh Two", 35.77, -78.65),
		storeAt("d1", "Durham One", 35.99, -78.90),
	}, []models.City{
		cityAt("nc-durham", "Durham", 35.994, -78.8986),
		cityAt("nc-raleigh", "Raleigh", 35.78, -78.64),
	})

	cities := svc.CitiesForRegion("NC")
	if len(cities) != 2 {
		t.Fatalf("len = %d, want 2", len(cities))
	}
	if cities[0].ID != "nc-raleigh" || cities[0].StoreCount != 2 {
		t.Fatalf("first city = %+v, want raleigh with 2 stores", cities[0])
	}
	if cities[1].ID != "nc-durham" || cities[1].StoreCount != 1 {
		t.Fatalf("second city = %+v, want durham with 1 store", cities[1])
	}
	if len(cities[0].FeaturedStores) != 2 {
		t.Fatalf("featured = %+v, want both raleigh stores", cities[0].FeaturedStores)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	t.Parallel()

	base := []models.City{
		cityAt("nc-raleigh", "Raleigh", 35.78, -78.64),
		cityAt("nc-durham", "Durham", 35.994, -78.8986),
	}
	stores := []models.StoreRecord{
		storeAt("r1", "Raleigh One", 35.79, -78.63),
		storeAt("d1", "Durham One", 35.99, -78.90),
	}

	first := Recompute(base, stores)
	second := Recompute(base, stores)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("recompute is not deterministic for the same snapshot")
	}

	// Recompute never mutates its inputs.
	if base[0].StoreCount != 0 || base[0].FeaturedStores != nil {
		t.Fatalf("base city mutated: %+v", base[0])
	}
}

func TestFeaturedStoresCappedAtNearestFive(t *testing.T) {
	t.Parallel()

	stores := make([]models.StoreRecord, 0, 7)
	for i := range 7 {
		lat := 35.78 + float64(i)*0.01
		stores = append(stores, storeAt(string(rune('a'+i)), "Store", lat, -78.64))
	}
	base := []models.City{cityAt("nc-raleigh", "Raleigh", 35.78, -78.64)}

	out := Recompute(base, stores)
	if out[0].StoreCount != 7 {
		t.Fatalf("storeCount = %d, want 7", out[0].StoreCount)
	}
	if len(out[0].FeaturedStores) != 5 {
		t.Fatalf("featured len = %d, want 5", len(out[0].FeaturedStores))
	}
	if out[0].FeaturedStores[0].ID != "a" {
		t.Fatalf("featured[0] = %s, want the nearest store", out[0].FeaturedStores[0].ID)
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	svc := newTestIndex(t, nil, []models.City{
		cityAt("nc-raleigh", "Raleigh", 35.78, -78.64, "capital", "antiques"),
		cityAt("nc-durham", "Durham", 35.994, -78.8986, "vintage"),
	})

	byTag := svc.Search("VINT")
	if len(byTag) != 1 || byTag[0].ID != "nc-durham" {
		t.Fatalf("tag search = %+v, want durham", byTag)
	}

	byName := svc.Search("ral")
	if len(byName) != 1 || byName[0].ID != "nc-raleigh" {
		t.Fatalf("name search = %+v, want raleigh", byName)
	}

	all := svc.Search("")
	if len(all) != 2 {
		t.Fatalf("empty query len = %d, want 2", len(all))
	}
}
