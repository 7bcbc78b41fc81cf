// Package staticdata serves the store and city datasets bundled into
// the binary. Partitions are keyed by 2-letter region code and loaded
// once at startup.
package staticdata

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
	"github.com/pinielabera/thriftndrift-backend/pkg/types"
)

//go:embed stores.json cities.json
var assets embed.FS

type rawStore struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Address     string   `json:"address"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	ImageURLs   []string `json:"imageUrls"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"reviewCount"`
	PriceRange  string   `json:"priceRange"`
	Categories  []string `json:"categories"`

	AcceptsDonations      bool `json:"acceptsDonations"`
	HasClothingSection    bool `json:"hasClothingSection"`
	HasFurnitureSection   bool `json:"hasFurnitureSection"`
	HasElectronicsSection bool `json:"hasElectronicsSection"`

	Website     string `json:"website"`
	PhoneNumber string `json:"phoneNumber"`
}

type rawCity struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	ImageURL    string   `json:"imageUrl"`
	Tags        []string `json:"tags"`
}

// Catalog is the parsed static dataset.
type Catalog struct {
	stores map[string][]models.StoreRecord
	cities map[string][]models.City
}

// Load parses the embedded datasets. Store entries whose combined
// address names a different state than their partition are dropped with
// a warning; the partition's region code is authoritative for every
// record that survives.
func Load(ctx context.Context, logg *logger.Logger) (*Catalog, error) {
	var storesByRegion map[string][]rawStore
	if err := readAsset("stores.json", &storesByRegion); err != nil {
		return nil, err
	}
	var citiesByRegion map[string][]rawCity
	if err := readAsset("cities.json", &citiesByRegion); err != nil {
		return nil, err
	}

	catalog := &Catalog{
		stores: make(map[string][]models.StoreRecord, len(storesByRegion)),
		cities: make(map[string][]models.City, len(citiesByRegion)),
	}

	for region, entries := range storesByRegion {
		region = strings.ToUpper(region)
		records := make([]models.StoreRecord, 0, len(entries))
		for _, entry := range entries {
			record, err := entry.toRecord(region)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "store_id", entry.ID), "dropping static store: "+err.Error())
				}
				continue
			}
			records = append(records, record)
		}
		sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
		catalog.stores[region] = records
	}

	for region, entries := range citiesByRegion {
		region = strings.ToUpper(region)
		cities := make([]models.City, 0, len(entries))
		for _, entry := range entries {
			cities = append(cities, models.City{
				ID:          entry.ID,
				Name:        entry.Name,
				State:       region,
				Description: entry.Description,
				Coordinate:  types.Coordinate{Latitude: entry.Latitude, Longitude: entry.Longitude},
				ImageURL:    entry.ImageURL,
				Tags:        entry.Tags,
			})
		}
		catalog.cities[region] = cities
	}

	return catalog, nil
}

// FromRecords builds a catalog from already-parsed records, bypassing
// the embedded assets. Intended for tests and tooling.
func FromRecords(stores map[string][]models.StoreRecord, cities map[string][]models.City) *Catalog {
	catalog := &Catalog{
		stores: make(map[string][]models.StoreRecord, len(stores)),
		cities: make(map[string][]models.City, len(cities)),
	}
	for region, records := range stores {
		catalog.stores[strings.ToUpper(region)] = append([]models.StoreRecord{}, records...)
	}
	for region, entries := range cities {
		catalog.cities[strings.ToUpper(region)] = append([]models.City{}, entries...)
	}
	return catalog
}

func readAsset(name string, v any) error {
	data, err := assets.ReadFile(name)
	if err != nil {
		return fmt.Errorf("reading embedded %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing embedded %s: %w", name, err)
	}
	return nil
}

func (r rawStore) toRecord(region string) (models.StoreRecord, error) {
	if r.ID == "" {
		return models.StoreRecord{}, fmt.Errorf("missing id")
	}

	addr, err := types.ParseCombined(r.Address, "")
	if err != nil {
		return models.StoreRecord{}, fmt.Errorf("unparseable address %q", r.Address)
	}
	if addr.State != "" && !strings.EqualFold(addr.State, region) {
		return models.StoreRecord{}, fmt.Errorf("address state %s disagrees with partition %s", addr.State, region)
	}
	addr.State = region

	location := types.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
	if !location.IsValid() {
		return models.StoreRecord{}, fmt.Errorf("invalid coordinates (%f, %f)", r.Latitude, r.Longitude)
	}

	return models.StoreRecord{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Address:     addr,
		Location:    location,
		ImageURLs:   r.ImageURLs,
		Rating:      r.Rating,
		ReviewCount: r.ReviewCount,
		PriceRange:  enums.PriceRange(r.PriceRange),
		Categories:  r.Categories,

		AcceptsDonations:      r.AcceptsDonations,
		HasClothingSection:    r.HasClothingSection,
		HasFurnitureSection:   r.HasFurnitureSection,
		HasElectronicsSection: r.HasElectronicsSection,

		Website:     r.Website,
		PhoneNumber: r.PhoneNumber,

		VerificationStatus: enums.VerificationStatusVerified,
		CreatedAt:          time.Time{},
	}, nil
}

// StoresForRegion returns the static stores for a region code. The
// returned slice is a copy.
func (c *Catalog) StoresForRegion(code string) []models.StoreRecord {
	records := c.stores[strings.ToUpper(code)]
	out := make([]models.StoreRecord, len(records))
	copy(out, records)
	return out
}

// CitiesForRegion returns the static cities for a region code. The
// returned slice is a copy.
func (c *Catalog) CitiesForRegion(code string) []models.City {
	cities := c.cities[strings.ToUpper(code)]
	out := make([]models.City, len(cities))
	copy(out, cities)
	return out
}

// Regions lists every region present in the store dataset, sorted.
func (c *Catalog) Regions() []string {
	out := make([]string, 0, len(c.stores))
	for region := range c.stores {
		out = append(out, region)
	}
	sort.Strings(out)
	return out
}
