// Package models holds the document shapes persisted through the
// document store. JSON field names follow the wire schema shared with
// the mobile clients.
package models

import (
	"time"

	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	"github.com/pinielabera/thriftndrift-backend/pkg/types"
)

// Collection names in the document store.
const (
	CollectionStores           = "stores"
	CollectionStoreSubmissions = "store_submissions"
	CollectionPhotoSubmissions = "photo_submissions"
	CollectionCityRequests     = "city_requests"
	CollectionAdmins           = "admins"
	CollectionFinds            = "finds"
	CollectionFavorites        = "favorites"
	CollectionNotifications    = "notifications"
)

// StoreRecord is one thrift store, either bundled statically or held in
// the stores / store_submissions collections.
type StoreRecord struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Address     types.Address    `json:"address"`
	Location    types.Coordinate `json:"location"`
	ImageURLs   []string         `json:"imageUrls,omitempty"`

	Rating      float64          `json:"rating,omitempty"`
	ReviewCount int              `json:"reviewCount,omitempty"`
	PriceRange  enums.PriceRange `json:"priceRange,omitempty"`
	Categories  []string         `json:"categories,omitempty"`

	AcceptsDonations      bool `json:"acceptsDonations,omitempty"`
	HasClothingSection    bool `json:"hasClothingSection,omitempty"`
	HasFurnitureSection   bool `json:"hasFurnitureSection,omitempty"`
	HasElectronicsSection bool `json:"hasElectronicsSection,omitempty"`

	Website          string `json:"website,omitempty"`
	PhoneNumber      string `json:"phoneNumber,omitempty"`
	ImageAttribution string `json:"imageAttribution,omitempty"`
	IsFeatured       bool   `json:"isFeatured,omitempty"`
	FeaturedRank     int    `json:"featuredRank,omitempty"`

	VerificationStatus enums.VerificationStatus `json:"verificationStatus"`
	IsUserSubmitted    bool                     `json:"isUserSubmitted,omitempty"`
	SubmittedBy        string                   `json:"submittedBy,omitempty"`
	RejectionReason    string                   `json:"rejectionReason,omitempty"`
	// PromotedFrom records the pending document id a verified copy came
	// from, so reconciliation can tell the two halves of the move apart.
	PromotedFrom string     `json:"promotedFrom,omitempty"`
	LastVerified *time.Time `json:"lastVerified,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// State returns the record's authoritative 2-letter state code.
func (s StoreRecord) State() string {
	return s.Address.State
}

// HasValidLocation reports whether the record passes the coordinate
// validity rules and may appear in the catalog.
func (s StoreRecord) HasValidLocation() bool {
	return s.Location.IsValid()
}
