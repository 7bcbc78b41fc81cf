package models

import (
	"time"

	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
	"github.com/pinielabera/thriftndrift-backend/pkg/types"
)

// City is one browsable city. StoreCount and FeaturedStores are derived
// caches recomputed whenever the region's catalog changes.
type City struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	State       string           `json:"state"`
	Description string           `json:"description,omitempty"`
	Coordinate  types.Coordinate `json:"coordinate"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	Tags        []string         `json:"tags,omitempty"`

	StoreCount     int           `json:"storeCount"`
	FeaturedStores []StoreRecord `json:"featuredStores,omitempty"`
}

// CityRequest is a user-submitted request to add a city.
type CityRequest struct {
	ID          string                  `json:"id"`
	CityName    string                  `json:"cityName"`
	State       string                  `json:"state"`
	Reason      string                  `json:"reason,omitempty"`
	Status      enums.CityRequestStatus `json:"status"`
	RequestedBy string                  `json:"requestedBy"`
	RequestedAt time.Time               `json:"requestedAt"`
	ResolvedAt  *time.Time              `json:"resolvedAt,omitempty"`
	ResolvedBy  string                  `json:"resolvedBy,omitempty"`
}
