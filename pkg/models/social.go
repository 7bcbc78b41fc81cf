package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Find is one item on the social finds feed.
type Find struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	UserName    string           `json:"userName,omitempty"`
	StoreID     string           `json:"storeId,omitempty"`
	StoreName   string           `json:"storeName,omitempty"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    string           `json:"category,omitempty"`
	ImageURLs   []string         `json:"imageUrls,omitempty"`
	Location    string           `json:"location,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`

	Likes    int           `json:"likes"`
	LikedBy  []string      `json:"likedBy,omitempty"`
	Comments []FindComment `json:"comments,omitempty"`
}

// LikedByUser reports whether the user already liked the find.
func (f Find) LikedByUser(userID string) bool {
	for _, id := range f.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// FindComment is one comment on a find.
type FindComment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Favorites is the per-user ordered list of favorite store ids, stored
// as one document keyed by the user id.
type Favorites struct {
	UserID    string    `json:"userId"`
	StoreIDs  []string  `json:"storeIds"`
	UpdatedAt time.Time `json:"updatedAt"`
}
