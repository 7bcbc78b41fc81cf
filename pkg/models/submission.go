package models

import (
	"time"

	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
)

// PhotoSubmission is a batch of candidate photos for one store awaiting
// moderation. Transitions out of pending are guarded by the document
// revision the moderator read; a concurrent transition loses on
// mismatch.
type PhotoSubmission struct {
	ID            string                 `json:"id"`
	StoreID       string                 `json:"storeId"`
	StoreName     string                 `json:"storeName,omitempty"`
	ImageURLs     []string               `json:"imageUrls"`
	Status        enums.SubmissionStatus `json:"status"`
	SubmittedBy   string                 `json:"submittedBy"`
	SubmitterName string                 `json:"submitterName,omitempty"`
	SubmittedAt   time.Time              `json:"submittedAt"`

	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
	ReviewedBy      string     `json:"reviewedBy,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
}

// Notification is written by the moderation event worker when a
// submission reaches a terminal state.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read,omitempty"`
}
