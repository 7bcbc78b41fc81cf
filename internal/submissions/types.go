package submissions

import (
	"context"
	"encoding/json"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/pinielabera/thriftndrift-backend/pkg/models"
)

// PhotoUpload is one raw candidate image supplied by a submitter.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadFailure records one image that could not be stored.
type UploadFailure struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// SubmitPhotosResult reports the outcome of a photo submission batch.
// A submission document exists whenever Submission.ID is set, even if
// some uploads failed.
type SubmitPhotosResult struct {
	Submission        models.PhotoSubmission `json:"submission"`
	UploadedURLs      []string               `json:"uploadedUrls"`
	SkippedDuplicates int                    `json:"skippedDuplicates"`
	Failures          []UploadFailure        `json:"failures,omitempty"`
}

// ModerationEvent is published after a submission reaches a terminal
// state; the notification worker turns it into a user notification.
type ModerationEvent struct {
	Kind         string    `json:"kind"`
	SubmissionID string    `json:"submissionId"`
	StoreID      string    `json:"storeId"`
	StoreName    string    `json:"storeName,omitempty"`
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
	SubmittedBy  string    `json:"submittedBy"`
	ReviewedBy   string    `json:"reviewedBy"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Moderation event kinds.
const (
	EventKindPhotoSubmission = "photo_submission"
	EventKindStoreSubmission = "store_submission"
)

// EventPublisher fans moderation outcomes out to interested consumers.
type EventPublisher interface {
	PublishModerationEvent(ctx context.Context, event ModerationEvent) error
}

// PubSubPublisher adapts a Pub/Sub publisher handle to EventPublisher.
type PubSubPublisher struct {
	publisher *pubsub.Publisher
}

// NewPubSubPublisher wraps a publisher handle; a nil handle publishes
// nothing.
func NewPubSubPublisher(publisher *pubsub.Publisher) *PubSubPublisher {
	return &PubSubPublisher{publisher: publisher}
}

// PublishModerationEvent sends the event as a JSON message.
func (p *PubSubPublisher) PublishModerationEvent(ctx context.Context, event ModerationEvent) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"kind":    event.Kind,
			"outcome": event.Outcome,
		},
	})
	_, err = result.Get(ctx)
	return err
}
