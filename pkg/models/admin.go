package models

import (
	"time"

	"github.com/pinielabera/thriftndrift-backend/pkg/enums"
)

// Admin maps an identity to a moderation role. The document id is the
// user id, so authorization is a single Get.
type Admin struct {
	UserID    string          `json:"userId"`
	Email     string          `json:"email,omitempty"`
	Role      enums.AdminRole `json:"role"`
	GrantedAt time.Time       `json:"grantedAt"`
	GrantedBy string          `json:"grantedBy,omitempty"`
}
