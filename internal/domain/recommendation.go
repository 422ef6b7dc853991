package domain

import (
	"time"

	"github.com/google/uuid"
)

// Recommendation is one ranked dataset->datastore match. Rows exist only for
// completed requests and are created as a batch with the terminal transition.
type Recommendation struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID   uuid.UUID `gorm:"type:uuid;column:request_id;not null;index" json:"request_id"`
	DatasetID   int64     `gorm:"column:dataset_id;not null" json:"dataset_id"`
	DatastoreID int64     `gorm:"column:datastore_id;not null" json:"datastore_id"`
	Confidence  float64   `gorm:"column:confidence;not null" json:"confidence"`
	Reason      string    `gorm:"column:reason;not null" json:"reason"`
	// Priority is the 1-based rank within the request, 1 = most confident.
	Priority  int       `gorm:"column:priority;not null" json:"priority"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Recommendation) TableName() string { return "matching_recommendations" }
