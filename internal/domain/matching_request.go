package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MatchingRequest statuses. Transitions are monotonic:
// pending -> processing -> completed | failed. Terminal states never move.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// MatchingRequest is one submitted matching run. Identity and inputs are
// fixed at creation; only the lifecycle fields mutate afterwards.
type MatchingRequest struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Status       string         `gorm:"column:status;not null;index" json:"status"`
	DatasetIDs   datatypes.JSON `gorm:"column:dataset_ids;type:jsonb;not null" json:"dataset_ids"`
	DatastoreIDs datatypes.JSON `gorm:"column:datastore_ids;type:jsonb;not null" json:"datastore_ids"`
	ModelName    string         `gorm:"column:model_name;not null" json:"model_name"`
	SystemPrompt string         `gorm:"column:system_prompt;not null" json:"system_prompt"`
	UserPrompt   string         `gorm:"column:user_prompt;not null" json:"user_prompt"`

	ProcessingTimeSeconds *float64 `gorm:"column:processing_time_seconds" json:"processing_time_seconds,omitempty"`
	OverallConfidence     *float64 `gorm:"column:overall_confidence" json:"overall_confidence,omitempty"`
	ErrorMessage          *string  `gorm:"column:error_message" json:"error_message,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (MatchingRequest) TableName() string { return "matching_requests" }
