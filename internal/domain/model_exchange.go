package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ExchangeOK    = "ok"
	ExchangeError = "error"
)

// ModelExchange is the append-only audit record of one completion attempt:
// the exact prompt sent and the exact raw text returned. Rows are retained
// on failure too, for diagnosis.
type ModelExchange struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID   uuid.UUID `gorm:"type:uuid;column:request_id;not null;index" json:"request_id"`
	Attempt     int       `gorm:"column:attempt;not null" json:"attempt"`
	ModelName   string    `gorm:"column:model_name;not null" json:"model_name"`
	Prompt      string    `gorm:"column:prompt;not null" json:"prompt"`
	RawResponse string    `gorm:"column:raw_response" json:"raw_response"`
	Status      string    `gorm:"column:status;not null" json:"status"`
	Error       string    `gorm:"column:error" json:"error,omitempty"`
	LatencyMS   int64     `gorm:"column:latency_ms" json:"latency_ms"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
}

func (ModelExchange) TableName() string { return "model_exchanges" }
