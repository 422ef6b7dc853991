package domain

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Registry records. These mirror the dataset/datastore catalog the matching
// pipeline consumes; the orchestrator reads them but never mutates them.

type Dataset struct {
	ID               int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string         `gorm:"column:name;not null" json:"name"`
	Description      string         `gorm:"column:description" json:"description"`
	DataStructure    string         `gorm:"column:data_structure" json:"data_structure"`
	GrowthRate       string         `gorm:"column:growth_rate" json:"growth_rate"`
	AccessPatterns   string         `gorm:"column:access_patterns" json:"access_patterns"`
	QueryComplexity  string         `gorm:"column:query_complexity" json:"query_complexity"`
	EstimatedSizeGB  float64        `gorm:"column:estimated_size_gb" json:"estimated_size_gb"`
	AvgQueryTimeMS   float64        `gorm:"column:avg_query_time_ms" json:"avg_query_time_ms"`
	QueriesPerDay    int64          `gorm:"column:queries_per_day" json:"queries_per_day"`
	Properties       datatypes.JSON `gorm:"column:properties;type:jsonb" json:"properties,omitempty"`
	SampleData       string         `gorm:"column:sample_data" json:"sample_data,omitempty"`
	CurrentDatastore *int64         `gorm:"column:current_datastore_id" json:"current_datastore_id,omitempty"`

	Queries []DatasetQuery `gorm:"foreignKey:DatasetID" json:"queries,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Dataset) TableName() string { return "datasets" }

type DatasetQuery struct {
	ID                 int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	DatasetID          int64   `gorm:"column:dataset_id;not null;index" json:"dataset_id"`
	Name               string  `gorm:"column:name;not null" json:"name"`
	QueryType          string  `gorm:"column:query_type" json:"query_type"`
	Frequency          string  `gorm:"column:frequency" json:"frequency"`
	AvgExecutionTimeMS float64 `gorm:"column:avg_execution_time_ms" json:"avg_execution_time_ms"`
	Description        string  `gorm:"column:description" json:"description"`
}

func (DatasetQuery) TableName() string { return "dataset_queries" }

type Datastore struct {
	ID                int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string         `gorm:"column:name;not null" json:"name"`
	Type              string         `gorm:"column:type" json:"type"`
	System            string         `gorm:"column:system" json:"system"`
	Description       string         `gorm:"column:description" json:"description"`
	IsActive          bool           `gorm:"column:is_active;not null;default:true" json:"is_active"`
	MaxConnections    int            `gorm:"column:max_connections" json:"max_connections"`
	AvgResponseTimeMS float64        `gorm:"column:avg_response_time_ms" json:"avg_response_time_ms"`
	StorageCapacityGB float64        `gorm:"column:storage_capacity_gb" json:"storage_capacity_gb"`
	Characteristics   datatypes.JSON `gorm:"column:characteristics;type:jsonb" json:"characteristics,omitempty"`
	// ConnectionInfo holds credentials. It is never serialized as-is; use
	// MaskedConnectionInfo for anything user- or model-facing.
	ConnectionInfo string `gorm:"column:connection_info" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Datastore) TableName() string { return "datastores" }

// MaskedConnectionInfo hides everything after the scheme, keeping just enough
// to tell which backend the record points at.
func (d Datastore) MaskedConnectionInfo() string {
	info := strings.TrimSpace(d.ConnectionInfo)
	if info == "" {
		return ""
	}
	if idx := strings.Index(info, "://"); idx != -1 {
		return info[:idx+3] + "***"
	}
	return "***"
}
