package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/ddrslabs/matching-backend/internal/domain"
)

func SeedDataset(tb testing.TB, ctx context.Context, db *gorm.DB, name string) *domain.Dataset {
	tb.Helper()
	ds := &domain.Dataset{
		Name:            name,
		Description:     "test dataset",
		DataStructure:   "relational",
		GrowthRate:      "steady",
		AccessPatterns:  "read_heavy",
		QueryComplexity: "medium",
		EstimatedSizeGB: 12.5,
		AvgQueryTimeMS:  40,
		QueriesPerDay:   1000,
	}
	if err := db.WithContext(ctx).Create(ds).Error; err != nil {
		tb.Fatalf("seed dataset: %v", err)
	}
	return ds
}

func SeedDatasetQuery(tb testing.TB, ctx context.Context, db *gorm.DB, datasetID int64, name string) *domain.DatasetQuery {
	tb.Helper()
	q := &domain.DatasetQuery{
		DatasetID:          datasetID,
		Name:               name,
		QueryType:          "select",
		Frequency:          "hourly",
		AvgExecutionTimeMS: 25,
	}
	if err := db.WithContext(ctx).Create(q).Error; err != nil {
		tb.Fatalf("seed dataset query: %v", err)
	}
	return q
}

func SeedDatastore(tb testing.TB, ctx context.Context, db *gorm.DB, name string) *domain.Datastore {
	tb.Helper()
	st := &domain.Datastore{
		Name:              name,
		Type:              "relational",
		System:            "postgresql",
		Description:       "test datastore",
		IsActive:          true,
		MaxConnections:    200,
		AvgResponseTimeMS: 10,
		StorageCapacityGB: 500,
		ConnectionInfo:    "postgres://user:pw@localhost:5432/db",
	}
	if err := db.WithContext(ctx).Create(st).Error; err != nil {
		tb.Fatalf("seed datastore: %v", err)
	}
	return st
}
