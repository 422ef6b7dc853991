package db

import (
	"gorm.io/gorm"

	"github.com/ddrslabs/matching-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Dataset{},
		&domain.DatasetQuery{},
		&domain.Datastore{},
		&domain.MatchingRequest{},
		&domain.Recommendation{},
		&domain.ModelExchange{},
	)
}

func (s *PostgresService) AutoMigrateAll() error {
	return AutoMigrateAll(s.db)
}
