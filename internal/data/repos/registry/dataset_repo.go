package registry

import (
	"gorm.io/gorm"

	"github.com/ddrslabs/matching-backend/internal/domain"
	"github.com/ddrslabs/matching-backend/internal/pkg/dbctx"
	"github.com/ddrslabs/matching-backend/internal/platform/logger"
)

type DatasetRepo interface {
	GetByIDs(dbc dbctx.Context, ids []int64) ([]*domain.Dataset, error)
	Create(dbc dbctx.Context, ds *domain.Dataset) (*domain.Dataset, error)
}

type datasetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatasetRepo(db *gorm.DB, baseLog *logger.Logger) DatasetRepo {
	return &datasetRepo{
		db:  db,
		log: baseLog.With("repo", "DatasetRepo"),
	}
}

func (r *datasetRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *datasetRepo) GetByIDs(dbc dbctx.Context, ids []int64) ([]*domain.Dataset, error) {
	var out []*domain.Dataset
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Preload("Queries").
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *datasetRepo) Create(dbc dbctx.Context, ds *domain.Dataset) (*domain.Dataset, error) {
	if ds == nil {
		return nil, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(ds).Error; err != nil {
		return nil, err
	}
	return ds, nil
}
