package registry

import (
	"gorm.io/gorm"

	"github.com/ddrslabs/matching-backend/internal/domain"
	"github.com/ddrslabs/matching-backend/internal/pkg/dbctx"
	"github.com/ddrslabs/matching-backend/internal/platform/logger"
)

type DatastoreRepo interface {
	GetByIDs(dbc dbctx.Context, ids []int64) ([]*domain.Datastore, error)
	Create(dbc dbctx.Context, ds *domain.Datastore) (*domain.Datastore, error)
}

type datastoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatastoreRepo(db *gorm.DB, baseLog *logger.Logger) DatastoreRepo {
	return &datastoreRepo{
		db:  db,
		log: baseLog.With("repo", "DatastoreRepo"),
	}
}

func (r *datastoreRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *datastoreRepo) GetByIDs(dbc dbctx.Context, ids []int64) ([]*domain.Datastore, error) {
	var out []*domain.Datastore
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *datastoreRepo) Create(dbc dbctx.Context, ds *domain.Datastore) (*domain.Datastore, error) {
	if ds == nil {
		return nil, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(ds).Error; err != nil {
		return nil, err
	}
	return ds, nil
}
