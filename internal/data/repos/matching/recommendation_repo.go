package matching

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ddrslabs/matching-backend/internal/domain"
	"github.com/ddrslabs/matching-backend/internal/pkg/dbctx"
	"github.com/ddrslabs/matching-backend/internal/platform/logger"
)

type RecommendationRepo interface {
	CreateBatch(dbc dbctx.Context, recs []*domain.Recommendation) ([]*domain.Recommendation, error)
	ListByRequest(dbc dbctx.Context, requestID uuid.UUID) ([]*domain.Recommendation, error)
}

type recommendationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendationRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRepo {
	return &recommendationRepo{
		db:  db,
		log: baseLog.With("repo", "RecommendationRepo"),
	}
}

func (r *recommendationRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *recommendationRepo) CreateBatch(dbc dbctx.Context, recs []*domain.Recommendation) ([]*domain.Recommendation, error) {
	if len(recs) == 0 {
		return []*domain.Recommendation{}, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *recommendationRepo) ListByRequest(dbc dbctx.Context, requestID uuid.UUID) ([]*domain.Recommendation, error) {
	var out []*domain.Recommendation
	if requestID == uuid.Nil {
		return out, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("request_id = ?", requestID).
		Order("priority ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
