package matching

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ddrslabs/matching-backend/internal/domain"
	"github.com/ddrslabs/matching-backend/internal/pkg/dbctx"
	"github.com/ddrslabs/matching-backend/internal/platform/logger"
)

type RequestRepo interface {
	Create(dbc dbctx.Context, req *domain.MatchingRequest) (*domain.MatchingRequest, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.MatchingRequest, error)
	List(dbc dbctx.Context, limit int) ([]*domain.MatchingRequest, error)
	// TransitionStatus moves a request from one status to another in a single
	// guarded UPDATE. It reports false when the request was not in the
	// expected status, which keeps transitions monotonic under concurrency.
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, from, to string, updates map[string]interface{}) (bool, error)
}

type requestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRequestRepo(db *gorm.DB, baseLog *logger.Logger) RequestRepo {
	return &requestRepo{
		db:  db,
		log: baseLog.With("repo", "RequestRepo"),
	}
}

func (r *requestRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *requestRepo) Create(dbc dbctx.Context, req *domain.MatchingRequest) (*domain.MatchingRequest, error) {
	if req == nil {
		return nil, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

func (r *requestRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.MatchingRequest, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var req domain.MatchingRequest
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepo) List(dbc dbctx.Context, limit int) ([]*domain.MatchingRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*domain.MatchingRequest
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *requestRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, from, to string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil || from == "" || to == "" {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&domain.MatchingRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
