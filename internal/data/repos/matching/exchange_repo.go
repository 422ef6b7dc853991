package matching

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ddrslabs/matching-backend/internal/domain"
	"github.com/ddrslabs/matching-backend/internal/pkg/dbctx"
	"github.com/ddrslabs/matching-backend/internal/platform/logger"
)

// ExchangeRepo is append-only: exchanges are audit records and are never
// updated or deleted by the orchestrator.
type ExchangeRepo interface {
	Append(dbc dbctx.Context, exchanges []*domain.ModelExchange) error
	ListByRequest(dbc dbctx.Context, requestID uuid.UUID) ([]*domain.ModelExchange, error)
}

type exchangeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExchangeRepo(db *gorm.DB, baseLog *logger.Logger) ExchangeRepo {
	return &exchangeRepo{
		db:  db,
		log: baseLog.With("repo", "ExchangeRepo"),
	}
}

func (r *exchangeRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *exchangeRepo) Append(dbc dbctx.Context, exchanges []*domain.ModelExchange) error {
	if len(exchanges) == 0 {
		return nil
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Create(&exchanges).Error
}

func (r *exchangeRepo) ListByRequest(dbc dbctx.Context, requestID uuid.UUID) ([]*domain.ModelExchange, error) {
	var out []*domain.ModelExchange
	if requestID == uuid.Nil {
		return out, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("request_id = ?", requestID).
		Order("attempt ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
