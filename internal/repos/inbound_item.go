package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waypointcpa/taskpool-backend/internal/logger"
	pkgerrors "github.com/waypointcpa/taskpool-backend/internal/pkg/errors"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

type InboundItemRepo interface {
	Create(ctx context.Context, tx *gorm.DB, item *types.InboundItem) (*types.InboundItem, error)
	GetByID(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (*types.InboundItem, error)
	GetBySource(ctx context.Context, tx *gorm.DB, sourceType, sourceID string) (*types.InboundItem, error)
}

type inboundItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInboundItemRepo(db *gorm.DB, baseLog *logger.Logger) InboundItemRepo {
	repoLog := baseLog.With("repo", "InboundItemRepo")
	return &inboundItemRepo{db: db, log: repoLog}
}

func (ir *inboundItemRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ir.db
}

func (ir *inboundItemRepo) Create(ctx context.Context, tx *gorm.DB, item *types.InboundItem) (*types.InboundItem, error) {
	if item == nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	if err := ir.handle(tx).WithContext(ctx).Create(item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkgerrors.ErrDuplicateSource
		}
		return nil, err
	}
	return item, nil
}

func (ir *inboundItemRepo) GetByID(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (*types.InboundItem, error) {
	var item types.InboundItem
	if err := ir.handle(tx).WithContext(ctx).
		Where("id = ?", itemID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (ir *inboundItemRepo) GetBySource(ctx context.Context, tx *gorm.DB, sourceType, sourceID string) (*types.InboundItem, error) {
	var item types.InboundItem
	if err := ir.handle(tx).WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}
