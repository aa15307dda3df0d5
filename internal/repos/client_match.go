package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/waypointcpa/taskpool-backend/internal/logger"
	pkgerrors "github.com/waypointcpa/taskpool-backend/internal/pkg/errors"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

type ClientMatchRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, match *types.ClientMatch) (*types.ClientMatch, error)
	GetByID(ctx context.Context, tx *gorm.DB, matchID uuid.UUID) (*types.ClientMatch, error)
	GetByInboundItem(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (*types.ClientMatch, error)
	Verify(ctx context.Context, tx *gorm.DB, matchID, clientID, verifiedBy uuid.UUID) (*types.ClientMatch, error)
}

type clientMatchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClientMatchRepo(db *gorm.DB, baseLog *logger.Logger) ClientMatchRepo {
	repoLog := baseLog.With("repo", "ClientMatchRepo")
	return &clientMatchRepo{db: db, log: repoLog}
}

func (mr *clientMatchRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return mr.db
}

func (mr *clientMatchRepo) Upsert(ctx context.Context, tx *gorm.DB, match *types.ClientMatch) (*types.ClientMatch, error) {
	if match == nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	if err := mr.handle(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "inbound_item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"client_id", "match_type", "confidence", "reason",
				"alternatives", "search_terms", "updated_at",
			}),
		}).
		Create(match).Error; err != nil {
		return nil, err
	}
	return match, nil
}

func (mr *clientMatchRepo) GetByID(ctx context.Context, tx *gorm.DB, matchID uuid.UUID) (*types.ClientMatch, error) {
	var match types.ClientMatch
	if err := mr.handle(tx).WithContext(ctx).
		Where("id = ?", matchID).
		First(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &match, nil
}

func (mr *clientMatchRepo) GetByInboundItem(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (*types.ClientMatch, error) {
	var match types.ClientMatch
	if err := mr.handle(tx).WithContext(ctx).
		Where("inbound_item_id = ?", itemID).
		First(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &match, nil
}

// Verify overwrites a computed match with a human decision: the chosen client,
// confidence 1.0, match_type manual.
func (mr *clientMatchRepo) Verify(ctx context.Context, tx *gorm.DB, matchID, clientID, verifiedBy uuid.UUID) (*types.ClientMatch, error) {
	handle := mr.handle(tx).WithContext(ctx)
	res := handle.Model(&types.ClientMatch{}).
		Where("id = ?", matchID).
		Updates(map[string]interface{}{
			"client_id":   clientID,
			"match_type":  types.MatchTypeManual,
			"confidence":  1.0,
			"is_verified": true,
			"verified_by": verifiedBy,
			"reason":      "manually verified",
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.ErrNotFound
	}
	return mr.GetByID(ctx, tx, matchID)
}
