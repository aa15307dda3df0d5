package repos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waypointcpa/taskpool-backend/internal/logger"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

type ClientRepo interface {
	Create(ctx context.Context, tx *gorm.DB, clients []*types.Client) ([]*types.Client, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, clientIDs []uuid.UUID) ([]*types.Client, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) ([]*types.Client, error)
	GetByEmailDomain(ctx context.Context, tx *gorm.DB, domain string) ([]*types.Client, error)
	SearchByNameToken(ctx context.Context, tx *gorm.DB, token string) ([]*types.Client, error)
	SearchByPhoneDigits(ctx context.Context, tx *gorm.DB, digits string) ([]*types.Client, error)
	SearchByCompany(ctx context.Context, tx *gorm.DB, company string) ([]*types.Client, error)
	List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Client, error)
}

type clientRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClientRepo(db *gorm.DB, baseLog *logger.Logger) ClientRepo {
	repoLog := baseLog.With("repo", "ClientRepo")
	return &clientRepo{db: db, log: repoLog}
}

func (cr *clientRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return cr.db
}

func (cr *clientRepo) Create(ctx context.Context, tx *gorm.DB, clients []*types.Client) ([]*types.Client, error) {
	if len(clients) == 0 {
		return []*types.Client{}, nil
	}
	if err := cr.handle(tx).WithContext(ctx).Create(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (cr *clientRepo) GetByIDs(ctx context.Context, tx *gorm.DB, clientIDs []uuid.UUID) ([]*types.Client, error) {
	var results []*types.Client
	if len(clientIDs) == 0 {
		return results, nil
	}
	if err := cr.handle(tx).WithContext(ctx).
		Where("id IN ?", clientIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *clientRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) ([]*types.Client, error) {
	var results []*types.Client
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return results, nil
	}
	if err := cr.handle(tx).WithContext(ctx).
		Where("LOWER(email) = ?", email).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *clientRepo) GetByEmailDomain(ctx context.Context, tx *gorm.DB, domain string) ([]*types.Client, error) {
	var results []*types.Client
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return results, nil
	}
	if err := cr.handle(tx).WithContext(ctx).
		Where("LOWER(email) LIKE ?", "%@"+domain).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *clientRepo) SearchByNameToken(ctx context.Context, tx *gorm.DB, token string) ([]*types.Client, error) {
	var results []*types.Client
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return results, nil
	}
	pattern := "%" + token + "%"
	if err := cr.handle(tx).WithContext(ctx).
		Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", pattern, pattern).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *clientRepo) SearchByPhoneDigits(ctx context.Context, tx *gorm.DB, digits string) ([]*types.Client, error) {
	var results []*types.Client
	digits = strings.TrimSpace(digits)
	if digits == "" {
		return results, nil
	}
	pattern := "%" + digits + "%"
	if err := cr.handle(tx).WithContext(ctx).
		Where("phone LIKE ? OR alt_phone LIKE ?", pattern, pattern).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *clientRepo) SearchByCompany(ctx context.Context, tx *gorm.DB, company string) ([]*types.Client, error) {
	var results []*types.Client
	company = strings.ToLower(strings.TrimSpace(company))
	if company == "" {
		return results, nil
	}
	if err := cr.handle(tx).WithContext(ctx).
		Where("LOWER(company_name) LIKE ?", "%"+company+"%").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *clientRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Client, error) {
	var results []*types.Client
	if limit <= 0 {
		limit = 50
	}
	if err := cr.handle(tx).WithContext(ctx).
		Order("last_name ASC, first_name ASC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
