package repository

import (
	"context"

	"resource-tracker/internal/model"

	"gorm.io/gorm"
)

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AccessLog) error
	List(ctx context.Context, page, limit int) ([]model.AccessLog, int64, error)
	Recent(ctx context.Context, limit int) ([]model.AccessLog, error)
	ListByEntity(ctx context.Context, entityID string) ([]model.AccessLog, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AccessLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, page, limit int) ([]model.AccessLog, int64, error) {
	var logs []model.AccessLog
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.AccessLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := preloadUser(db).Order("created_at desc").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

func (r *auditRepository) Recent(ctx context.Context, limit int) ([]model.AccessLog, error) {
	var logs []model.AccessLog
	if err := preloadUser(GetDB(ctx, r.db)).Order("created_at desc").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *auditRepository) ListByEntity(ctx context.Context, entityID string) ([]model.AccessLog, error) {
	var logs []model.AccessLog
	if err := GetDB(ctx, r.db).Where("entity_id = ?", entityID).Order("created_at asc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// preloadUser keeps the author name of entries written by deleted users.
func preloadUser(db *gorm.DB) *gorm.DB {
	return db.Preload("User", func(db *gorm.DB) *gorm.DB { return db.Unscoped() })
}
