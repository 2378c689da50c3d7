package repository

import (
	"context"

	"resource-tracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StockMovementRepository interface {
	Create(ctx context.Context, movement *model.StockMovement) error
	ListByResource(ctx context.Context, resourceID uuid.UUID, limit int) ([]model.StockMovement, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.StockMovement, error)
}

type stockMovementRepository struct {
	db *gorm.DB
}

func NewStockMovementRepository(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepository{db: db}
}

func (r *stockMovementRepository) Create(ctx context.Context, movement *model.StockMovement) error {
	return GetDB(ctx, r.db).Create(movement).Error
}

func (r *stockMovementRepository) ListByResource(ctx context.Context, resourceID uuid.UUID, limit int) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	db := GetDB(ctx, r.db).Where("resource_id = ?", resourceID).Order("created_at desc")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *stockMovementRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	if err := GetDB(ctx, r.db).Where("request_id = ?", requestID).Order("created_at asc").Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
