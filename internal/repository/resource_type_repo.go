package repository

import (
	"context"

	"resource-tracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ResourceTypeRepository interface {
	List(ctx context.Context) ([]model.ResourceType, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.ResourceType, error)
	FindOrCreate(ctx context.Context, name string) (*model.ResourceType, error)
}

type resourceTypeRepository struct {
	db *gorm.DB
}

func NewResourceTypeRepository(db *gorm.DB) ResourceTypeRepository {
	return &resourceTypeRepository{db: db}
}

func (r *resourceTypeRepository) List(ctx context.Context) ([]model.ResourceType, error) {
	var types []model.ResourceType
	if err := GetDB(ctx, r.db).Order("name asc").Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}

func (r *resourceTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ResourceType, error) {
	var t model.ResourceType
	if err := GetDB(ctx, r.db).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *resourceTypeRepository) FindOrCreate(ctx context.Context, name string) (*model.ResourceType, error) {
	t := model.ResourceType{Name: name}
	if err := GetDB(ctx, r.db).Where("name = ?", name).FirstOrCreate(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}
