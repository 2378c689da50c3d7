package repository

import (
	"context"
	"strings"

	"resource-tracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatusCount is one row of the per-status resource breakdown.
type StatusCount struct {
	Status string `json:"status"`
	Total  int64  `json:"total"`
}

type ResourceRepository interface {
	Create(ctx context.Context, resource *model.Resource) error
	Update(ctx context.Context, resource *model.Resource) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Resource, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Resource, error)
	List(ctx context.Context, page, limit int, search string) ([]model.Resource, int64, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	// Decrement takes qty units out of the resource only if at least qty are
	// available. It reports false when the guard did not match.
	Decrement(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	Increment(ctx context.Context, id uuid.UUID, qty int) error
}

type resourceRepository struct {
	db *gorm.DB
}

func NewResourceRepository(db *gorm.DB) ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) Create(ctx context.Context, resource *model.Resource) error {
	return GetDB(ctx, r.db).Create(resource).Error
}

// Update writes the descriptive columns only; quantity moves through
// Decrement and Increment.
func (r *resourceRepository) Update(ctx context.Context, resource *model.Resource) error {
	return GetDB(ctx, r.db).Model(resource).
		Select("name", "description", "type_id", "location", "status", "price", "image_url").
		Updates(resource).Error
}

func (r *resourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Resource{}).Error
}

func (r *resourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	var resource model.Resource
	if err := GetDB(ctx, r.db).Preload("Type").First(&resource, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &resource, nil
}

func (r *resourceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	var resource model.Resource
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&resource, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &resource, nil
}

func (r *resourceRepository) List(ctx context.Context, page, limit int, search string) ([]model.Resource, int64, error) {
	var resources []model.Resource
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Resource{})
	if search = strings.TrimSpace(search); search != "" {
		db = db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Type").Order("created_at desc").Offset(offset).Limit(limit).Find(&resources).Error; err != nil {
		return nil, 0, err
	}

	return resources, total, nil
}

func (r *resourceRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.Resource{}).Count(&total).Error
	return total, err
}

func (r *resourceRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := GetDB(ctx, r.db).Model(&model.Resource{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Order("status asc").
		Scan(&rows).Error
	return rows, err
}

func (r *resourceRepository) Decrement(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Resource{}).
		Where("id = ? AND quantity >= ?", id, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *resourceRepository) Increment(ctx context.Context, id uuid.UUID, qty int) error {
	res := GetDB(ctx, r.db).Model(&model.Resource{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
