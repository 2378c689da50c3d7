package repository

import (
	"context"

	"resource-tracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestFilter narrows the request listing. Zero values mean no filter.
type RequestFilter struct {
	Statuses    []model.RequestStatus
	RequestedBy *uuid.UUID
	ResourceID  *uuid.UUID
	Page        int
	Limit       int
}

type RequestRepository interface {
	Create(ctx context.Context, req *model.ResourceRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ResourceRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ResourceRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]model.ResourceRequest, int64, error)
	// UpdateDecision persists status and deciders if the row still carries
	// expectedVersion, bumping the version. It reports false on a lost race.
	UpdateDecision(ctx context.Context, req *model.ResourceRequest, expectedVersion int) (bool, error)
	CountByStatuses(ctx context.Context, statuses []model.RequestStatus) (int64, error)
	CountOpenForResource(ctx context.Context, resourceID uuid.UUID) (int64, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.ResourceRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

// withRelations preloads resources and users including soft-deleted rows so
// history keeps its names.
func withRelations(db *gorm.DB) *gorm.DB {
	unscoped := func(db *gorm.DB) *gorm.DB { return db.Unscoped() }
	return db.
		Preload("Resource", unscoped).
		Preload("Requester", unscoped).
		Preload("Manager", unscoped).
		Preload("Admin", unscoped)
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ResourceRequest, error) {
	var req model.ResourceRequest
	if err := withRelations(GetDB(ctx, r.db)).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ResourceRequest, error) {
	var req model.ResourceRequest
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]model.ResourceRequest, int64, error) {
	var reqs []model.ResourceRequest
	var total int64

	db := GetDB(ctx, r.db).Model(&model.ResourceRequest{})
	if len(filter.Statuses) > 0 {
		db = db.Where("status IN ?", filter.Statuses)
	}
	if filter.RequestedBy != nil {
		db = db.Where("requested_by = ?", *filter.RequestedBy)
	}
	if filter.ResourceID != nil {
		db = db.Where("resource_id = ?", *filter.ResourceID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		db = db.Offset((page - 1) * filter.Limit).Limit(filter.Limit)
	}
	if err := withRelations(db).Order("created_at desc").Find(&reqs).Error; err != nil {
		return nil, 0, err
	}

	return reqs, total, nil
}

func (r *requestRepository) UpdateDecision(ctx context.Context, req *model.ResourceRequest, expectedVersion int) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.ResourceRequest{}).
		Where("id = ? AND version = ?", req.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":     req.Status,
			"manager_id": req.ManagerID,
			"admin_id":   req.AdminID,
			"version":    expectedVersion + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	req.Version = expectedVersion + 1
	return true, nil
}

func (r *requestRepository) CountByStatuses(ctx context.Context, statuses []model.RequestStatus) (int64, error) {
	var total int64
	if len(statuses) == 0 {
		return 0, nil
	}
	err := GetDB(ctx, r.db).Model(&model.ResourceRequest{}).Where("status IN ?", statuses).Count(&total).Error
	return total, err
}

func (r *requestRepository) CountOpenForResource(ctx context.Context, resourceID uuid.UUID) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.ResourceRequest{}).
		Where("resource_id = ? AND status IN ?", resourceID,
			[]model.RequestStatus{model.RequestPending, model.RequestManagerApproved}).
		Count(&total).Error
	return total, err
}
