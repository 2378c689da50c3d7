package service

import (
	"context"
	"fmt"
	"strings"

	"resource-tracker/internal/events"
	"resource-tracker/internal/metrics"
	"resource-tracker/internal/model"
	"resource-tracker/internal/repository"
	"resource-tracker/internal/tracing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultResourceTypes are created on startup when missing.
var DefaultResourceTypes = []string{"equipment", "vehicle", "security device"}

// --- DTOs ---

type ResourceRequestDTO struct {
	Name        string `json:"name" form:"name" binding:"required,max=255"`
	Description string `json:"description" form:"description"`
	TypeID      string `json:"type_id" form:"type_id" binding:"required,uuid"`
	Location    string `json:"location" form:"location" binding:"max=255"`
	Status      string `json:"status" form:"status" binding:"max=50"`
	Price       string `json:"price" form:"price" binding:"required"`
	Quantity    int    `json:"quantity" form:"quantity" binding:"gte=0,max=2147483647"` // ignored on update
	ImageURL    string `json:"image_url" form:"image_url" binding:"omitempty,url"`
}

type ReceiveStockRequest struct {
	Quantity int `json:"quantity" form:"quantity" binding:"required,gt=0,max=2147483647"`
}

type ResourceResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	TypeID      string          `json:"type_id"`
	TypeName    string          `json:"type_name"`
	Location    string          `json:"location"`
	Status      string          `json:"status"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	ImageURL    *string         `json:"image_url"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

type ResourceTypeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// --- Interface ---

type ResourceService interface {
	List(ctx context.Context, page, limit int, search string) ([]ResourceResponse, int64, error)
	Get(ctx context.Context, id uuid.UUID) (ResourceResponse, error)
	Create(ctx context.Context, actor Actor, req ResourceRequestDTO) (ResourceResponse, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, req ResourceRequestDTO) (ResourceResponse, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
	Receive(ctx context.Context, actor Actor, id uuid.UUID, qty int) (ResourceResponse, error)
	ListTypes(ctx context.Context) ([]ResourceTypeResponse, error)
	SeedDefaultTypes(ctx context.Context) error
}

type resourceService struct {
	resourceRepo repository.ResourceRepository
	typeRepo     repository.ResourceTypeRepository
	requestRepo  repository.RequestRepository
	movementRepo repository.StockMovementRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	publisher    events.Publisher
	log          *zap.Logger
}

func NewResourceService(
	resourceRepo repository.ResourceRepository,
	typeRepo repository.ResourceTypeRepository,
	requestRepo repository.RequestRepository,
	movementRepo repository.StockMovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	publisher events.Publisher,
	log *zap.Logger,
) ResourceService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &resourceService{
		resourceRepo: resourceRepo,
		typeRepo:     typeRepo,
		requestRepo:  requestRepo,
		movementRepo: movementRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		publisher:    publisher,
		log:          log,
	}
}

func (s *resourceService) List(ctx context.Context, page, limit int, search string) ([]ResourceResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	resources, total, err := s.resourceRepo.List(ctx, page, limit, search)
	if err != nil {
		return nil, 0, err
	}

	res := make([]ResourceResponse, 0, len(resources))
	for i := range resources {
		res = append(res, mapResourceToResponse(&resources[i]))
	}
	return res, total, nil
}

func (s *resourceService) Get(ctx context.Context, id uuid.UUID) (ResourceResponse, error) {
	resource, err := s.resourceRepo.FindByID(ctx, id)
	if err != nil {
		return ResourceResponse{}, notFound(err)
	}
	return mapResourceToResponse(resource), nil
}

func (s *resourceService) Create(ctx context.Context, actor Actor, req ResourceRequestDTO) (ResourceResponse, error) {
	if !validQuantity(req.Quantity) {
		return ResourceResponse{}, ErrInvalidQuantity
	}
	resource := model.Resource{Quantity: req.Quantity}
	if err := s.fill(ctx, &resource, req); err != nil {
		return ResourceResponse{}, err
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.resourceRepo.Create(txCtx, &resource); err != nil {
			return fmt.Errorf("failed to create resource: %w", err)
		}

		if resource.Quantity > 0 {
			movement := &model.StockMovement{
				ResourceID:      resource.ID,
				Kind:            model.MovementReceive,
				QuantityChanged: resource.Quantity,
				QuantityAfter:   resource.Quantity,
				ActorID:         actor.ptr(),
			}
			if err := s.movementRepo.Create(txCtx, movement); err != nil {
				return fmt.Errorf("failed to record stock movement: %w", err)
			}
		}

		audit := auditEntry(actor, model.ActionCreateResource, resource.ID.String(), resource.Name, req)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return ResourceResponse{}, err
	}

	return s.Get(ctx, resource.ID)
}

// Update changes the descriptive fields of a resource. The quantity in req
// is ignored: stock only moves through receive, reserve and restore.
func (s *resourceService) Update(ctx context.Context, actor Actor, id uuid.UUID, req ResourceRequestDTO) (ResourceResponse, error) {
	resource, err := s.resourceRepo.FindByID(ctx, id)
	if err != nil {
		return ResourceResponse{}, notFound(err)
	}
	if err := s.fill(ctx, resource, req); err != nil {
		return ResourceResponse{}, err
	}
	resource.Type = nil

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.resourceRepo.Update(txCtx, resource); err != nil {
			return fmt.Errorf("failed to update resource: %w", err)
		}

		audit := auditEntry(actor, model.ActionUpdateResource, resource.ID.String(), resource.Name, req)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return ResourceResponse{}, err
	}

	return s.Get(ctx, resource.ID)
}

// Delete soft-deletes a resource. Resources with pending or
// manager_approved requests are kept so their reservation can still be
// concluded or restored.
func (s *resourceService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		resource, err := s.resourceRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFound(err)
		}

		open, err := s.requestRepo.CountOpenForResource(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to count open requests: %w", err)
		}
		if open > 0 {
			return ErrResourceInUse
		}

		if err := s.resourceRepo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete resource: %w", err)
		}

		audit := auditEntry(actor, model.ActionDeleteResource, resource.ID.String(), resource.Name, map[string]interface{}{
			"quantity": resource.Quantity,
		})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
}

// Receive registers an inbound shipment of qty units.
func (s *resourceService) Receive(ctx context.Context, actor Actor, id uuid.UUID, qty int) (ResourceResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "ResourceService.Receive")
	defer span.End()

	if qty <= 0 || !validQuantity(qty) {
		return ResourceResponse{}, ErrInvalidQuantity
	}

	var after int
	var name string
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		resource, err := s.resourceRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFound(err)
		}
		if !validQuantity(resource.Quantity + qty) {
			return ErrInvalidQuantity
		}
		if err := s.resourceRepo.Increment(txCtx, id, qty); err != nil {
			return fmt.Errorf("failed to receive stock: %w", notFound(err))
		}
		after = resource.Quantity + qty
		name = resource.Name

		movement := &model.StockMovement{
			ResourceID:      id,
			Kind:            model.MovementReceive,
			QuantityChanged: qty,
			QuantityAfter:   after,
			ActorID:         actor.ptr(),
		}
		if err := s.movementRepo.Create(txCtx, movement); err != nil {
			return fmt.Errorf("failed to record stock movement: %w", err)
		}

		audit := auditEntry(actor, model.ActionReceiveStock, id.String(), resource.Name, map[string]interface{}{
			"quantity":     qty,
			"new_quantity": after,
		})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return ResourceResponse{}, err
	}

	metrics.StockUnitsReceived.Add(float64(qty))
	evt := events.New(events.StockReceived, id.String(), map[string]interface{}{
		"resource_name": name,
		"quantity":      qty,
		"new_quantity":  after,
		"received_by":   actor.Name,
	})
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("event publish failed", zap.String("event", evt.Type), zap.Error(err))
	}

	return s.Get(ctx, id)
}

func (s *resourceService) ListTypes(ctx context.Context) ([]ResourceTypeResponse, error) {
	types, err := s.typeRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]ResourceTypeResponse, 0, len(types))
	for _, t := range types {
		res = append(res, ResourceTypeResponse{ID: t.ID.String(), Name: t.Name})
	}
	return res, nil
}

func (s *resourceService) SeedDefaultTypes(ctx context.Context) error {
	for _, name := range DefaultResourceTypes {
		if _, err := s.typeRepo.FindOrCreate(ctx, name); err != nil {
			return fmt.Errorf("failed to seed resource type '%s': %w", name, err)
		}
	}
	return nil
}

// fill copies the validated descriptive fields of req onto resource.
func (s *resourceService) fill(ctx context.Context, resource *model.Resource, req ResourceRequestDTO) error {
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil || price.IsNegative() {
		return ErrInvalidPrice
	}

	typeID, err := uuid.Parse(req.TypeID)
	if err != nil {
		return ErrInvalidResourceType
	}
	if _, err := s.typeRepo.FindByID(ctx, typeID); err != nil {
		if notFound(err) == ErrNotFound {
			return ErrInvalidResourceType
		}
		return err
	}

	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = model.ResourceStatusAvailable
	}

	resource.Name = strings.TrimSpace(req.Name)
	resource.Description = req.Description
	resource.TypeID = typeID
	resource.Location = req.Location
	resource.Status = status
	resource.Price = price.Round(2)
	resource.ImageURL = nil
	if url := strings.TrimSpace(req.ImageURL); url != "" {
		resource.ImageURL = &url
	}
	return nil
}

func mapResourceToResponse(r *model.Resource) ResourceResponse {
	res := ResourceResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		TypeID:      r.TypeID.String(),
		Location:    r.Location,
		Status:      r.Status,
		Price:       r.Price,
		Quantity:    r.Quantity,
		ImageURL:    r.ImageURL,
		CreatedAt:   formatTime(r.CreatedAt),
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
	if r.Type != nil {
		res.TypeName = r.Type.Name
	}
	return res
}
