package service

import (
	"context"
	"errors"
	"fmt"

	"resource-tracker/internal/approval"
	"resource-tracker/internal/events"
	"resource-tracker/internal/metrics"
	"resource-tracker/internal/model"
	"resource-tracker/internal/repository"
	"resource-tracker/internal/tracing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateWriteOffRequest struct {
	Quantity       int    `json:"quantity" form:"quantity" binding:"required,gt=0,max=2147483647"`
	IdempotencyKey string `json:"-" form:"-"`
}

type RequestListFilter struct {
	Status string // one RequestStatus or empty for all
	Page   int
	Limit  int
}

type WriteOffRequestResponse struct {
	ID            string          `json:"id"`
	ResourceID    string          `json:"resource_id"`
	ResourceName  string          `json:"resource_name"`
	RequestedBy   string          `json:"requested_by"`
	RequesterName string          `json:"requester_name"`
	Quantity      int             `json:"quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Status        string          `json:"status"`
	ManagerID     *string         `json:"manager_id"`
	ManagerName   string          `json:"manager_name,omitempty"`
	AdminID       *string         `json:"admin_id"`
	AdminName     string          `json:"admin_name,omitempty"`
	Version       int             `json:"version"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

// SubmissionGuard claims client supplied keys so a retried submission is
// refused instead of reserving stock twice.
type SubmissionGuard interface {
	Claim(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
}

// --- Interface ---

type RequestService interface {
	Create(ctx context.Context, actor Actor, resourceID uuid.UUID, req CreateWriteOffRequest) (WriteOffRequestResponse, error)
	Approve(ctx context.Context, actor Actor, requestID uuid.UUID) (WriteOffRequestResponse, error)
	Reject(ctx context.Context, actor Actor, requestID uuid.UUID) (WriteOffRequestResponse, error)
	Get(ctx context.Context, requestID uuid.UUID) (WriteOffRequestResponse, error)
	List(ctx context.Context, filter RequestListFilter) ([]WriteOffRequestResponse, int64, error)
	PendingCount(ctx context.Context, role string) (int64, error)
	Threshold() decimal.Decimal
}

type requestService struct {
	resourceRepo repository.ResourceRepository
	requestRepo  repository.RequestRepository
	movementRepo repository.StockMovementRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	machine      *approval.Machine
	publisher    events.Publisher
	guard        SubmissionGuard
	log          *zap.Logger
}

func NewRequestService(
	resourceRepo repository.ResourceRepository,
	requestRepo repository.RequestRepository,
	movementRepo repository.StockMovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	machine *approval.Machine,
	publisher events.Publisher,
	guard SubmissionGuard,
	log *zap.Logger,
) RequestService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &requestService{
		resourceRepo: resourceRepo,
		requestRepo:  requestRepo,
		movementRepo: movementRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		machine:      machine,
		publisher:    publisher,
		guard:        guard,
		log:          log,
	}
}

func (s *requestService) Threshold() decimal.Decimal {
	return s.machine.Threshold()
}

// Create reserves req.Quantity units of the resource and opens a pending
// write-off request for them. Stock is taken out now, not at final approval.
func (s *requestService) Create(ctx context.Context, actor Actor, resourceID uuid.UUID, req CreateWriteOffRequest) (WriteOffRequestResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "RequestService.Create")
	defer span.End()

	if req.Quantity <= 0 || !validQuantity(req.Quantity) {
		metrics.WriteOffRequestsFailed.WithLabelValues("invalid_quantity").Inc()
		return WriteOffRequestResponse{}, ErrInvalidQuantity
	}

	claimed, err := s.claim(ctx, actor, req.IdempotencyKey)
	if err != nil {
		metrics.WriteOffRequestsFailed.WithLabelValues("duplicate").Inc()
		return WriteOffRequestResponse{}, err
	}

	var created model.ResourceRequest
	var resourceName string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		resource, err := s.resourceRepo.FindByIDForUpdate(txCtx, resourceID)
		if err != nil {
			return notFound(err)
		}
		resourceName = resource.Name

		if req.Quantity > resource.Quantity {
			return ErrInsufficientStock
		}
		ok, err := s.resourceRepo.Decrement(txCtx, resource.ID, req.Quantity)
		if err != nil {
			return fmt.Errorf("failed to reserve stock: %w", err)
		}
		if !ok {
			return ErrInsufficientStock
		}

		created = model.ResourceRequest{
			ResourceID:  resource.ID,
			RequestedBy: actor.ID,
			Quantity:    req.Quantity,
			TotalValue:  resource.Price.Mul(decimal.NewFromInt(int64(req.Quantity))),
			Status:      model.RequestPending,
		}
		if err := s.requestRepo.Create(txCtx, &created); err != nil {
			return fmt.Errorf("failed to create write-off request: %w", err)
		}

		movement := &model.StockMovement{
			ResourceID:      resource.ID,
			RequestID:       &created.ID,
			Kind:            model.MovementReserve,
			QuantityChanged: -req.Quantity,
			QuantityAfter:   resource.Quantity - req.Quantity,
			ActorID:         actor.ptr(),
		}
		if err := s.movementRepo.Create(txCtx, movement); err != nil {
			return fmt.Errorf("failed to record stock movement: %w", err)
		}

		audit := auditEntry(actor, model.ActionRequestWriteOff, created.ID.String(), resource.Name, map[string]interface{}{
			"resource_id": resource.ID,
			"quantity":    req.Quantity,
			"total_value": created.TotalValue,
		})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		if claimed {
			s.release(ctx, actor, req.IdempotencyKey)
		}
		metrics.WriteOffRequestsFailed.WithLabelValues(failureReason(err)).Inc()
		return WriteOffRequestResponse{}, err
	}

	metrics.WriteOffRequestsTotal.Inc()
	s.publish(ctx, events.New(events.RequestCreated, created.ID.String(), map[string]interface{}{
		"resource_id":   created.ResourceID.String(),
		"resource_name": resourceName,
		"quantity":      created.Quantity,
		"total_value":   created.TotalValue.StringFixed(2),
		"status":        string(created.Status),
		"requested_by":  actor.Name,
	}))

	return s.Get(ctx, created.ID)
}

// Approve moves the request one step forward according to the approval
// rules for the actor's role. Stock is not touched: it was reserved at
// creation and the reservation becomes the final write-off.
func (s *requestService) Approve(ctx context.Context, actor Actor, requestID uuid.UUID) (WriteOffRequestResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "RequestService.Approve")
	defer span.End()

	var decided model.ResourceRequest
	var from model.RequestStatus
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.requestRepo.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			return notFound(err)
		}
		from = req.Status

		decision, err := s.machine.Approve(req.Status, approval.Actor(actor.Role), req.TotalValue)
		if err != nil {
			return err
		}
		if err := s.applyDecision(txCtx, req, decision, actor); err != nil {
			return err
		}

		audit := auditEntry(actor, model.ActionApproveRequest, req.ID.String(), "", map[string]interface{}{
			"from":        from,
			"to":          req.Status,
			"total_value": req.TotalValue,
		})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		decided = *req
		return nil
	})
	if err != nil {
		return WriteOffRequestResponse{}, err
	}

	metrics.RequestDecisionsTotal.WithLabelValues(string(decided.Status), actor.Role).Inc()
	evtType := events.RequestApproved
	if decided.Status == model.RequestManagerApproved {
		evtType = events.RequestManagerApproved
	}
	s.publish(ctx, events.New(evtType, decided.ID.String(), map[string]interface{}{
		"from":        string(from),
		"status":      string(decided.Status),
		"total_value": decided.TotalValue.StringFixed(2),
		"decided_by":  actor.Name,
		"role":        actor.Role,
	}))

	return s.Get(ctx, decided.ID)
}

// Reject closes the request and gives the reserved quantity back to the
// resource in the same transaction. Rejecting twice returns
// approval.ErrAlreadyRejected and changes nothing.
func (s *requestService) Reject(ctx context.Context, actor Actor, requestID uuid.UUID) (WriteOffRequestResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "RequestService.Reject")
	defer span.End()

	var decided model.ResourceRequest
	var from model.RequestStatus
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.requestRepo.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			return notFound(err)
		}
		from = req.Status

		decision, err := s.machine.Reject(req.Status, approval.Actor(actor.Role))
		if err != nil {
			return err
		}
		if err := s.applyDecision(txCtx, req, decision, actor); err != nil {
			return err
		}

		if decision.RestoreStock {
			if err := s.restore(txCtx, req, actor); err != nil {
				return err
			}
		}

		audit := auditEntry(actor, model.ActionRejectRequest, req.ID.String(), "", map[string]interface{}{
			"from":     from,
			"restored": req.Quantity,
		})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		decided = *req
		return nil
	})
	if err != nil {
		return WriteOffRequestResponse{}, err
	}

	metrics.RequestDecisionsTotal.WithLabelValues(string(decided.Status), actor.Role).Inc()
	metrics.StockUnitsRestored.Add(float64(decided.Quantity))
	s.publish(ctx, events.New(events.RequestRejected, decided.ID.String(), map[string]interface{}{
		"from":        string(from),
		"status":      string(decided.Status),
		"resource_id": decided.ResourceID.String(),
		"restored":    decided.Quantity,
		"decided_by":  actor.Name,
		"role":        actor.Role,
	}))

	return s.Get(ctx, decided.ID)
}

// applyDecision stores the next status and deciders, guarded by the row
// version read under lock.
func (s *requestService) applyDecision(ctx context.Context, req *model.ResourceRequest, decision approval.Decision, actor Actor) error {
	version := req.Version
	req.Status = decision.Next
	if decision.RecordManager {
		req.ManagerID = actor.ptr()
	}
	if decision.RecordAdmin {
		req.AdminID = actor.ptr()
	}

	ok, err := s.requestRepo.UpdateDecision(ctx, req, version)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if !ok {
		return ErrConcurrentModification
	}
	return nil
}

func (s *requestService) restore(ctx context.Context, req *model.ResourceRequest, actor Actor) error {
	if err := s.resourceRepo.Increment(ctx, req.ResourceID, req.Quantity); err != nil {
		return fmt.Errorf("failed to restore stock: %w", notFound(err))
	}
	resource, err := s.resourceRepo.FindByIDForUpdate(ctx, req.ResourceID)
	if err != nil {
		return fmt.Errorf("failed to reload resource: %w", notFound(err))
	}

	movement := &model.StockMovement{
		ResourceID:      req.ResourceID,
		RequestID:       &req.ID,
		Kind:            model.MovementRestore,
		QuantityChanged: req.Quantity,
		QuantityAfter:   resource.Quantity,
		ActorID:         actor.ptr(),
	}
	if err := s.movementRepo.Create(ctx, movement); err != nil {
		return fmt.Errorf("failed to record stock movement: %w", err)
	}
	return nil
}

func (s *requestService) Get(ctx context.Context, requestID uuid.UUID) (WriteOffRequestResponse, error) {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return WriteOffRequestResponse{}, notFound(err)
	}
	return mapRequestToResponse(req), nil
}

func (s *requestService) List(ctx context.Context, filter RequestListFilter) ([]WriteOffRequestResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	repoFilter := repository.RequestFilter{Page: filter.Page, Limit: filter.Limit}
	if filter.Status != "" {
		repoFilter.Statuses = []model.RequestStatus{model.RequestStatus(filter.Status)}
	}

	reqs, total, err := s.requestRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, err
	}

	res := make([]WriteOffRequestResponse, 0, len(reqs))
	for i := range reqs {
		res = append(res, mapRequestToResponse(&reqs[i]))
	}
	return res, total, nil
}

// PendingCount is the number of requests waiting on a decision from role.
// Roles that cannot decide always get zero.
func (s *requestService) PendingCount(ctx context.Context, role string) (int64, error) {
	statuses := s.machine.AwaitingStatuses(approval.Actor(role))
	if len(statuses) == 0 {
		return 0, nil
	}
	return s.requestRepo.CountByStatuses(ctx, statuses)
}

func (s *requestService) claim(ctx context.Context, actor Actor, key string) (bool, error) {
	if s.guard == nil || key == "" {
		return false, nil
	}
	ok, err := s.guard.Claim(ctx, actor.ID.String(), key)
	if err != nil {
		// Redis being down must not block write-offs.
		s.log.Warn("idempotency guard unavailable", zap.Error(err))
		return false, nil
	}
	if !ok {
		return false, ErrDuplicateSubmission
	}
	return true, nil
}

func (s *requestService) release(ctx context.Context, actor Actor, key string) {
	if err := s.guard.Release(ctx, actor.ID.String(), key); err != nil {
		s.log.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func (s *requestService) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("event publish failed", zap.String("event", evt.Type), zap.Error(err))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

func mapRequestToResponse(r *model.ResourceRequest) WriteOffRequestResponse {
	res := WriteOffRequestResponse{
		ID:          r.ID.String(),
		ResourceID:  r.ResourceID.String(),
		RequestedBy: r.RequestedBy.String(),
		Quantity:    r.Quantity,
		TotalValue:  r.TotalValue,
		Status:      string(r.Status),
		Version:     r.Version,
		CreatedAt:   formatTime(r.CreatedAt),
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
	if r.Resource != nil {
		res.ResourceName = r.Resource.Name
	}
	if r.Requester != nil {
		res.RequesterName = r.Requester.Name
	}
	if r.ManagerID != nil {
		id := r.ManagerID.String()
		res.ManagerID = &id
	}
	if r.Manager != nil {
		res.ManagerName = r.Manager.Name
	}
	if r.AdminID != nil {
		id := r.AdminID.String()
		res.AdminID = &id
	}
	if r.Admin != nil {
		res.AdminName = r.Admin.Name
	}
	return res
}
