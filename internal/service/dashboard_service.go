package service

import (
	"context"
	"fmt"

	"resource-tracker/internal/repository"
)

const recentLogLimit = 10

type StatusCountResponse struct {
	Status string `json:"status"`
	Total  int64  `json:"total"`
}

type DashboardResponse struct {
	TotalResources   int64                 `json:"total_resources"`
	ResourcesByState []StatusCountResponse `json:"resources_by_status"`
	RecentLogs       []AuditLogResponse    `json:"recent_logs"`
	PendingRequests  int64                 `json:"pending_requests"`
	PendingUsers     int64                 `json:"pending_users,omitempty"`
}

type DashboardService interface {
	Summary(ctx context.Context, actor Actor) (DashboardResponse, error)
	PendingRequests(ctx context.Context, role string) (int64, error)
}

type dashboardService struct {
	resourceRepo repository.ResourceRepository
	userRepo     repository.UserRepository
	audit        AuditService
	requests     RequestService
}

func NewDashboardService(
	resourceRepo repository.ResourceRepository,
	userRepo repository.UserRepository,
	audit AuditService,
	requests RequestService,
) DashboardService {
	return &dashboardService{
		resourceRepo: resourceRepo,
		userRepo:     userRepo,
		audit:        audit,
		requests:     requests,
	}
}

func (s *dashboardService) Summary(ctx context.Context, actor Actor) (DashboardResponse, error) {
	var out DashboardResponse

	total, err := s.resourceRepo.Count(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to count resources: %w", err)
	}
	out.TotalResources = total

	byStatus, err := s.resourceRepo.CountByStatus(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to count resources by status: %w", err)
	}
	out.ResourcesByState = make([]StatusCountResponse, 0, len(byStatus))
	for _, row := range byStatus {
		out.ResourcesByState = append(out.ResourcesByState, StatusCountResponse{Status: row.Status, Total: row.Total})
	}

	if out.RecentLogs, err = s.audit.Recent(ctx, recentLogLimit); err != nil {
		return out, fmt.Errorf("failed to load recent logs: %w", err)
	}

	if out.PendingRequests, err = s.PendingRequests(ctx, actor.Role); err != nil {
		return out, err
	}

	if actor.IsAdmin() {
		if out.PendingUsers, err = s.userRepo.CountPendingApproval(ctx); err != nil {
			return out, fmt.Errorf("failed to count users awaiting approval: %w", err)
		}
	}
	return out, nil
}

// PendingRequests is the badge count: requests waiting on role.
func (s *dashboardService) PendingRequests(ctx context.Context, role string) (int64, error) {
	n, err := s.requests.PendingCount(ctx, role)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending requests: %w", err)
	}
	return n, nil
}
