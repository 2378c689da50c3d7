package service

import (
	"context"
	"fmt"

	"resource-tracker/internal/model"
	"resource-tracker/internal/repository"
)

// --- DTOs ---

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
}

type roleService struct {
	repo      repository.RoleRepository
	txManager repository.TransactionManager
}

func NewRoleService(repo repository.RoleRepository, txManager repository.TransactionManager) RoleService {
	return &roleService{repo: repo, txManager: txManager}
}

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		perms := make([]PermissionResponse, 0, len(r.Permissions))
		for _, p := range r.Permissions {
			perms = append(perms, PermissionResponse{ID: p.ID.String(), Code: p.Code, Name: p.Name, Group: p.Group})
		}
		res = append(res, RoleResponse{
			ID:          r.ID.String(),
			Name:        r.Name,
			Description: r.Description,
			IsSystem:    r.IsSystem,
			Permissions: perms,
		})
	}
	return res, nil
}

func (s *roleService) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	codes, err := s.repo.GetPermissionsByRoleName(ctx, roleName)
	if err != nil {
		return nil, fmt.Errorf("role '%s' not found: %w", roleName, err)
	}
	return codes, nil
}

var defaultPermissions = []model.Permission{
	{Code: model.PermDashboardRead, Name: "View dashboard", Group: "dashboard"},
	{Code: model.PermResourcesRead, Name: "View resources", Group: "resources"},
	{Code: model.PermResourcesWrite, Name: "Create and edit resources", Group: "resources"},
	{Code: model.PermResourcesDelete, Name: "Remove resources", Group: "resources"},
	{Code: model.PermStockRequest, Name: "Request stock write-off", Group: "stock"},
	{Code: model.PermStockReceive, Name: "Register inbound stock", Group: "stock"},
	{Code: model.PermRequestsRead, Name: "View write-off requests", Group: "requests"},
	{Code: model.PermRequestsDecide, Name: "Approve or reject write-off requests", Group: "requests"},
	{Code: model.PermUsersRead, Name: "View users", Group: "users"},
	{Code: model.PermUsersWrite, Name: "Create users", Group: "users"},
	{Code: model.PermUsersApprove, Name: "Approve users", Group: "users"},
	{Code: model.PermUsersManage, Name: "Edit and remove users", Group: "users"},
	{Code: model.PermImagesSearch, Name: "Search resource images", Group: "images"},
	{Code: model.PermAuditRead, Name: "View access log", Group: "audit"},
}

var employeePermissions = []string{
	model.PermDashboardRead,
	model.PermResourcesRead,
	model.PermStockRequest,
	model.PermStockReceive,
	model.PermImagesSearch,
}

var managerPermissions = append(append([]string{}, employeePermissions...),
	model.PermResourcesWrite,
	model.PermRequestsRead,
	model.PermRequestsDecide,
	model.PermUsersRead,
	model.PermUsersWrite,
	model.PermAuditRead,
)

var adminPermissions = append(append([]string{}, managerPermissions...),
	model.PermResourcesDelete,
	model.PermUsersApprove,
	model.PermUsersManage,
)

// DefaultRolePermissions maps each built-in role to its capability codes.
var DefaultRolePermissions = map[string][]string{
	model.RoleEmployee: employeePermissions,
	model.RoleManager:  managerPermissions,
	model.RoleAdmin:    adminPermissions,
}

var roleDescriptions = map[string]string{
	model.RoleEmployee: "Requests write-offs and registers inbound stock",
	model.RoleManager:  "Manages resources and decides write-off requests",
	model.RoleAdmin:    "Full access, concludes high-value write-offs",
}

// SeedDefaultRolesAndPermissions creates the built-in permissions and roles
// and resets the built-in roles to their default capabilities.
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		permByCode := make(map[string]model.Permission, len(defaultPermissions))
		for _, def := range defaultPermissions {
			p := def
			if err := s.repo.FindOrCreatePermission(txCtx, &p); err != nil {
				return fmt.Errorf("failed to seed permission '%s': %w", p.Code, err)
			}
			permByCode[p.Code] = p
		}

		for _, name := range []string{model.RoleEmployee, model.RoleManager, model.RoleAdmin} {
			role := model.Role{Name: name, Description: roleDescriptions[name], IsSystem: true}
			if err := s.repo.FindOrCreateRole(txCtx, &role); err != nil {
				return fmt.Errorf("failed to seed role '%s': %w", name, err)
			}

			perms := make([]model.Permission, 0, len(DefaultRolePermissions[name]))
			for _, code := range DefaultRolePermissions[name] {
				perms = append(perms, permByCode[code])
			}
			if err := s.repo.ReplacePermissions(txCtx, role.ID, perms); err != nil {
				return fmt.Errorf("failed to assign permissions to '%s': %w", name, err)
			}
		}
		return nil
	})
}
