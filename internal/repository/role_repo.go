package repository

import (
	"context"

	"resource-tracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
	FindByName(ctx context.Context, name string) (*model.Role, error)
	ListAll(ctx context.Context) ([]model.Role, error)
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
	FindOrCreateRole(ctx context.Context, role *model.Role) error
	FindOrCreatePermission(ctx context.Context, perm *model.Permission) error
	ReplacePermissions(ctx context.Context, roleID uuid.UUID, perms []model.Permission) error
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) ListAll(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions").Order("created_at asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions").Where("name = ?", roleName).First(&role).Error; err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		codes = append(codes, p.Code)
	}
	return codes, nil
}

func (r *roleRepository) FindOrCreateRole(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).
		Where("name = ?", role.Name).
		Attrs(model.Role{Description: role.Description, IsSystem: role.IsSystem}).
		FirstOrCreate(role).Error
}

// FindOrCreatePermission loads perm by code, creating it when missing. The
// display name and group of an existing row are refreshed.
func (r *roleRepository) FindOrCreatePermission(ctx context.Context, perm *model.Permission) error {
	db := GetDB(ctx, r.db)
	name, group := perm.Name, perm.Group
	if err := db.Where("code = ?", perm.Code).FirstOrCreate(perm).Error; err != nil {
		return err
	}
	if perm.Name == name && perm.Group == group {
		return nil
	}
	return db.Model(perm).Updates(map[string]interface{}{"name": name, "group": group}).Error
}

func (r *roleRepository) ReplacePermissions(ctx context.Context, roleID uuid.UUID, perms []model.Permission) error {
	db := GetDB(ctx, r.db)
	var role model.Role
	if err := db.First(&role, "id = ?", roleID).Error; err != nil {
		return err
	}
	return db.Model(&role).Association("Permissions").Replace(perms)
}
