package handler

import (
	"net/http"

	"resource-tracker/internal/middleware"
	"resource-tracker/internal/model"
	"resource-tracker/internal/service"
	"resource-tracker/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type RoleHandler struct {
	roleService service.RoleService
	perm        *middleware.PermissionResolver
	log         *zap.Logger
}

func NewRoleHandler(roleService service.RoleService, perm *middleware.PermissionResolver, log *zap.Logger) *RoleHandler {
	return &RoleHandler{roleService: roleService, perm: perm, log: log}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/roles", h.perm.RequirePermission(model.PermUsersRead), h.ListRoles)
}

// ListRoles returns all roles with their permissions
// @Summary      List roles
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.RoleResponse}
// @Router       /roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// RegisterValidators adds the custom binding tags used by the request DTOs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		role := fl.Field().String()
		for _, r := range service.ValidRoles {
			if role == r {
				return true
			}
		}
		return false
	})
}
