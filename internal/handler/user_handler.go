package handler

import (
	"net/http"

	"resource-tracker/internal/middleware"
	"resource-tracker/internal/model"
	"resource-tracker/internal/service"
	"resource-tracker/pkg/pagination"
	"resource-tracker/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService service.UserService
	perm        *middleware.PermissionResolver
	sessions    *middleware.SessionResolver
	log         *zap.Logger
}

// NewUserHandler sets up the routing dependencies for User endpoints
func NewUserHandler(
	userService service.UserService,
	perm *middleware.PermissionResolver,
	sessions *middleware.SessionResolver,
	log *zap.Logger,
) *UserHandler {
	return &UserHandler{userService: userService, perm: perm, sessions: sessions, log: log}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/usuarios")
	{
		users.GET("", h.perm.RequirePermission(model.PermUsersRead), h.ListUsers)
		users.GET("/novo", h.perm.RequirePermission(model.PermUsersWrite), h.NewUserForm)
		users.POST("/novo", h.perm.RequirePermission(model.PermUsersWrite), h.CreateUser)
		users.POST("/aprovar/:id", h.perm.RequirePermission(model.PermUsersApprove), h.ApproveUser)
		users.GET("/editar/:id", h.perm.RequirePermission(model.PermUsersManage), h.EditUserForm)
		users.POST("/editar/:id", h.perm.RequirePermission(model.PermUsersManage), h.UpdateUser)
		users.POST("/remover/:id", h.perm.RequirePermission(model.PermUsersManage), h.DeleteUser)
	}
}

// assignableRoles lists the roles a.Role may give to a user.
func assignableRoles(a service.Actor) []string {
	if a.IsAdmin() {
		return service.ValidRoles
	}
	return []string{model.RoleEmployee, model.RoleManager}
}

// ListUsers handles GET /usuarios and extracts pagination controls
// @Summary      List users
// @Description  Retrieves a paginated list of users, those awaiting approval first
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /usuarios [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	p := pagination.Parse(c)
	users, total, err := h.userService.ListUsers(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap("users", users, total)))
}

// NewUserForm returns the roles the caller can assign
func (h *UserHandler) NewUserForm(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"roles": assignableRoles(a)}))
}

// CreateUser handles POST /usuarios/novo
// @Summary      Create a new user
// @Description  Users created by a manager wait for an admin approval before they can log in
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateUserRequest  true  "Create User Payload"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /usuarios/novo [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateUserRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	msg := "User created successfully"
	if !user.Approved {
		msg = "User created, awaiting admin approval"
	}
	c.JSON(http.StatusCreated, response.Flash(http.StatusCreated, response.LevelSuccess, msg, user))
}

// ApproveUser handles POST /usuarios/aprovar/:id
// @Summary      Approve user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /usuarios/aprovar/{id} [post]
func (h *UserHandler) ApproveUser(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.ApproveUser(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Flash(http.StatusOK, response.LevelSuccess, "User approved", user))
}

// EditUserForm returns the user and the roles the caller can assign
func (h *UserHandler) EditUserForm(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"user": user, "roles": assignableRoles(a)}))
}

// UpdateUser handles POST /usuarios/editar/:id
// @Summary      Update user
// @Description  Updates a user's details; an empty password keeps the current one
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "User ID"
// @Param        payload  body      service.UpdateUserRequest  true  "Update User Payload"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /usuarios/editar/{id} [post]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateUserRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.sessions.Forget(id)
	c.JSON(http.StatusOK, response.Flash(http.StatusOK, response.LevelSuccess, "User updated successfully", user))
}

// DeleteUser handles POST /usuarios/remover/:id
// @Summary      Delete user
// @Description  Soft deletes a user by ID. Users cannot remove themselves.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /usuarios/remover/{id} [post]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(c.Request.Context(), a, id); err != nil {
		respondError(c, h.log, err)
		return
	}
	h.sessions.Forget(id)
	c.JSON(http.StatusOK, response.Flash(http.StatusOK, response.LevelSuccess, "User removed successfully", nil))
}
