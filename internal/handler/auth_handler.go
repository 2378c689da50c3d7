package handler

import (
	"net/http"
	"sort"

	"resource-tracker/internal/middleware"
	"resource-tracker/internal/service"
	"resource-tracker/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	userService  service.UserService
	permissions  *middleware.PermissionResolver
	secureCookie bool
	log          *zap.Logger
}

func NewAuthHandler(userService service.UserService, permissions *middleware.PermissionResolver, secureCookie bool, log *zap.Logger) *AuthHandler {
	return &AuthHandler{userService: userService, permissions: permissions, secureCookie: secureCookie, log: log}
}

// RegisterRoutes binds login on the public group and the session routes on
// the authenticated one.
func (h *AuthHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/login", h.Login)
	protected.GET("/logout", h.Logout)
	protected.GET("/me", h.GetMe)
}

// Login handles POST /login to authenticate and start a session
// @Summary      Login user
// @Description  Authenticates an approved user, sets the session cookie and returns the token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest   true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.LoginResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	middleware.SetSessionCookie(c, res.Token, res.ExpiresAt, h.secureCookie)
	c.JSON(http.StatusOK, response.Flash(http.StatusOK, response.LevelSuccess, "Welcome, "+res.User.Name+"!", res))
}

// Logout handles GET /logout to end the session
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Router       /logout [get]
func (h *AuthHandler) Logout(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if err := h.userService.Logout(c.Request.Context(), a); err != nil {
		h.log.Warn("failed to record logout", zap.Error(err))
	}

	middleware.ClearSessionCookie(c, h.secureCookie)
	c.JSON(http.StatusOK, response.Flash(http.StatusOK, response.LevelSuccess, "You have been logged out", nil))
}

// GetMe handles GET /me to return the session user and its capabilities
// @Summary      Get current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200      {object}  response.Response{data=object}
// @Failure      401      {object}  response.Response
// @Router       /me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), a.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	perms := []string{}
	if set, err := h.permissions.Permissions(c.Request.Context(), user.Role); err == nil {
		for code := range set {
			perms = append(perms, code)
		}
		sort.Strings(perms)
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"user":        user,
		"permissions": perms,
	}))
}
