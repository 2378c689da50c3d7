package handler

import (
	"net/http"

	"resource-tracker/internal/middleware"
	"resource-tracker/internal/model"
	"resource-tracker/internal/service"
	"resource-tracker/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	dashboardService service.DashboardService
	perm             *middleware.PermissionResolver
	log              *zap.Logger
}

func NewDashboardHandler(dashboardService service.DashboardService, perm *middleware.PermissionResolver, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService, perm: perm, log: log}
}

func (h *DashboardHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/dashboard", h.perm.RequirePermission(model.PermDashboardRead), h.GetDashboard)
	router.GET("/baixas/pendentes", h.perm.RequirePermission(model.PermDashboardRead), h.GetPendingBadge)
}

// GetDashboard returns the landing page summary
// @Summary      Dashboard
// @Description  Resource totals, resources per status, recent activity and requests waiting on the caller
// @Tags         dashboard
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.DashboardResponse}
// @Router       /dashboard [get]
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	summary, err := h.dashboardService.Summary(c.Request.Context(), a)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// GetPendingBadge returns how many requests wait on the caller's role
// @Summary      Pending request badge
// @Tags         dashboard
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /baixas/pendentes [get]
func (h *DashboardHandler) GetPendingBadge(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	n, err := h.dashboardService.PendingRequests(c.Request.Context(), a.Role)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"pending": n}))
}
