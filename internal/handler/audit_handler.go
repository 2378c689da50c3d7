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

type AuditHandler struct {
	auditService service.AuditService
	perm         *middleware.PermissionResolver
	log          *zap.Logger
}

func NewAuditHandler(auditService service.AuditService, perm *middleware.PermissionResolver, log *zap.Logger) *AuditHandler {
	return &AuditHandler{auditService: auditService, perm: perm, log: log}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/logs", h.perm.RequirePermission(model.PermAuditRead), h.GetAuditLogs)
}

// GetAuditLogs retrieves paginated access log entries with the author's name
// @Summary      Get access logs
// @Description  Retrieves the access log, newest first
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)
	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap("logs", logs, total)))
}
