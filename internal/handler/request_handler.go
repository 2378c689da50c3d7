package handler

import (
	"errors"
	"net/http"

	"resource-tracker/internal/approval"
	"resource-tracker/internal/middleware"
	"resource-tracker/internal/model"
	"resource-tracker/internal/service"
	"resource-tracker/pkg/pagination"
	"resource-tracker/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestHandler serves the write-off ("baixa") workflow.
type RequestHandler struct {
	requestService  service.RequestService
	resourceService service.ResourceService
	perm            *middleware.PermissionResolver
	log             *zap.Logger
}

func NewRequestHandler(
	requestService service.RequestService,
	resourceService service.ResourceService,
	perm *middleware.PermissionResolver,
	log *zap.Logger,
) *RequestHandler {
	return &RequestHandler{
		requestService:  requestService,
		resourceService: resourceService,
		perm:            perm,
		log:             log,
	}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/recursos/:id/baixa", h.perm.RequirePermission(model.PermStockRequest), h.WriteOffForm)
	router.POST("/recursos/:id/baixa", h.perm.RequirePermission(model.PermStockRequest), h.CreateWriteOff)

	requests := router.Group("/baixas")
	{
		requests.GET("", h.perm.RequirePermission(model.PermRequestsRead), h.ListRequests)
		requests.POST("/:id/aprovar", h.perm.RequirePermission(model.PermRequestsDecide), h.Approve)
		requests.POST("/:id/rejeitar", h.perm.RequirePermission(model.PermRequestsDecide), h.Reject)
	}
}

// WriteOffForm returns the resource and the approval threshold
func (h *RequestHandler) WriteOffForm(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.resourceService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"resource":  res,
		"threshold": h.requestService.Threshold(),
	}))
}

// CreateWriteOff reserves stock and opens a pending write-off request
// @Summary      Request a write-off
// @Description  Takes the quantity out of the resource now and opens a pending request. Send an Idempotency-Key header to make retries safe.
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id               path      string                          true   "Resource ID"
// @Param        Idempotency-Key  header    string                          false  "Client generated submission key"
// @Param        payload          body      service.CreateWriteOffRequest  true   "Quantity"
// @Success      201      {object}  response.Response{data=service.WriteOffRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /recursos/{id}/baixa [post]
func (h *RequestHandler) CreateWriteOff(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.CreateWriteOffRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Quantity must be a whole number greater than zero"))
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	res, err := h.requestService.Create(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Flash(http.StatusCreated, response.LevelSuccess,
		"Write-off request created, awaiting approval", res))
}

// ListRequests lists write-off requests, newest first
// @Summary      List write-off requests
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "pending, manager_approved, approved or rejected"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Failure      400     {object}  response.Response
// @Router       /baixas [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	status := c.Query("status")
	switch model.RequestStatus(status) {
	case "", model.RequestPending, model.RequestManagerApproved, model.RequestApproved, model.RequestRejected:
	default:
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid status filter"))
		return
	}

	p := pagination.Parse(c)
	reqs, total, err := h.requestService.List(c.Request.Context(), service.RequestListFilter{
		Status: status,
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	awaiting, err := h.requestService.PendingCount(c.Request.Context(), a.Role)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	data := p.Wrap("requests", reqs, total)
	data["awaiting_you"] = awaiting
	data["threshold"] = h.requestService.Threshold()
	c.JSON(http.StatusOK, response.Success(http.StatusOK, data))
}

// Approve moves a request one approval step forward
// @Summary      Approve a write-off request
// @Description  Requests above the threshold need a manager approval before the admin concludes them
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.WriteOffRequestResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /baixas/{id}/aprovar [post]
func (h *RequestHandler) Approve(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.requestService.Approve(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	msg := "Request approved"
	if res.Status == string(model.RequestManagerApproved) {
		msg = "Manager approval recorded, awaiting admin approval"
	}
	c.JSON(http.StatusOK, response.Flash(http.StatusOK, response.LevelSuccess, msg, res))
}

// Reject closes a request and restores its stock
// @Summary      Reject a write-off request
// @Description  Rejecting an already rejected request changes nothing and answers with a warning
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.WriteOffRequestResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /baixas/{id}/rejeitar [post]
func (h *RequestHandler) Reject(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.requestService.Reject(c.Request.Context(), a, id)
	if errors.Is(err, approval.ErrAlreadyRejected) {
		c.JSON(http.StatusOK, response.Flash(http.StatusOK, response.LevelWarning, "Request was already rejected", nil))
		return
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Flash(http.StatusOK, response.LevelSuccess, "Request rejected, stock restored", res))
}
