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

type ResourceHandler struct {
	resourceService service.ResourceService
	perm            *middleware.PermissionResolver
	log             *zap.Logger
}

func NewResourceHandler(resourceService service.ResourceService, perm *middleware.PermissionResolver, log *zap.Logger) *ResourceHandler {
	return &ResourceHandler{resourceService: resourceService, perm: perm, log: log}
}

func (h *ResourceHandler) RegisterRoutes(router *gin.RouterGroup) {
	resources := router.Group("/recursos")
	{
		resources.GET("", h.perm.RequirePermission(model.PermResourcesRead), h.ListResources)
		resources.GET("/tipos", h.perm.RequirePermission(model.PermResourcesRead), h.ListTypes)
		resources.GET("/novo", h.perm.RequirePermission(model.PermResourcesWrite), h.NewResourceForm)
		resources.POST("/novo", h.perm.RequirePermission(model.PermResourcesWrite), h.CreateResource)
		resources.GET("/editar/:id", h.perm.RequirePermission(model.PermResourcesWrite), h.EditResourceForm)
		resources.POST("/editar/:id", h.perm.RequirePermission(model.PermResourcesWrite), h.UpdateResource)
		resources.POST("/remover/:id", h.perm.RequirePermission(model.PermResourcesDelete), h.DeleteResource)
		resources.GET("/:id", h.perm.RequirePermission(model.PermResourcesRead), h.GetResource)
		resources.GET("/:id/entrada", h.perm.RequirePermission(model.PermStockReceive), h.ReceiveForm)
		resources.POST("/:id/entrada", h.perm.RequirePermission(model.PermStockReceive), h.ReceiveStock)
	}
}

// ListResources handles retrieving a paginated resource list
// @Summary      List resources
// @Description  Retrieves a paginated list of resources with current stock
// @Tags         resources
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Search by resource name"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /recursos [get]
func (h *ResourceHandler) ListResources(c *gin.Context) {
	p := pagination.Parse(c)
	resources, total, err := h.resourceService.List(c.Request.Context(), p.Page, p.Limit, c.Query("search"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap("resources", resources, total)))
}

// ListTypes returns every resource type
// @Summary      List resource types
// @Tags         resources
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.ResourceTypeResponse}
// @Router       /recursos/tipos [get]
func (h *ResourceHandler) ListTypes(c *gin.Context) {
	types, err := h.resourceService.ListTypes(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, types))
}

// GetResource returns one resource
// @Summary      Get resource
// @Tags         resources
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Resource ID"
// @Success      200  {object}  response.Response{data=service.ResourceResponse}
// @Failure      404  {object}  response.Response
// @Router       /recursos/{id} [get]
func (h *ResourceHandler) GetResource(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.resourceService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// NewResourceForm returns what the create form needs
func (h *ResourceHandler) NewResourceForm(c *gin.Context) {
	types, err := h.resourceService.ListTypes(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"types":          types,
		"default_status": model.ResourceStatusAvailable,
	}))
}

// CreateResource creates a resource with its initial stock
// @Summary      Create resource
// @Tags         resources
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ResourceRequestDTO  true  "Resource"
// @Success      201      {object}  response.Response{data=service.ResourceResponse}
// @Failure      400      {object}  response.Response
// @Router       /recursos/novo [post]
func (h *ResourceHandler) CreateResource(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.ResourceRequestDTO
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.resourceService.Create(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Flash(http.StatusCreated, response.LevelSuccess, "Resource created successfully", res))
}

// EditResourceForm returns the resource and the available types
func (h *ResourceHandler) EditResourceForm(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.resourceService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	types, err := h.resourceService.ListTypes(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"resource": res, "types": types}))
}

// UpdateResource edits the descriptive fields of a resource
// @Summary      Update resource
// @Description  Quantity is ignored: stock only changes through inbound shipments and write-offs
// @Tags         resources
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Resource ID"
// @Param        payload  body      service.ResourceRequestDTO  true  "Resource"
// @Success      200      {object}  response.Response{data=service.ResourceResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /recursos/editar/{id} [post]
func (h *ResourceHandler) UpdateResource(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.ResourceRequestDTO
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.resourceService.Update(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Flash(http.StatusOK, response.LevelSuccess, "Resource updated successfully", res))
}

// DeleteResource removes a resource without open write-off requests
// @Summary      Delete resource
// @Tags         resources
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Resource ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /recursos/remover/{id} [post]
func (h *ResourceHandler) DeleteResource(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.resourceService.Delete(c.Request.Context(), a, id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Flash(http.StatusOK, response.LevelSuccess, "Resource removed successfully", nil))
}

// ReceiveForm returns the resource an inbound shipment is registered for
func (h *ResourceHandler) ReceiveForm(c *gin.Context) {
	h.GetResource(c)
}

// ReceiveStock registers an inbound shipment
// @Summary      Receive stock
// @Tags         resources
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Resource ID"
// @Param        payload  body      service.ReceiveStockRequest  true  "Quantity received"
// @Success      200      {object}  response.Response{data=service.ResourceResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /recursos/{id}/entrada [post]
func (h *ResourceHandler) ReceiveStock(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.ReceiveStockRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.resourceService.Receive(c.Request.Context(), a, id, req.Quantity)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Flash(http.StatusOK, response.LevelSuccess, "Stock entry registered", res))
}
