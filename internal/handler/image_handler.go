package handler

import (
	"errors"
	"net/http"

	"resource-tracker/internal/imagesearch"
	"resource-tracker/internal/middleware"
	"resource-tracker/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// imageResult is the JSON shape the resource form's image picker expects.
type imageResult struct {
	OK bool `json:"ok"`
	imagesearch.Suggestion
}

type imageError struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error"`
	StatusCode int    `json:"status_code,omitempty"`
}

type downloadRequest struct {
	DownloadLocation string `json:"download_location" form:"download_location"`
}

type ImageHandler struct {
	images *imagesearch.Client
	perm   *middleware.PermissionResolver
	log    *zap.Logger
}

func NewImageHandler(images *imagesearch.Client, perm *middleware.PermissionResolver, log *zap.Logger) *ImageHandler {
	return &ImageHandler{images: images, perm: perm, log: log}
}

func (h *ImageHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api", h.perm.RequirePermission(model.PermImagesSearch))
	{
		api.GET("/unsplash_suggest", h.Suggest)
		api.POST("/unsplash_download", h.TrackDownload)
	}
}

// Suggest returns one landscape photo for the query
// @Summary      Suggest a resource image
// @Tags         images
// @Security     BearerAuth
// @Produce      json
// @Param        q    query     string  true  "Search term (min 3 characters)"
// @Success      200  {object}  imageResult
// @Failure      400  {object}  imageError
// @Failure      404  {object}  imageError
// @Failure      503  {object}  imageError
// @Router       /api/unsplash_suggest [get]
func (h *ImageHandler) Suggest(c *gin.Context) {
	s, err := h.images.Suggest(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, imageResult{OK: true, Suggestion: s})
}

// TrackDownload reports a photo use to the image API
// @Summary      Track image download
// @Tags         images
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      downloadRequest  true  "Download location from the suggestion"
// @Success      200      {object}  object
// @Failure      400      {object}  imageError
// @Failure      503      {object}  imageError
// @Router       /api/unsplash_download [post]
func (h *ImageHandler) TrackDownload(c *gin.Context) {
	var req downloadRequest
	_ = c.ShouldBind(&req)

	if err := h.images.TrackDownload(c.Request.Context(), req.DownloadLocation); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *ImageHandler) fail(c *gin.Context, err error) {
	var apiErr *imagesearch.Error
	if !errors.As(err, &apiErr) {
		h.log.Error("image search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, imageError{Error: "Image search failed"})
		return
	}

	body := imageError{Error: apiErr.Message}
	if apiErr.Upstream {
		body.StatusCode = apiErr.StatusCode
	}
	if apiErr.StatusCode >= 500 {
		h.log.Warn("image search failed", zap.Int("status", apiErr.StatusCode), zap.Error(err))
	}
	c.JSON(apiErr.StatusCode, body)
}
