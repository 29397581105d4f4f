package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/image-loader/internal/service"
	"github.com/fleveque/image-loader/internal/storage"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	images *service.ImageService
	logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(images *service.ImageService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{images: images, logger: logger}
}

// Stats returns conversion counts by status and failure kind.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.images.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("reading conversion stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Conversions lists the most recent conversions.
// Route: GET /api/v1/admin/conversions?limit=20
func (h *AdminHandler) Conversions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRecentLimit)))
	if err != nil || limit < 1 || limit > maxRecentLimit {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid limit: must be between 1 and " + strconv.Itoa(maxRecentLimit),
		})
		return
	}

	conversions, err := h.images.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("listing conversions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversions": conversions})
}

// Conversion returns a single logged conversion.
// Route: GET /api/v1/admin/conversions/:id
func (h *AdminHandler) Conversion(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	conversion, err := h.images.Conversion(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversion not found"})
		return
	}
	if err != nil {
		h.logger.Error("getting conversion", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, conversion)
}
