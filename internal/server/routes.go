package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/image-loader/internal/config"
	"github.com/fleveque/image-loader/internal/handler"
	"github.com/fleveque/image-loader/internal/middleware"
	"github.com/fleveque/image-loader/internal/service"
	"github.com/fleveque/image-loader/internal/source"
)

// Deps are the collaborators the routes need, built once in main.
type Deps struct {
	Images  *service.ImageService
	Fetcher *source.Fetcher
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler()
	imageHandler := handler.NewImageHandler(
		deps.Images,
		deps.Fetcher,
		cfg.Loader.Options(),
		cfg.Server.MaxUploadMB<<20,
		logger,
	)
	adminHandler := handler.NewAdminHandler(deps.Images, logger)

	r.GET("/healthz", healthHandler.Healthz)

	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	authed := api.Group("")
	authed.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		authed.POST("/images", imageHandler.Upload)
		authed.POST("/images/fetch", imageHandler.Fetch)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.GET("/conversions", adminHandler.Conversions)
		admin.GET("/conversions/:id", adminHandler.Conversion)
	}
}
