package router

import (
	"github.com/gin-gonic/gin"
	"github.com/tqminh/formextract-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, health *handler.HealthHandler, limits RateLimits) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", health.Health)
	r.GET("/health/ready", health.Ready)

	h := handler.NewHandler(deps)

	queue := r.Group("/queue")
	queue.Use(RateLimitMiddleware(limits.Queue))
	{
		queue.POST("/upload-image", h.QueueUploadImage)
		queue.POST("/extract-form", h.QueueExtractForm)
	}

	r.GET("/tasks/:job_id", RateLimitMiddleware(limits.Status), h.GetTaskStatus)

	images := r.Group("/images")
	{
		images.POST("", h.CreateImage)
		images.GET("", h.ListImages)
		images.GET("/:image_name", h.GetImage)
		images.DELETE("/:image_name", h.DeleteImage)
	}

	r.GET("/forms/:image_name", h.GetForm)

	folders := r.Group("/folders")
	{
		folders.GET("", h.ListFolders)
		folders.POST("", h.CreateFolder)
		folders.POST("/rename", h.RenameFolder)
		folders.DELETE("/*folder_path", h.DeleteFolder)
	}

	return r
}
