package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/locu5t/civicomfy-go/api/handlers"
	"github.com/locu5t/civicomfy-go/api/middleware"
	"github.com/locu5t/civicomfy-go/internal/app"
	"github.com/locu5t/civicomfy-go/internal/domain"
)

// RouterConfig carries the dependencies of the HTTP surface
type RouterConfig struct {
	QueueManager       *app.QueueManager
	Archive            domain.ArchiveRepository // nil when the archive is disabled
	BaseDir            string
	DefaultConnections int
	Logger             *zap.Logger
}

// SetupRouter sets up the HTTP router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.QueueManager)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		downloadHandler := handlers.NewDownloadHandler(cfg.QueueManager, cfg.BaseDir, cfg.DefaultConnections, log)
		downloads := v1.Group("/downloads")
		{
			downloads.POST("", downloadHandler.AddDownload)
			downloads.GET("/status", downloadHandler.GetStatus)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.POST("/:id/cancel", downloadHandler.CancelDownload)
		}

		archiveHandler := handlers.NewArchiveHandler(cfg.Archive, log)
		archive := v1.Group("/archive")
		{
			archive.GET("", archiveHandler.ListArchive)
			archive.GET("/stats", archiveHandler.GetStats)
			archive.GET("/:id", archiveHandler.GetRecord)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
