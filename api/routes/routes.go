package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/feichai0017/ingest-triage/api/handlers"
	"github.com/feichai0017/ingest-triage/api/middleware"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	docs := v1.Group("/documents")
	{
		docs.POST("/submit", h.Document.SubmitDocument)
		docs.POST("/batch", h.Document.SubmitBatch)
		docs.GET("/status/:documentId", h.Document.GetStatus)
		docs.POST("/reprocess/:documentId", h.Document.Reprocess)
	}
}
