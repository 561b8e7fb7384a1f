package api

import (
	"Memora/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置并返回采集服务的 Gin 引擎。
func SetupRouter(h *Handler, jwtSecret string, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))

	r.GET("/healthz", h.Health)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(AuthMiddleware(jwtSecret))
	{
		collections := apiV1.Group("/collections")
		{
			collections.POST("/url", h.IngestURL)
			collections.GET("/search", h.SearchCollections)
			collections.GET("/:id", h.GetCollection)
		}

		categories := apiV1.Group("/categories")
		{
			categories.POST("/:id/knowledge_base", h.CreateKnowledgeBase)
			categories.GET("/:id/knowledge_base", h.QueryKnowledgeBase)
		}
	}

	return r
}
