package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/advflag/internal/http/handler"
	"basegraph.app/advflag/internal/service"
)

type RouterConfig struct {
	TraceHeader string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		postHandler := handler.NewPostHandler(services.Coordinator())
		PostRouter(v1.Group("/posts"), postHandler)

		eventHandler := handler.NewNetworkEventHandler(services.NetworkEvents(), cfg.TraceHeader)
		EventRouter(v1.Group("/network-events"), eventHandler)

		settingsHandler := handler.NewSettingsHandler(services.Settings().Store())
		SettingsRouter(v1.Group("/settings"), settingsHandler)
	}
}
