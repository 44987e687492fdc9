package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/advflag/internal/http/handler"
)

func SettingsRouter(router *gin.RouterGroup, handler *handler.SettingsHandler) {
	router.GET("/:key", handler.Get)
	router.PUT("/:key", handler.Put)
	router.DELETE("/:key", handler.Delete)
}
