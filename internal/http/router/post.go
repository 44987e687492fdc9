package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/advflag/internal/http/handler"
)

func PostRouter(router *gin.RouterGroup, handler *handler.PostHandler) {
	router.POST("", handler.Discover)
	router.GET("/:id/options", handler.Options)
	router.POST("/:id/actions", handler.Act)
}
