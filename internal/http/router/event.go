package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/advflag/internal/http/handler"
)

func EventRouter(router *gin.RouterGroup, handler *handler.NetworkEventHandler) {
	router.POST("", handler.Ingest)
}
