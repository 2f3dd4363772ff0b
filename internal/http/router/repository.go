package router

import (
	"github.com/gin-gonic/gin"

	"github.com/homelabrg/codelens/internal/http/handler"
)

func RepositoryRouter(rg *gin.RouterGroup, h *handler.RepositoryHandler) {
	rg.POST("", h.Register)
	rg.GET("", h.List)
	rg.GET("/:repository_id", h.Get)
}
