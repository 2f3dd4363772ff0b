package router

import (
	"github.com/gin-gonic/gin"

	"github.com/homelabrg/codelens/internal/http/handler"
)

func AnalysisRouter(rg *gin.RouterGroup, h *handler.AnalysisHandler) {
	rg.GET("/:analysis_id", h.Get)
	rg.GET("/:analysis_id/results", h.Results)
}
