package router

import (
	"github.com/gin-gonic/gin"

	"github.com/homelabrg/codelens/internal/http/handler"
)

func ProjectRouter(rg *gin.RouterGroup, projects *handler.ProjectHandler, analyses *handler.AnalysisHandler) {
	rg.POST("", projects.Create)
	rg.GET("", projects.List)
	rg.GET("/:project_id", projects.Get)
	rg.DELETE("/:project_id", projects.Delete)
	rg.GET("/:project_id/files", projects.ListFiles)
	rg.GET("/:project_id/files/content", projects.FileContent)

	rg.POST("/:project_id/analyze", analyses.Analyze)
	rg.GET("/:project_id/analysis", analyses.ListForProject)
	rg.GET("/:project_id/analysis/latest", analyses.Latest)
}
