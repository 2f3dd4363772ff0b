package router

import (
	"github.com/gin-gonic/gin"

	"github.com/homelabrg/codelens/internal/http/handler"
)

type Handlers struct {
	Projects     *handler.ProjectHandler
	Repositories *handler.RepositoryHandler
	Analyses     *handler.AnalysisHandler
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		ProjectRouter(v1.Group("/projects"), h.Projects, h.Analyses)
		RepositoryRouter(v1.Group("/repositories"), h.Repositories)
		AnalysisRouter(v1.Group("/analysis"), h.Analyses)
	}
}
