package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homelabrg/codelens/internal/http/dto"
	"github.com/homelabrg/codelens/internal/project"
	"github.com/homelabrg/codelens/internal/store"
	"github.com/homelabrg/codelens/internal/task"
)

type RepositoryHandler struct {
	source *project.GitSource
	tasks  *task.Runner
}

func NewRepositoryHandler(source *project.GitSource, tasks *task.Runner) *RepositoryHandler {
	return &RepositoryHandler{source: source, tasks: tasks}
}

// Register records a repository and starts its clone in the background.
// Clients poll the repository until it reaches ready or failed.
func (h *RepositoryHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RegisterRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	repo, err := h.source.Register(ctx, req.URL, req.Branch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.tasks.Go(ctx, "clone:"+repo.ID, func(ctx context.Context) error {
		return h.source.Clone(ctx, repo.ID)
	})

	c.JSON(http.StatusAccepted, repo)
}

func (h *RepositoryHandler) Get(c *gin.Context) {
	repo, err := h.source.GetRepository(c.Request.Context(), c.Param("repository_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "repository not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get repository"})
		return
	}
	c.JSON(http.StatusOK, repo)
}

func (h *RepositoryHandler) List(c *gin.Context) {
	repos, err := h.source.ListRepositories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list repositories"})
		return
	}
	c.JSON(http.StatusOK, repos)
}
