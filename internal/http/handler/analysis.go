package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homelabrg/codelens/internal/analysis"
	"github.com/homelabrg/codelens/internal/http/dto"
	"github.com/homelabrg/codelens/internal/store"
	"github.com/homelabrg/codelens/internal/task"
)

type AnalysisHandler struct {
	analysisService *analysis.Service
	tasks           *task.Runner
}

func NewAnalysisHandler(analysisService *analysis.Service, tasks *task.Runner) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService, tasks: tasks}
}

// Analyze creates an analysis job for a project and dispatches its run in
// the background. The response carries the pending job; clients poll for
// progress. Exactly one run is dispatched per created job.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("project_id")

	var req dto.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.analysisService.CreateJob(ctx, projectID, req.AnalysisTypes, req.FromRepository)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.tasks.Go(ctx, "analysis:"+job.ID, func(ctx context.Context) error {
		return h.analysisService.RunJob(ctx, job.ID, job.ProjectID, job.AnalysisTypes)
	})

	c.JSON(http.StatusAccepted, job)
}

func (h *AnalysisHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	job, err := h.analysisService.GetJob(ctx, c.Param("analysis_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get analysis job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Results serves a job's result payloads, merged from the job record and
// the result archive. A type query parameter narrows to one stage.
func (h *AnalysisHandler) Results(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("analysis_id")

	if stage := c.Query("type"); stage != "" {
		payload, err := h.analysisService.GetStageResult(ctx, jobID, stage)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "results not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get results"})
			return
		}
		c.Data(http.StatusOK, "application/json", payload)
		return
	}

	results, err := h.analysisService.GetResults(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get results"})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *AnalysisHandler) ListForProject(c *gin.Context) {
	ctx := c.Request.Context()

	jobs, err := h.analysisService.ListProjectJobs(ctx, c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list analysis jobs"})
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *AnalysisHandler) Latest(c *gin.Context) {
	ctx := c.Request.Context()

	job, err := h.analysisService.GetLatestCompleted(ctx, c.Param("project_id"), c.Query("type"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no completed analysis found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get latest analysis"})
		return
	}
	c.JSON(http.StatusOK, job)
}
