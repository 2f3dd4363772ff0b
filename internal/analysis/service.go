// Package analysis is the job orchestrator: it creates analysis jobs, runs
// the stage pipeline over a project's files in the background, tracks
// status and progress, and serves results back from the job record with the
// on-disk archive as a recovery source.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/homelabrg/codelens/common/id"
	"github.com/homelabrg/codelens/common/logger"
	"github.com/homelabrg/codelens/internal/archive"
	"github.com/homelabrg/codelens/internal/model"
	"github.com/homelabrg/codelens/internal/store"
)

// Projects is the project store surface the orchestrator and pipeline need.
type Projects interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	ListFiles(ctx context.Context, projectID string) ([]model.FileInfo, error)
	GetFileContent(ctx context.Context, projectID, path string) (string, error)
	ImportFromRepository(ctx context.Context, repositoryID, owner, repo string) (string, error)
}

// Repositories resolves repository imports during job creation.
type Repositories interface {
	GetRepository(ctx context.Context, repositoryID string) (*model.Repository, error)
}

// ResultArchive persists stage payloads independently of the job record.
type ResultArchive interface {
	Put(ctx context.Context, jobID, stage string, payload []byte) error
	Get(ctx context.Context, jobID, stage string) ([]byte, error)
	ListStages(ctx context.Context, jobID string) ([]string, error)
}

type Service struct {
	jobs     store.AnalysisStore
	results  ResultArchive
	projects Projects
	repos    Repositories
	pipeline *Pipeline
}

func NewService(jobs store.AnalysisStore, results ResultArchive, projects Projects, repos Repositories, pipeline *Pipeline) *Service {
	return &Service{
		jobs:     jobs,
		results:  results,
		projects: projects,
		repos:    repos,
		pipeline: pipeline,
	}
}

// CreateJob registers a new analysis job in pending status and returns it.
// With fromRepository set, projectID names a repository import: the
// repository must be ready and its files are materialized as a new project
// first. A creation failure still persists a terminal failed job record so
// failed imports stay auditable, then the error is returned.
func (s *Service) CreateJob(ctx context.Context, projectID string, analysisTypes []string, fromRepository bool) (*model.AnalysisJob, error) {
	jobID := id.New()
	ctx = logger.WithLogFields(ctx, logger.LogFields{AnalysisID: logger.Ptr(jobID)})

	proj, resolvedProjectID, err := s.resolveProject(ctx, projectID, fromRepository)
	if err != nil {
		s.persistFailedCreation(ctx, jobID, resolvedProjectID, analysisTypes, err)
		return nil, err
	}

	now := time.Now().UTC()
	job := &model.AnalysisJob{
		ID:            jobID,
		ProjectID:     resolvedProjectID,
		AnalysisTypes: analysisTypes,
		Status:        model.AnalysisPending,
		Progress:      0,
		CreatedAt:     now,
		UpdatedAt:     now,
		Results:       map[string]json.RawMessage{},
		ProjectName:   proj.Name,
		FileCount:     proj.FileCount,
		Languages:     proj.Languages,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("creating analysis job: %w", err)
	}

	slog.InfoContext(ctx, "analysis job created",
		"project_id", resolvedProjectID, "analysis_types", analysisTypes)
	return job, nil
}

func (s *Service) resolveProject(ctx context.Context, projectID string, fromRepository bool) (*model.Project, string, error) {
	if fromRepository {
		repositoryID := projectID
		repo, err := s.repos.GetRepository(ctx, repositoryID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, repositoryID, fmt.Errorf("repository %s not found", repositoryID)
			}
			return nil, repositoryID, fmt.Errorf("resolving repository: %w", err)
		}
		if repo.Status != model.RepositoryReady {
			return nil, repositoryID, fmt.Errorf("repository is not ready, status: %s", repo.Status)
		}

		imported, err := s.projects.ImportFromRepository(ctx, repositoryID, repo.Owner, repo.Repo)
		if err != nil {
			return nil, repositoryID, fmt.Errorf("importing repository files: %w", err)
		}
		projectID = imported
	}

	proj, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, projectID, fmt.Errorf("project %s not found", projectID)
		}
		return nil, projectID, fmt.Errorf("resolving project: %w", err)
	}
	return proj, projectID, nil
}

func (s *Service) persistFailedCreation(ctx context.Context, jobID, projectID string, analysisTypes []string, cause error) {
	now := time.Now().UTC()
	msg := cause.Error()
	job := &model.AnalysisJob{
		ID:            jobID,
		ProjectID:     projectID,
		AnalysisTypes: analysisTypes,
		Status:        model.AnalysisFailed,
		Progress:      0,
		CreatedAt:     now,
		UpdatedAt:     now,
		CompletedAt:   &now,
		Results:       map[string]json.RawMessage{},
		Error:         &msg,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		slog.ErrorContext(ctx, "persisting failed job record", "error", err)
	}
}

// RunJob executes the requested stages in order. It is meant to run as a
// detached background task; the creating request does not await it. Stage
// failures are isolated per stage, only setup and record-keeping failures
// fail the whole job, and already-committed results are never rolled back.
func (s *Service) RunJob(ctx context.Context, jobID, projectID string, analysisTypes []string) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		AnalysisID: logger.Ptr(jobID),
		ProjectID:  logger.Ptr(projectID),
	})

	sc := logger.StartSpan(ctx, "analysis.run_job")
	defer sc.End()
	ctx = sc.Context()

	results := map[string]json.RawMessage{}
	if err := s.runStages(ctx, jobID, projectID, analysisTypes, results); err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "analysis job failed", "error", err)
		msg := err.Error()
		update := model.AnalysisUpdate{
			Status: ptr(model.AnalysisFailed),
			Error:  &msg,
		}
		if len(results) > 0 {
			update.Results = results
		}
		if uerr := s.jobs.Update(ctx, jobID, update); uerr != nil {
			return fmt.Errorf("marking job failed: %w (cause: %v)", uerr, err)
		}
		return err
	}
	return nil
}

func (s *Service) runStages(ctx context.Context, jobID, projectID string, analysisTypes []string, results map[string]json.RawMessage) error {
	if err := s.jobs.Update(ctx, jobID, model.AnalysisUpdate{
		Status:   ptr(model.AnalysisRunning),
		Progress: ptr(0),
	}); err != nil {
		return fmt.Errorf("starting job: %w", err)
	}

	proj, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("project %s not found", projectID)
		}
		return fmt.Errorf("resolving project: %w", err)
	}
	files, err := s.projects.ListFiles(ctx, projectID)
	if err != nil {
		return fmt.Errorf("listing project files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found for project %s", projectID)
	}

	total := len(analysisTypes)
	completed := 0

	for _, stage := range analysisTypes {
		// Progress reflects work already completed, reported before the
		// stage executes.
		if err := s.jobs.Update(ctx, jobID, model.AnalysisUpdate{
			Progress:     ptr(completed * 100 / total),
			CurrentStage: &stage,
		}); err != nil {
			return fmt.Errorf("updating progress: %w", err)
		}

		if !s.pipeline.Recognizes(stage) {
			// Unrecognized stages produce no result entry but still count
			// toward completion.
			slog.WarnContext(ctx, "unknown analysis stage, skipping", "stage", stage)
			completed++
			continue
		}

		results[stage] = s.runStage(ctx, jobID, stage, proj, files)
		completed++
	}

	now := time.Now().UTC()
	if err := s.jobs.Update(ctx, jobID, model.AnalysisUpdate{
		Status:       ptr(model.AnalysisCompleted),
		CurrentStage: ptr(""),
		Progress:     ptr(100),
		Results:      results,
		CompletedAt:  &now,
	}); err != nil {
		return fmt.Errorf("completing job: %w", err)
	}

	slog.InfoContext(ctx, "analysis job completed", "stages", total)
	return nil
}

// runStage produces the recorded payload for one stage: the stage result
// written through to the archive on success, or an error payload. Stage
// failures never abort the job.
func (s *Service) runStage(ctx context.Context, jobID, stage string, proj *model.Project, files []model.FileInfo) json.RawMessage {
	fail := func(err error) json.RawMessage {
		slog.ErrorContext(ctx, "analysis stage failed", "stage", stage, "error", err)
		payload, merr := json.Marshal(model.StageError{Error: err.Error()})
		if merr != nil {
			payload = []byte(`{"error":"stage failed"}`)
		}
		return payload
	}

	result, err := s.pipeline.Run(ctx, stage, proj, files)
	if err != nil {
		return fail(err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fail(fmt.Errorf("encoding stage result: %w", err))
	}
	if err := s.results.Put(ctx, jobID, stage, payload); err != nil {
		return fail(fmt.Errorf("archiving stage result: %w", err))
	}
	return payload
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*model.AnalysisJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// ListProjectJobs returns a project's jobs in insertion order.
func (s *Service) ListProjectJobs(ctx context.Context, projectID string) ([]model.AnalysisJob, error) {
	return s.jobs.ListByProject(ctx, projectID)
}

// GetLatestCompleted returns the most recently created completed job for
// the project. With a stage filter, the job must both have requested the
// stage and hold a result entry for it.
func (s *Service) GetLatestCompleted(ctx context.Context, projectID, stage string) (*model.AnalysisJob, error) {
	jobs, err := s.jobs.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	completed := []model.AnalysisJob{}
	for _, job := range jobs {
		if job.Status == model.AnalysisCompleted {
			completed = append(completed, job)
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].CreatedAt.After(completed[j].CreatedAt)
	})

	for _, job := range completed {
		if stage != "" {
			if !contains(job.AnalysisTypes, stage) {
				continue
			}
			if _, ok := job.Results[stage]; !ok {
				continue
			}
		}
		return &job, nil
	}
	return nil, store.ErrNotFound
}

// GetStageResult returns one stage's payload, preferring the job record and
// falling back to the archive.
func (s *Service) GetStageResult(ctx context.Context, jobID, stage string) (json.RawMessage, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if payload, ok := job.Results[stage]; ok {
		return payload, nil
	}

	payload, err := s.results.Get(ctx, jobID, stage)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

// GetResults returns the union of the job record's results and every stage
// archived for the job. Record entries win on collision; archive entries
// survive a lost record update mid-run, which makes this the recovery path.
func (s *Service) GetResults(ctx context.Context, jobID string) (map[string]json.RawMessage, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	merged := map[string]json.RawMessage{}
	for stage, payload := range job.Results {
		merged[stage] = payload
	}

	stages, err := s.results.ListStages(ctx, jobID)
	if err != nil {
		return nil, err
	}
	for _, stage := range stages {
		if _, ok := merged[stage]; ok {
			continue
		}
		payload, err := s.results.Get(ctx, jobID, stage)
		if err != nil {
			slog.ErrorContext(ctx, "reading archived stage result",
				"analysis_id", jobID, "stage", stage, "error", err)
			continue
		}
		merged[stage] = payload
	}
	return merged, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T {
	return &v
}
