package analysis_test

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/homelabrg/codelens/internal/archive"
	"github.com/homelabrg/codelens/internal/model"
	"github.com/homelabrg/codelens/internal/store"
)

type mockAnalysisStore struct {
	createFn        func(ctx context.Context, job *model.AnalysisJob) error
	updateFn        func(ctx context.Context, id string, update model.AnalysisUpdate) error
	getByIDFn       func(ctx context.Context, id string) (*model.AnalysisJob, error)
	listByProjectFn func(ctx context.Context, projectID string) ([]model.AnalysisJob, error)
	deleteFn        func(ctx context.Context, id string) error
}

func (m *mockAnalysisStore) Create(ctx context.Context, job *model.AnalysisJob) error {
	if m.createFn != nil {
		return m.createFn(ctx, job)
	}
	return nil
}

func (m *mockAnalysisStore) Update(ctx context.Context, id string, update model.AnalysisUpdate) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, update)
	}
	return nil
}

func (m *mockAnalysisStore) GetByID(ctx context.Context, id string) (*model.AnalysisJob, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockAnalysisStore) ListByProject(ctx context.Context, projectID string) ([]model.AnalysisJob, error) {
	if m.listByProjectFn != nil {
		return m.listByProjectFn(ctx, projectID)
	}
	return nil, nil
}

func (m *mockAnalysisStore) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// recordingStore is a stateful analysis store that applies updates in
// memory, so tests can observe intermediate progress and final state.
type recordingStore struct {
	mu       sync.Mutex
	jobs     map[string]*model.AnalysisJob
	progress []int
	stages   []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{jobs: map[string]*model.AnalysisJob{}}
}

func (r *recordingStore) Create(_ context.Context, job *model.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *recordingStore) Update(_ context.Context, id string, update model.AnalysisUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	update.Apply(job, job.UpdatedAt.Add(1))
	if update.Progress != nil {
		r.progress = append(r.progress, *update.Progress)
	}
	if update.CurrentStage != nil {
		r.stages = append(r.stages, *update.CurrentStage)
	}
	return nil
}

func (r *recordingStore) GetByID(_ context.Context, id string) (*model.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *recordingStore) ListByProject(_ context.Context, projectID string) ([]model.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.AnalysisJob{}
	for _, job := range r.jobs {
		if job.ProjectID == projectID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (r *recordingStore) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	return nil
}

type mockProjects struct {
	getProjectFn     func(ctx context.Context, projectID string) (*model.Project, error)
	listFilesFn      func(ctx context.Context, projectID string) ([]model.FileInfo, error)
	getFileContentFn func(ctx context.Context, projectID, path string) (string, error)
	importFn         func(ctx context.Context, repositoryID, owner, repo string) (string, error)
}

func (m *mockProjects) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	if m.getProjectFn != nil {
		return m.getProjectFn(ctx, projectID)
	}
	return nil, store.ErrNotFound
}

func (m *mockProjects) ListFiles(ctx context.Context, projectID string) ([]model.FileInfo, error) {
	if m.listFilesFn != nil {
		return m.listFilesFn(ctx, projectID)
	}
	return nil, nil
}

func (m *mockProjects) GetFileContent(ctx context.Context, projectID, path string) (string, error) {
	if m.getFileContentFn != nil {
		return m.getFileContentFn(ctx, projectID, path)
	}
	return "package main", nil
}

func (m *mockProjects) ImportFromRepository(ctx context.Context, repositoryID, owner, repo string) (string, error) {
	if m.importFn != nil {
		return m.importFn(ctx, repositoryID, owner, repo)
	}
	return "", store.ErrNotFound
}

type mockRepositories struct {
	getRepositoryFn func(ctx context.Context, repositoryID string) (*model.Repository, error)
}

func (m *mockRepositories) GetRepository(ctx context.Context, repositoryID string) (*model.Repository, error) {
	if m.getRepositoryFn != nil {
		return m.getRepositoryFn(ctx, repositoryID)
	}
	return nil, store.ErrNotFound
}

// memoryArchive is an in-memory stand-in for the on-disk result archive.
type memoryArchive struct {
	mu       sync.Mutex
	payloads map[string]map[string]json.RawMessage
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{payloads: map[string]map[string]json.RawMessage{}}
}

func (a *memoryArchive) Put(_ context.Context, jobID, stage string, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.payloads[jobID] == nil {
		a.payloads[jobID] = map[string]json.RawMessage{}
	}
	a.payloads[jobID][stage] = append([]byte(nil), payload...)
	return nil
}

func (a *memoryArchive) Get(_ context.Context, jobID, stage string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	payload, ok := a.payloads[jobID][stage]
	if !ok {
		return nil, archive.ErrNotFound
	}
	return payload, nil
}

func (a *memoryArchive) ListStages(_ context.Context, jobID string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	stages := []string{}
	for stage := range a.payloads[jobID] {
		stages = append(stages, stage)
	}
	return stages, nil
}

type mockAnalyzer struct {
	analyzeFn func(ctx context.Context, prompt string) (string, error)
	calls     []string
	mu        sync.Mutex
}

func (m *mockAnalyzer) Analyze(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, prompt)
	m.mu.Unlock()
	if m.analyzeFn != nil {
		return m.analyzeFn(ctx, prompt)
	}
	return "analysis text", nil
}

func (m *mockAnalyzer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
