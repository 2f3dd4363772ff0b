package store

import (
	"context"
	"time"

	"github.com/homelabrg/codelens/internal/model"
)

type fileAnalysisStore struct {
	records *collection[model.AnalysisJob]
}

// NewFileAnalysisStore creates a JSON-file-backed analysis store rooted at dir.
func NewFileAnalysisStore(dir string) (AnalysisStore, error) {
	records, err := newCollection(dir, "analysis", func(j *model.AnalysisJob) string { return j.ID })
	if err != nil {
		return nil, err
	}
	return &fileAnalysisStore{records: records}, nil
}

func (s *fileAnalysisStore) Create(ctx context.Context, job *model.AnalysisJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.records.insert(job)
}

func (s *fileAnalysisStore) Update(ctx context.Context, id string, update model.AnalysisUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	return s.records.mutate(id, func(job *model.AnalysisJob) {
		update.Apply(job, now)
	})
}

func (s *fileAnalysisStore) GetByID(ctx context.Context, id string) (*model.AnalysisJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.records.get(id)
}

func (s *fileAnalysisStore) ListByProject(ctx context.Context, projectID string) ([]model.AnalysisJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.records.list(func(j *model.AnalysisJob) bool { return j.ProjectID == projectID })
}

func (s *fileAnalysisStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.records.remove(id)
}
