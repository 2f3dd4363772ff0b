package store

import (
	"context"

	"github.com/homelabrg/codelens/internal/model"
)

type fileProjectStore struct {
	records *collection[model.Project]
}

// NewFileProjectStore creates a JSON-file-backed project record store.
func NewFileProjectStore(dir string) (ProjectStore, error) {
	records, err := newCollection(dir, "projects", func(p *model.Project) string { return p.ID })
	if err != nil {
		return nil, err
	}
	return &fileProjectStore{records: records}, nil
}

func (s *fileProjectStore) Create(ctx context.Context, project *model.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.records.insert(project)
}

func (s *fileProjectStore) Update(ctx context.Context, project *model.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.records.mutate(project.ID, func(p *model.Project) {
		*p = *project
	})
}

func (s *fileProjectStore) GetByID(ctx context.Context, id string) (*model.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.records.get(id)
}

func (s *fileProjectStore) List(ctx context.Context) ([]model.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.records.list(nil)
}

func (s *fileProjectStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.records.remove(id)
}
