package store

import (
	"context"

	"github.com/homelabrg/codelens/internal/model"
)

type fileRepositoryStore struct {
	records *collection[model.Repository]
}

// NewFileRepositoryStore creates a JSON-file-backed repository record store.
func NewFileRepositoryStore(dir string) (RepositoryStore, error) {
	records, err := newCollection(dir, "repositories", func(r *model.Repository) string { return r.ID })
	if err != nil {
		return nil, err
	}
	return &fileRepositoryStore{records: records}, nil
}

func (s *fileRepositoryStore) Create(ctx context.Context, repo *model.Repository) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.records.insert(repo)
}

func (s *fileRepositoryStore) Update(ctx context.Context, repo *model.Repository) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.records.mutate(repo.ID, func(r *model.Repository) {
		*r = *repo
	})
}

func (s *fileRepositoryStore) GetByID(ctx context.Context, id string) (*model.Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.records.get(id)
}

func (s *fileRepositoryStore) List(ctx context.Context) ([]model.Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.records.list(nil)
}
