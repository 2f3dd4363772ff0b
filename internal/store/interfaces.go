package store

import (
	"context"
	"errors"

	"github.com/homelabrg/codelens/internal/model"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// AnalysisStore defines the contract for analysis job record access.
// Update applies a typed partial update and always bumps updated_at.
type AnalysisStore interface {
	Create(ctx context.Context, job *model.AnalysisJob) error
	Update(ctx context.Context, id string, update model.AnalysisUpdate) error
	GetByID(ctx context.Context, id string) (*model.AnalysisJob, error)
	ListByProject(ctx context.Context, projectID string) ([]model.AnalysisJob, error)
	Delete(ctx context.Context, id string) error
}

// ProjectStore defines the contract for project record access
type ProjectStore interface {
	Create(ctx context.Context, project *model.Project) error
	Update(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context) ([]model.Project, error)
	Delete(ctx context.Context, id string) error
}

// RepositoryStore defines the contract for repository record access
type RepositoryStore interface {
	Create(ctx context.Context, repo *model.Repository) error
	Update(ctx context.Context, repo *model.Repository) error
	GetByID(ctx context.Context, id string) (*model.Repository, error)
	List(ctx context.Context) ([]model.Repository, error)
}
