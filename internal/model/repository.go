package model

import "time"

// RepositoryStatus tracks the clone lifecycle of an imported repository.
type RepositoryStatus string

const (
	RepositoryPending RepositoryStatus = "pending"
	RepositoryCloning RepositoryStatus = "cloning"
	RepositoryReady   RepositoryStatus = "ready"
	RepositoryFailed  RepositoryStatus = "failed"
)

// Repository is a remote repository registered for import.
type Repository struct {
	ID        string           `json:"id"`
	URL       string           `json:"url"`
	Owner     string           `json:"owner"`
	Repo      string           `json:"repo"`
	Branch    string           `json:"branch"`
	Status    RepositoryStatus `json:"status"`
	Error     *string          `json:"error,omitempty"`
	Languages []string         `json:"languages"`
	SizeBytes int64            `json:"size_bytes"`
	ClonedAt  *time.Time       `json:"cloned_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
