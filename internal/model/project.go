package model

import "time"

// ProjectStatus tracks ingestion of a project's files.
type ProjectStatus string

const (
	ProjectPending    ProjectStatus = "pending"
	ProjectProcessing ProjectStatus = "processing"
	ProjectReady      ProjectStatus = "ready"
	ProjectFailed     ProjectStatus = "failed"
)

// Project is a named collection of source files, originating from an upload
// or a repository import.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	FileCount   int           `json:"file_count"`
	TotalSize   int64         `json:"total_size"`
	Languages   []string      `json:"languages"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// FileInfo describes one file within a project. Language is nil for files
// without a detected programming language.
type FileInfo struct {
	Path     string  `json:"path"`
	Size     int64   `json:"size"`
	Language *string `json:"language,omitempty"`
}
