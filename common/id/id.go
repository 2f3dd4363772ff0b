package id

import "github.com/google/uuid"

// New generates a new opaque unique identifier. Job, project and repository
// records are keyed by these; they are time-unordered random UUIDs, so
// ordering must always come from record timestamps.
func New() string {
	return uuid.NewString()
}
