// Package archive persists per-stage analysis payloads on disk, independent
// of the job record store. Archived payloads survive a lost record update
// mid-run, which is what makes crash-partial result recovery possible.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no payload is archived for a (job, stage) pair.
var ErrNotFound = errors.New("archived result not found")

// Archive stores one JSON payload per (job, stage) pair. Each job id owns an
// isolated directory namespace, so listing or deleting one job never touches
// another's data.
type Archive struct {
	baseDir string
}

func New(baseDir string) (*Archive, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &Archive{baseDir: baseDir}, nil
}

// Put durably stores payload for the pair, overwriting any prior value.
// Writes go through a temp file and rename so that retried writes for the
// same stage can never leave a corrupt payload behind.
func (a *Archive) Put(ctx context.Context, jobID, stage string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(jobID, stage); err != nil {
		return err
	}

	dir := filepath.Join(a.baseDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating job directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, stage+".json")); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing payload: %w", err)
	}
	return nil
}

// Get returns the archived payload for the pair, or ErrNotFound.
func (a *Archive) Get(ctx context.Context, jobID, stage string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(jobID, stage); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(a.baseDir, jobID, stage+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return data, nil
}

// ListStages returns the stage names with archived payloads for the job.
// A job with no archive directory simply has no stages.
func (a *Archive) ListStages(ctx context.Context, jobID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(jobID, "stage"); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(a.baseDir, jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("listing job directory: %w", err)
	}

	stages := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		stages = append(stages, strings.TrimSuffix(name, ".json"))
	}
	return stages, nil
}

func validateKey(jobID, stage string) error {
	for _, part := range []string{jobID, stage} {
		if part == "" || strings.ContainsAny(part, `/\`) || strings.Contains(part, "..") {
			return fmt.Errorf("invalid archive key %q", part)
		}
	}
	return nil
}
