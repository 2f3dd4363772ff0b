// Package project manages project records and their on-disk file trees, and
// materializes cloned repositories as new projects.
package project

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/homelabrg/codelens/common/id"
	"github.com/homelabrg/codelens/internal/model"
	"github.com/homelabrg/codelens/internal/store"
)

// Service owns project records and the per-project directory trees under
// filesBase. Repository imports read from the clone workspace under
// cloneBase.
type Service struct {
	projects  store.ProjectStore
	filesBase string
	cloneBase string
}

func NewService(projects store.ProjectStore, filesBase, cloneBase string) (*Service, error) {
	if err := os.MkdirAll(filesBase, 0o755); err != nil {
		return nil, fmt.Errorf("creating files directory: %w", err)
	}
	return &Service{projects: projects, filesBase: filesBase, cloneBase: cloneBase}, nil
}

// CreateProject registers a new empty project in pending status and creates
// its directory.
func (s *Service) CreateProject(ctx context.Context, name, description string) (*model.Project, error) {
	now := time.Now().UTC()
	project := &model.Project{
		ID:          id.New(),
		Name:        name,
		Description: description,
		Status:      model.ProjectPending,
		Languages:   []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := os.MkdirAll(s.projectDir(project.ID), 0o755); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("creating project record: %w", err)
	}
	return project, nil
}

// AddFile stores one file under the project's tree at the given relative
// path, creating intermediate directories.
func (s *Service) AddFile(ctx context.Context, projectID, path string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := s.resolvePath(projectID, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating file directory: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// ProcessFiles scans the project's directory and refreshes the record's file
// count, size and language metadata, moving the project to ready. A scan
// failure moves it to failed instead.
func (s *Service) ProcessFiles(ctx context.Context, projectID string) error {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}

	project.Status = model.ProjectProcessing
	project.UpdatedAt = time.Now().UTC()
	if err := s.projects.Update(ctx, project); err != nil {
		return err
	}

	files, totalSize, languages, err := scanDirectory(s.projectDir(projectID))
	if err != nil {
		slog.ErrorContext(ctx, "project file scan failed",
			"project_id", projectID, "error", err)
		project.Status = model.ProjectFailed
		project.UpdatedAt = time.Now().UTC()
		if uerr := s.projects.Update(ctx, project); uerr != nil {
			return uerr
		}
		return fmt.Errorf("scanning project files: %w", err)
	}

	project.Status = model.ProjectReady
	project.FileCount = len(files)
	project.TotalSize = totalSize
	project.Languages = languages
	project.UpdatedAt = time.Now().UTC()
	if err := s.projects.Update(ctx, project); err != nil {
		return err
	}

	slog.InfoContext(ctx, "project files processed",
		"project_id", projectID, "file_count", len(files), "languages", languages)
	return nil
}

func (s *Service) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	return s.projects.GetByID(ctx, projectID)
}

func (s *Service) ListProjects(ctx context.Context) ([]model.Project, error) {
	return s.projects.List(ctx)
}

// ListFiles returns every file in the project's tree with size and detected
// language. Hidden files and version-control internals are excluded.
func (s *Service) ListFiles(ctx context.Context, projectID string) ([]model.FileInfo, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	files, _, _, err := scanDirectory(s.projectDir(projectID))
	if err != nil {
		return nil, fmt.Errorf("scanning project files: %w", err)
	}
	return files, nil
}

// GetFileContent reads one project file by relative path. Missing files map
// to store.ErrNotFound.
func (s *Service) GetFileContent(ctx context.Context, projectID, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	abs, err := s.resolvePath(projectID, path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}

// DeleteProject removes the project record and its file tree.
func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.projectDir(projectID)); err != nil {
		return fmt.Errorf("removing project directory: %w", err)
	}
	return s.projects.Delete(ctx, projectID)
}

// ImportFromRepository copies a cloned repository's tree into a fresh
// project and scans it. On failure the project record is left in failed
// status and the error is returned.
func (s *Service) ImportFromRepository(ctx context.Context, repositoryID, owner, repo string) (string, error) {
	project, err := s.CreateProject(ctx,
		fmt.Sprintf("%s/%s", owner, repo),
		fmt.Sprintf("Imported from repository %s/%s", owner, repo))
	if err != nil {
		return "", err
	}

	repoDir := filepath.Join(s.cloneBase, repositoryID)
	if err := copyTree(repoDir, s.projectDir(project.ID)); err != nil {
		project.Status = model.ProjectFailed
		project.UpdatedAt = time.Now().UTC()
		if uerr := s.projects.Update(ctx, project); uerr != nil {
			slog.ErrorContext(ctx, "marking imported project failed",
				"project_id", project.ID, "error", uerr)
		}
		return "", fmt.Errorf("copying repository files: %w", err)
	}

	if err := s.ProcessFiles(ctx, project.ID); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "repository imported",
		"repository_id", repositoryID, "project_id", project.ID)
	return project.ID, nil
}

func (s *Service) projectDir(projectID string) string {
	return filepath.Join(s.filesBase, projectID)
}

// resolvePath joins a relative file path with the project directory and
// rejects anything that would escape it.
func (s *Service) resolvePath(projectID, path string) (string, error) {
	dir := s.projectDir(projectID)
	abs := filepath.Join(dir, filepath.Clean("/"+path))
	if !strings.HasPrefix(abs, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file path %q", path)
	}
	return abs, nil
}

func scanDirectory(dir string) ([]model.FileInfo, int64, []string, error) {
	files := []model.FileInfo{}
	var totalSize int64
	languageSet := map[string]struct{}{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		file := model.FileInfo{Path: filepath.ToSlash(rel), Size: info.Size()}
		if lang, ok := DetectLanguage(path); ok {
			file.Language = &lang
			languageSet[lang] = struct{}{}
		}
		files = append(files, file)
		totalSize += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, nil, err
	}

	languages := make([]string, 0, len(languageSet))
	for lang := range languageSet {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return files, totalSize, languages, nil
}

func copyTree(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("repository directory: %w", err)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != src && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(dst, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}
