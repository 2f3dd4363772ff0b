package project

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/homelabrg/codelens/common/id"
	"github.com/homelabrg/codelens/internal/model"
	"github.com/homelabrg/codelens/internal/store"
)

// RepositorySource resolves registered repository imports. Analysis job
// creation only needs the lookup; cloning happens out of band.
type RepositorySource interface {
	GetRepository(ctx context.Context, repositoryID string) (*model.Repository, error)
}

// GitSource clones repositories with the git CLI into a workspace directory
// keyed by repository id.
type GitSource struct {
	repos     store.RepositoryStore
	cloneBase string
}

func NewGitSource(repos store.RepositoryStore, cloneBase string) (*GitSource, error) {
	if err := os.MkdirAll(cloneBase, 0o755); err != nil {
		return nil, fmt.Errorf("creating clone directory: %w", err)
	}
	return &GitSource{repos: repos, cloneBase: cloneBase}, nil
}

// Register records a repository for import in pending status.
func (g *GitSource) Register(ctx context.Context, repoURL, branch string) (*model.Repository, error) {
	owner, name, err := parseOwnerRepo(repoURL)
	if err != nil {
		return nil, err
	}
	if branch == "" {
		branch = "main"
	}

	now := time.Now().UTC()
	repo := &model.Repository{
		ID:        id.New(),
		URL:       repoURL,
		Owner:     owner,
		Repo:      name,
		Branch:    branch,
		Status:    model.RepositoryPending,
		Languages: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := g.repos.Create(ctx, repo); err != nil {
		return nil, fmt.Errorf("creating repository record: %w", err)
	}
	return repo, nil
}

// Clone performs a shallow clone of a registered repository and records the
// outcome. The clone directory is removed on failure.
func (g *GitSource) Clone(ctx context.Context, repositoryID string) error {
	repo, err := g.repos.GetByID(ctx, repositoryID)
	if err != nil {
		return err
	}

	repo.Status = model.RepositoryCloning
	repo.UpdatedAt = time.Now().UTC()
	if err := g.repos.Update(ctx, repo); err != nil {
		return err
	}

	cloneDir := filepath.Join(g.cloneBase, repositoryID)
	slog.InfoContext(ctx, "cloning repository",
		"repository_id", repositoryID, "url", repo.URL, "branch", repo.Branch)

	cmd := exec.CommandContext(ctx, "git", "clone",
		"--depth", "1", "--branch", repo.Branch, repo.URL, cloneDir)
	if out, err := cmd.CombinedOutput(); err != nil {
		msg := fmt.Sprintf("git clone: %v: %s", err, strings.TrimSpace(string(out)))
		slog.ErrorContext(ctx, "repository clone failed",
			"repository_id", repositoryID, "error", msg)

		os.RemoveAll(cloneDir)
		repo.Status = model.RepositoryFailed
		repo.Error = &msg
		repo.UpdatedAt = time.Now().UTC()
		if uerr := g.repos.Update(ctx, repo); uerr != nil {
			return uerr
		}
		return fmt.Errorf("cloning repository: %w", err)
	}

	_, totalSize, languages, err := scanDirectory(cloneDir)
	if err != nil {
		return fmt.Errorf("scanning clone: %w", err)
	}

	now := time.Now().UTC()
	repo.Status = model.RepositoryReady
	repo.Error = nil
	repo.Languages = languages
	repo.SizeBytes = totalSize
	repo.ClonedAt = &now
	repo.UpdatedAt = now
	if err := g.repos.Update(ctx, repo); err != nil {
		return err
	}

	slog.InfoContext(ctx, "repository cloned",
		"repository_id", repositoryID, "size_bytes", totalSize, "languages", languages)
	return nil
}

func (g *GitSource) GetRepository(ctx context.Context, repositoryID string) (*model.Repository, error) {
	return g.repos.GetByID(ctx, repositoryID)
}

func (g *GitSource) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	return g.repos.List(ctx)
}

func parseOwnerRepo(repoURL string) (string, string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("parsing repository URL: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("cannot extract owner and repo from URL %q", repoURL)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
