package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// Author identifies who commits recorded changes.
type Author struct {
	Name  string
	Email string
}

// Git commits changes to the repository that contains a directory.
type Git struct {
	repo   *git.Repository
	root   string
	author Author
	logger *zap.Logger
	now    func() time.Time
}

// OpenGit opens the repository containing dir, walking up to find .git.
func OpenGit(dir string, author Author, logger *zap.Logger) (*Git, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository for %s: %w", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}

	return &Git{
		repo:   repo,
		root:   canonical(wt.Filesystem.Root()),
		author: author,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Root returns the worktree root directory.
func (g *Git) Root() string { return g.root }

// RecordChange stages paths and commits them with label as the message.
func (g *Git) RecordChange(ctx context.Context, paths []string, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wt, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}

	for _, p := range paths {
		rel, err := g.relative(p)
		if err != nil {
			return err
		}
		if _, err := wt.Add(rel); err != nil {
			return fmt.Errorf("staging %s: %w", rel, err)
		}
	}

	hash, err := wt.Commit(label, &git.CommitOptions{
		Author: &object.Signature{
			Name:  g.author.Name,
			Email: g.author.Email,
			When:  g.now(),
		},
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return fmt.Errorf("committing %q: nothing to commit", label)
		}
		return fmt.Errorf("committing %q: %w", label, err)
	}

	g.logger.Info("recorded change",
		zap.String("label", label),
		zap.String("commit", hash.String()[:12]),
	)
	return nil
}

// HasPendingChange reports whether path is modified, staged or untracked
// relative to HEAD.
func (g *Git) HasPendingChange(path string) (bool, error) {
	rel, err := g.relative(path)
	if err != nil {
		return false, err
	}
	wt, err := g.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("opening worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("reading worktree status: %w", err)
	}

	fs, ok := status[rel]
	if !ok {
		return false, nil
	}
	return fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified, nil
}

// relative converts path to a slash-separated path relative to the worktree.
func (g *Git) relative(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	abs = filepath.Join(canonical(filepath.Dir(abs)), filepath.Base(abs))

	rel, err := filepath.Rel(g.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the repository at %s", path, g.root)
	}
	return filepath.ToSlash(rel), nil
}

// canonical resolves symlinks in dir, falling back to the cleaned path.
func canonical(dir string) string {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved
	}
	return filepath.Clean(dir)
}
