package gitops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

const remoteName = "origin"

// ErrStaleRef is returned when the remote branch moved since the clone.
var ErrStaleRef = errors.New("remote branch changed since clone")

// CloneOptions describes the repository to clone.
type CloneOptions struct {
	URL    string
	Branch string
	Token  string // HTTP token; empty for anonymous or local remotes
}

// Signature identifies the author of commits.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Repository is a working clone of a single branch.
type Repository struct {
	repo   *git.Repository
	dir    string
	branch string
	base   plumbing.Hash
	auth   transport.AuthMethod
}

// Clone clones opts.Branch of opts.URL into dir.
func Clone(ctx context.Context, dir string, opts CloneOptions) (*Repository, error) {
	auth := tokenAuth(opts.Token)

	r, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           opts.URL,
		ReferenceName: plumbing.NewBranchReferenceName(opts.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil {
		return nil, fmt.Errorf("cloning %s@%s: %w", redact(opts.URL), opts.Branch, err)
	}

	head, err := r.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	slog.Debug("cloned manifests repository", "url", redact(opts.URL), "branch", opts.Branch, "head", head.Hash().String())

	return &Repository{
		repo:   r,
		dir:    dir,
		branch: opts.Branch,
		base:   head.Hash(),
		auth:   auth,
	}, nil
}

func tokenAuth(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	return &http.BasicAuth{
		Username: "x-access-token",
		Password: token,
	}
}

// Dir is the worktree root.
func (r *Repository) Dir() string { return r.dir }

// Base is the commit the clone started from.
func (r *Repository) Base() string { return r.base.String() }

// HasChanges reports whether the worktree differs from HEAD.
func (r *Repository) HasChanges() (bool, error) {
	w, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("opening worktree: %w", err)
	}
	st, err := w.Status()
	if err != nil {
		return false, fmt.Errorf("reading status: %w", err)
	}
	return !st.IsClean(), nil
}

// StageAll stages every change in the worktree.
func (r *Repository) StageAll() error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}
	if err := w.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}
	return nil
}

// Stage stages the given worktree-relative paths.
func (r *Repository) Stage(paths ...string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}
	for _, p := range paths {
		if _, err := w.Add(p); err != nil {
			return fmt.Errorf("staging %s: %w", p, err)
		}
	}
	return nil
}

// Commit records the staged changes and returns the commit hash.
func (r *Repository) Commit(message string, author Signature) (string, error) {
	w, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("opening worktree: %w", err)
	}
	hash, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  author.When,
		},
	})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	return hash.String(), nil
}

// CreateBranch switches to a new local branch at HEAD, keeping worktree and index changes.
func (r *Repository) CreateBranch(name string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}
	err = w.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
		Keep:   true,
	})
	if err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	return nil
}

// PushBase pushes the cloned branch only if the remote still points at the
// commit the clone started from. ErrStaleRef is returned otherwise.
func (r *Repository) PushBase(ctx context.Context) error {
	ref := plumbing.NewBranchReferenceName(r.branch)
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName:        remoteName,
		RefSpecs:          []config.RefSpec{config.RefSpec(ref + ":" + ref)},
		RequireRemoteRefs: []config.RefSpec{config.RefSpec(r.base.String() + ":" + ref.String())},
		Auth:              r.auth,
	})
	if err == nil {
		return nil
	}
	if isStale(err) {
		return fmt.Errorf("%w: %v", ErrStaleRef, err)
	}
	return fmt.Errorf("pushing %s: %w", r.branch, err)
}

// PushBranch pushes a new branch created with CreateBranch.
func (r *Repository) PushBranch(ctx context.Context, name string) error {
	ref := plumbing.NewBranchReferenceName(name)
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{config.RefSpec(ref + ":" + ref)},
		Auth:       r.auth,
	})
	if err != nil {
		return fmt.Errorf("pushing %s: %w", name, err)
	}
	return nil
}

func isStale(err error) bool {
	if errors.Is(err, git.ErrNonFastForwardUpdate) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "required to be") || strings.Contains(msg, "non-fast-forward")
}

// redact drops credentials embedded in a remote URL.
func redact(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://" + rest[at+1:]
	}
	return url
}
