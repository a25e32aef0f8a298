package stages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"

	"github.com/systemstart/gitops-release/pkg/api"
	"github.com/systemstart/gitops-release/pkg/command"
	"github.com/systemstart/gitops-release/pkg/forge"
	"github.com/systemstart/gitops-release/pkg/gitops"
	"github.com/systemstart/gitops-release/pkg/manifest"
	"github.com/systemstart/gitops-release/pkg/render"
	"github.com/systemstart/gitops-release/pkg/version"
)

// Values of the result output.
const (
	ResultPushed      = "pushed"
	ResultPullRequest = "pull-request"
	ResultUnchanged   = "unchanged"
	ResultDryRun      = "dry-run"
)

type manifestStage struct {
	name     string
	cfg      *api.ManifestConfig
	runner   command.Runner
	newForge func(ctx context.Context, apiURL, token string) forge.Creator
}

// NewManifestStage creates the stage that writes the published image tag into
// the manifests repository.
func NewManifestStage(name string, cfg *api.ManifestConfig, deps Deps) Stage {
	return &manifestStage{name: name, cfg: cfg, runner: deps.Runner, newForge: deps.NewForge}
}

func (s *manifestStage) Name() string { return s.name }

func (s *manifestStage) Run(ctx context.Context, sc StageContext) (*StageResult, error) {
	image := sc.Inputs[s.cfg.Image]
	tag := image[OutputTag]
	if tag == "" {
		return nil, fmt.Errorf("stage %q published no image tag", s.cfg.Image)
	}

	token, err := requireSecret(sc, s.cfg.TokenEnv)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		result, err := s.attempt(ctx, sc, image, token)
		if errors.Is(err, gitops.ErrStaleRef) && attempt < s.cfg.MaxAttempts {
			slog.Warn("manifests branch moved during update, retrying from fresh clone",
				"stage", s.name, "attempt", attempt, "maxAttempts", s.cfg.MaxAttempts)
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

// attempt runs one clone-edit-publish cycle against a fresh clone.
func (s *manifestStage) attempt(ctx context.Context, sc StageContext, image map[string]string, token string) (*StageResult, error) {
	dir, err := os.MkdirTemp("", "manifests-")
	if err != nil {
		return nil, fmt.Errorf("creating clone directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to remove clone directory", "dir", dir, "error", err)
		}
	}()

	slog.Info("cloning manifests repository", "stage", s.name, "branch", s.cfg.Branch)
	repo, err := gitops.Clone(ctx, dir, gitops.CloneOptions{URL: s.cfg.URL, Branch: s.cfg.Branch, Token: token})
	if err != nil {
		return nil, err
	}

	edit, err := s.edit(ctx, dir, sc, image[OutputTag])
	if err != nil {
		return nil, err
	}

	outputs := map[string]string{OutputVersion: edit.version}

	changed, err := repo.HasChanges()
	if err != nil {
		return nil, err
	}
	if !changed {
		slog.Info("manifests already up to date, nothing to commit", "stage", s.name, "tag", edit.tag)
		outputs[OutputResult] = ResultUnchanged
		return &StageResult{Outputs: outputs}, nil
	}

	data := s.templateData(sc, image, edit)
	message, err := render.String("commit", s.cfg.CommitTemplate, data)
	if err != nil {
		return nil, err
	}
	author := gitops.Signature{Name: s.cfg.Author.Name, Email: s.cfg.Author.Email, When: sc.Now}

	if sc.Ref == sc.MainBranch {
		return s.publishDirect(ctx, sc, repo, message, author, outputs)
	}
	return s.publishPullRequest(ctx, sc, repo, edit, message, author, data, token, outputs)
}

type manifestEdit struct {
	tag             string
	previousTag     string
	version         string
	previousVersion string
}

func (s *manifestStage) edit(ctx context.Context, dir string, sc StageContext, tag string) (manifestEdit, error) {
	values := filepath.Join(dir, s.cfg.ValuesFile)
	chart := filepath.Join(dir, s.cfg.ChartFile)

	if err := manifest.RequireFile(values); err != nil {
		return manifestEdit{}, err
	}

	previousTag, err := manifest.UpdateField(values, s.cfg.TagKey, tag)
	if err != nil {
		return manifestEdit{}, fmt.Errorf("updating image tag: %w", err)
	}
	slog.Info("updated image tag", "stage", s.name, "file", s.cfg.ValuesFile, "from", previousTag, "to", tag)

	stored, err := manifest.ReadField(chart, s.cfg.VersionKey)
	if err != nil {
		return manifestEdit{}, fmt.Errorf("reading %s: %w", s.cfg.VersionKey, err)
	}

	next := stored
	if s.cfg.BumpsVersion() {
		next, err = version.Next(stored, sc.Now)
		if err != nil {
			return manifestEdit{}, err
		}
		if _, err := manifest.UpdateField(chart, s.cfg.VersionKey, next); err != nil {
			return manifestEdit{}, fmt.Errorf("updating %s: %w", s.cfg.VersionKey, err)
		}
		slog.Info("updated chart version", "stage", s.name, "file", s.cfg.ChartFile, "from", stored, "to", next)
	}

	if s.cfg.Lint {
		if err := helmLint(ctx, s.runner, filepath.Dir(chart)); err != nil {
			return manifestEdit{}, err
		}
	}

	return manifestEdit{tag: tag, previousTag: previousTag, version: next, previousVersion: stored}, nil
}

func (s *manifestStage) templateData(sc StageContext, image map[string]string, edit manifestEdit) map[string]any {
	data := make(map[string]any, len(sc.TemplateData)+8)
	maps.Copy(data, sc.TemplateData)
	maps.Copy(data, map[string]any{
		"Tag":             edit.tag,
		"PreviousTag":     edit.previousTag,
		"Version":         edit.version,
		"PreviousVersion": edit.previousVersion,
		"Image":           image[OutputImage],
		"Branch":          sc.Branch,
		"Timestamp":       sc.Now.Format(TimestampFormat),
		"RunID":           sc.RunID,
	})
	return data
}

func (s *manifestStage) publishDirect(ctx context.Context, sc StageContext, repo *gitops.Repository, message string, author gitops.Signature, outputs map[string]string) (*StageResult, error) {
	if err := repo.StageAll(); err != nil {
		return nil, err
	}
	commit, err := repo.Commit(message, author)
	if err != nil {
		return nil, err
	}
	outputs[OutputCommit] = commit
	outputs[OutputBranch] = s.cfg.Branch

	if sc.DryRun {
		slog.Info("dry run, not pushing", "stage", s.name, "branch", s.cfg.Branch, "commit", commit)
		outputs[OutputResult] = ResultDryRun
		return &StageResult{Outputs: outputs}, nil
	}

	if err := repo.PushBase(ctx); err != nil {
		return nil, err
	}
	slog.Info("pushed manifest update", "stage", s.name, "branch", s.cfg.Branch, "commit", commit)
	outputs[OutputResult] = ResultPushed
	return &StageResult{Outputs: outputs}, nil
}

func (s *manifestStage) publishPullRequest(ctx context.Context, sc StageContext, repo *gitops.Repository, edit manifestEdit, message string, author gitops.Signature, data map[string]any, token string, outputs map[string]string) (*StageResult, error) {
	pr := s.cfg.PullRequest

	branch, err := render.String("branch", pr.BranchTemplate, data)
	if err != nil {
		return nil, err
	}
	if err := repo.CreateBranch(branch); err != nil {
		return nil, err
	}

	// With the tag already in place the version bump is the whole diff.
	paths := []string{s.cfg.ValuesFile}
	if pr.IncludeChart || edit.tag == edit.previousTag {
		paths = append(paths, s.cfg.ChartFile)
	}
	if err := repo.Stage(paths...); err != nil {
		return nil, err
	}
	commit, err := repo.Commit(message, author)
	if err != nil {
		return nil, err
	}
	outputs[OutputCommit] = commit
	outputs[OutputBranch] = branch

	title, err := render.String("title", pr.TitleTemplate, data)
	if err != nil {
		return nil, err
	}
	body, err := render.String("body", pr.BodyTemplate, data)
	if err != nil {
		return nil, err
	}

	if sc.DryRun {
		slog.Info("dry run, not opening pull request", "stage", s.name, "branch", branch, "title", title)
		outputs[OutputResult] = ResultDryRun
		return &StageResult{Outputs: outputs}, nil
	}

	if err := repo.PushBranch(ctx, branch); err != nil {
		return nil, err
	}

	repository := pr.Repository
	if repository == "" {
		repository, err = forge.RepositoryFromURL(s.cfg.URL)
		if err != nil {
			return nil, err
		}
	}

	url, err := s.newForge(ctx, pr.APIURL, token).CreatePullRequest(ctx, forge.PullRequest{
		Repository: repository,
		Title:      title,
		Body:       body,
		Head:       branch,
		Base:       pr.Base,
	})
	if err != nil {
		return nil, fmt.Errorf("opening pull request: %w", err)
	}

	slog.Info("opened pull request", "stage", s.name, "branch", branch, "url", url)
	outputs[OutputPullRequest] = url
	outputs[OutputResult] = ResultPullRequest
	return &StageResult{Outputs: outputs}, nil
}
