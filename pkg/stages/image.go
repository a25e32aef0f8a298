package stages

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/systemstart/gitops-release/pkg/api"
	"github.com/systemstart/gitops-release/pkg/command"
)

const latestSuffix = "latest"

// NormalizeBranch makes a branch name usable in an image tag by replacing
// every path separator with a hyphen.
func NormalizeBranch(branch string) string {
	return strings.ReplaceAll(branch, "/", "-")
}

// ImageTags returns the versioned tag and its moving "latest" alias for branch at timestamp.
func ImageTags(branch, timestamp string) (versioned, latest string) {
	b := NormalizeBranch(branch)
	return b + "-" + timestamp, b + "-" + latestSuffix
}

type imageStage struct {
	name   string
	cfg    *api.ImageConfig
	runner command.Runner
}

// NewImageStage creates an image build-and-publish stage.
func NewImageStage(name string, cfg *api.ImageConfig, runner command.Runner) Stage {
	return &imageStage{name: name, cfg: cfg, runner: runner}
}

func (s *imageStage) Name() string { return s.name }

func (s *imageStage) Run(ctx context.Context, sc StageContext) (*StageResult, error) {
	if sc.Branch == "" {
		return nil, fmt.Errorf("no source branch to tag the image with")
	}

	timestamp := sc.Now.Format(TimestampFormat)
	tag, latest := ImageTags(sc.Branch, timestamp)
	versionedRef := s.cfg.Repository + ":" + tag
	latestRef := s.cfg.Repository + ":" + latest

	if !sc.DryRun {
		if err := s.login(ctx, sc); err != nil {
			return nil, err
		}
	}

	if err := s.build(ctx, sc.WorkDir, versionedRef, latestRef); err != nil {
		return nil, err
	}

	if sc.DryRun {
		slog.Info("dry run, not pushing image", "stage", s.name, "image", versionedRef)
	} else {
		if err := s.push(ctx, versionedRef); err != nil {
			return nil, err
		}
		if err := s.push(ctx, latestRef); err != nil {
			slog.Warn("latest tag push failed after versioned tag was published", "stage", s.name, "pushed", versionedRef)
			return nil, err
		}
	}

	return &StageResult{Outputs: map[string]string{
		OutputTag:       tag,
		OutputImage:     versionedRef,
		OutputTimestamp: timestamp,
	}}, nil
}

func (s *imageStage) login(ctx context.Context, sc StageContext) error {
	user, err := requireSecret(sc, s.cfg.UsernameEnv)
	if err != nil {
		return err
	}
	password, err := requireSecret(sc, s.cfg.PasswordEnv)
	if err != nil {
		return err
	}

	args := []string{"login", "--username", user, "--password-stdin"}
	if s.cfg.Registry != "" {
		args = append(args, s.cfg.Registry)
	}

	slog.Info("logging in to registry", "stage", s.name, "registry", s.cfg.Registry)
	_, err = s.runner.Run(ctx, command.Command{
		Name:    "docker",
		Args:    args,
		Stdin:   strings.NewReader(password),
		Secrets: []string{password},
	})
	if err != nil {
		return fmt.Errorf("registry login: %w", err)
	}
	return nil
}

func (s *imageStage) build(ctx context.Context, workDir string, refs ...string) error {
	dockerfile := s.cfg.Dockerfile
	if !filepath.IsAbs(dockerfile) {
		dockerfile = filepath.Join(workDir, dockerfile)
	}
	buildContext := s.cfg.Context
	if !filepath.IsAbs(buildContext) {
		buildContext = filepath.Join(workDir, buildContext)
	}

	args := []string{"build", "--file", dockerfile}
	for _, ref := range refs {
		args = append(args, "--tag", ref)
	}
	for _, k := range slices.Sorted(maps.Keys(s.cfg.BuildArgs)) {
		args = append(args, "--build-arg", k+"="+s.cfg.BuildArgs[k])
	}
	args = append(args, buildContext)

	slog.Info("building image", "stage", s.name, "tags", refs)
	if _, err := s.runner.Run(ctx, command.Command{Dir: workDir, Name: "docker", Args: args}); err != nil {
		return fmt.Errorf("image build: %w", err)
	}
	return nil
}

func (s *imageStage) push(ctx context.Context, ref string) error {
	slog.Info("pushing image", "stage", s.name, "image", ref)
	if _, err := s.runner.Run(ctx, command.Command{Name: "docker", Args: []string{"push", ref}}); err != nil {
		return fmt.Errorf("pushing %s: %w", ref, err)
	}
	return nil
}
