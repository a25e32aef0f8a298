package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/systemstart/gitops-release/pkg/api"
	"github.com/systemstart/gitops-release/pkg/command"
)

type buildStage struct {
	name   string
	cfg    *api.BuildConfig
	runner command.Runner
}

// NewBuildStage creates a build-and-test stage.
func NewBuildStage(name string, cfg *api.BuildConfig, runner command.Runner) Stage {
	return &buildStage{name: name, cfg: cfg, runner: runner}
}

func (s *buildStage) Name() string { return s.name }

func (s *buildStage) Run(ctx context.Context, sc StageContext) (*StageResult, error) {
	if err := s.checkRuntime(ctx, sc.WorkDir); err != nil {
		return nil, err
	}

	script := s.cfg.Script
	if !filepath.IsAbs(script) {
		script = filepath.Join(sc.WorkDir, script)
	}
	if err := makeExecutable(script); err != nil {
		return nil, err
	}

	slog.Info("running build", "stage", s.name, "script", s.cfg.Script)
	if _, err := s.runner.Run(ctx, command.Command{Dir: sc.WorkDir, Name: script, Args: s.cfg.BuildArgs}); err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	if len(s.cfg.TestArgs) > 0 {
		slog.Info("running tests", "stage", s.name)
		if _, err := s.runner.Run(ctx, command.Command{Dir: sc.WorkDir, Name: script, Args: s.cfg.TestArgs}); err != nil {
			return nil, fmt.Errorf("test: %w", err)
		}
	}

	artifactsDir := sc.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = sc.WorkDir
	}
	outDir := filepath.Join(artifactsDir, s.name)
	for _, a := range s.cfg.Artifacts {
		n, err := collectArtifact(sc.WorkDir, filepath.Join(outDir, a.Name), a.Paths, a.Exclude)
		if err != nil {
			return nil, fmt.Errorf("collecting artifact %s: %w", a.Name, err)
		}
		if n == 0 {
			slog.Warn("no files found for artifact", "stage", s.name, "artifact", a.Name, "paths", a.Paths)
			continue
		}
		slog.Info("collected artifact", "stage", s.name, "artifact", a.Name, "files", n)
	}

	return &StageResult{Outputs: map[string]string{OutputArtifacts: outDir}}, nil
}

func (s *buildStage) checkRuntime(ctx context.Context, workDir string) error {
	rt := s.cfg.Runtime
	if rt == nil {
		return nil
	}
	out, err := s.runner.Run(ctx, command.Command{Dir: workDir, Name: rt.Command, Args: rt.Args, MergeStderr: true})
	if err != nil {
		return fmt.Errorf("checking runtime: %w", err)
	}
	if rt.Expect != "" && !strings.Contains(string(out), rt.Expect) {
		return fmt.Errorf("runtime %s does not report %q: %s", rt.Command, rt.Expect, strings.TrimSpace(string(out)))
	}
	slog.Debug("runtime check passed", "command", rt.Command, "expect", rt.Expect)
	return nil
}

func makeExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("build script: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("build script %s is a directory", path)
	}
	if err := os.Chmod(path, info.Mode().Perm()|0o111); err != nil {
		return fmt.Errorf("marking build script executable: %w", err)
	}
	return nil
}

// collectArtifact copies files matching include but not exclude from workDir into dst,
// keeping their relative paths, and returns the number of files copied.
func collectArtifact(workDir, dst string, include, exclude []string) (int, error) {
	files, err := filterFiles(os.DirFS(workDir), include, exclude)
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		if err := copyFile(filepath.Join(workDir, f), filepath.Join(dst, f)); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("creating directory for %s: %w", dst, err)
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}
