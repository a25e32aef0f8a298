package stages

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/systemstart/gitops-release/pkg/api"
	"github.com/systemstart/gitops-release/pkg/command"
)

type scanStage struct {
	name   string
	cfg    *api.ScanConfig
	runner command.Runner
}

// NewScanStage creates a quality scan stage.
func NewScanStage(name string, cfg *api.ScanConfig, runner command.Runner) Stage {
	return &scanStage{name: name, cfg: cfg, runner: runner}
}

func (s *scanStage) Name() string { return s.name }

func (s *scanStage) Run(ctx context.Context, sc StageContext) (*StageResult, error) {
	token, err := requireSecret(sc, s.cfg.TokenEnv)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-Dsonar.projectKey=" + s.cfg.ProjectKey,
		"-Dsonar.organization=" + s.cfg.Organization,
		"-Dsonar.host.url=" + s.cfg.HostURL,
		"-Dsonar.branch.name=" + sc.Branch,
	}
	if s.cfg.CoverageReport != "" {
		args = append(args, fmt.Sprintf("-Dsonar.%s=%s", s.cfg.CoverageProperty, s.cfg.CoverageReport))
	}
	for _, k := range slices.Sorted(maps.Keys(s.cfg.Properties)) {
		args = append(args, fmt.Sprintf("-Dsonar.%s=%s", k, s.cfg.Properties[k]))
	}

	slog.Info("running quality scan", "stage", s.name, "project", s.cfg.ProjectKey, "branch", sc.Branch)

	_, err = s.runner.Run(ctx, command.Command{
		Dir:     sc.WorkDir,
		Name:    s.cfg.Executable,
		Args:    args,
		Env:     []string{"SONAR_TOKEN=" + token},
		Secrets: []string{token},
	})
	if err != nil {
		return nil, fmt.Errorf("quality scan: %w", err)
	}
	return &StageResult{}, nil
}
