package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/systemstart/gitops-release/pkg/command"
)

// helmLint runs helm lint on the chart directory after its files were edited.
func helmLint(ctx context.Context, runner command.Runner, chartDir string) error {
	slog.Info("linting chart", "chart", chartDir)

	if _, err := runner.Run(ctx, command.Command{Dir: chartDir, Name: "helm", Args: []string{"lint", chartDir}}); err != nil {
		return fmt.Errorf("helm lint failed: %w", err)
	}
	return nil
}
