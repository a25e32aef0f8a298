package stages

import (
	"context"
	"fmt"

	"github.com/systemstart/gitops-release/pkg/api"
	"github.com/systemstart/gitops-release/pkg/command"
	"github.com/systemstart/gitops-release/pkg/forge"
)

// Deps are the collaborators stages use to reach external systems.
type Deps struct {
	Runner   command.Runner
	NewForge func(ctx context.Context, apiURL, token string) forge.Creator
}

// DefaultDeps runs real processes and talks to GitHub.
func DefaultDeps(stream bool) Deps {
	return Deps{
		Runner: command.NewExecRunner(stream),
		NewForge: func(ctx context.Context, apiURL, token string) forge.Creator {
			return forge.NewGitHub(ctx, apiURL, token)
		},
	}
}

// NewStage creates a Stage implementation from a StageConfig.
func NewStage(cfg api.StageConfig, deps Deps) (Stage, error) {
	switch cfg.Type {
	case api.StageTypeBuild:
		return NewBuildStage(cfg.Name, cfg.Build, deps.Runner), nil
	case api.StageTypeScan:
		return NewScanStage(cfg.Name, cfg.Scan, deps.Runner), nil
	case api.StageTypeImage:
		return NewImageStage(cfg.Name, cfg.Image, deps.Runner), nil
	case api.StageTypeManifest:
		return NewManifestStage(cfg.Name, cfg.Manifest, deps), nil
	default:
		return nil, fmt.Errorf("unknown stage type: %s", cfg.Type)
	}
}

func requireSecret(sc StageContext, name string) (string, error) {
	if sc.Secret == nil {
		return "", fmt.Errorf("secret %s is not set", name)
	}
	v := sc.Secret(name)
	if v == "" {
		return "", fmt.Errorf("secret %s is not set", name)
	}
	return v, nil
}
