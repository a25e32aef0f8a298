package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

var validStageTypes = map[string]bool{
	StageTypeBuild:    true,
	StageTypeScan:     true,
	StageTypeImage:    true,
	StageTypeManifest: true,
}

// Validate checks the pipeline configuration for errors.
func (p *Pipeline) Validate() error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("pipeline has no stages")
	}

	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", p.Timezone, err)
	}

	if err := p.Triggers.validate(); err != nil {
		return fmt.Errorf("triggers: %w", err)
	}

	names := make(map[string]int)
	imageProducers := make(map[string]bool)

	for i, stage := range p.Stages {
		if stage.Name == "" {
			return fmt.Errorf("stage %d: name is required", i)
		}
		if prev, exists := names[stage.Name]; exists {
			return fmt.Errorf("stage %d: duplicate stage name %q (first defined at stage %d)", i, stage.Name, prev)
		}
		names[stage.Name] = i

		if !validStageTypes[stage.Type] {
			return fmt.Errorf("stage %q: unknown type %q", stage.Name, stage.Type)
		}

		if err := validateStageConfig(stage, imageProducers); err != nil {
			return fmt.Errorf("stage %q: %w", stage.Name, err)
		}

		if stage.Type == StageTypeImage {
			imageProducers[stage.Name] = true
		}
	}

	return nil
}

func (t TriggerConfig) validate() error {
	var patterns []string
	if t.PullRequest != nil {
		if len(t.PullRequest.Actions) == 0 {
			return fmt.Errorf("pullRequest.actions is required")
		}
		patterns = append(patterns, t.PullRequest.Branches...)
	}
	if t.Push != nil {
		if len(t.Push.Branches) == 0 {
			return fmt.Errorf("push.branches is required")
		}
		patterns = append(patterns, t.Push.Branches...)
	}
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("branch pattern %q is not valid", pattern)
		}
	}
	return nil
}

func validateStageConfig(stage StageConfig, imageProducers map[string]bool) error {
	switch stage.Type {
	case StageTypeBuild:
		return validateBuildConfig(stage)
	case StageTypeScan:
		return validateScanConfig(stage)
	case StageTypeImage:
		return validateImageConfig(stage)
	case StageTypeManifest:
		return validateManifestConfig(stage, imageProducers)
	}
	return nil
}

func validateBuildConfig(stage StageConfig) error {
	if stage.Build == nil {
		return fmt.Errorf("build config is required")
	}
	if stage.Build.Script == "" {
		return fmt.Errorf("build.script is required")
	}
	if rt := stage.Build.Runtime; rt != nil && rt.Command == "" {
		return fmt.Errorf("build.runtime.command is required")
	}
	seen := make(map[string]bool)
	for i, a := range stage.Build.Artifacts {
		if a.Name == "" {
			return fmt.Errorf("build.artifacts[%d]: name is required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("build.artifacts[%d]: duplicate name %q", i, a.Name)
		}
		seen[a.Name] = true
		for _, pattern := range a.Paths {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("build.artifacts[%d]: path pattern %q is not valid", i, pattern)
			}
		}
		for _, pattern := range a.Exclude {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("build.artifacts[%d]: exclude pattern %q is not valid", i, pattern)
			}
		}
	}
	return nil
}

func validateScanConfig(stage StageConfig) error {
	if stage.Scan == nil {
		return fmt.Errorf("scan config is required")
	}
	var missing []string
	if stage.Scan.ProjectKey == "" {
		missing = append(missing, "scan.projectKey")
	}
	if stage.Scan.Organization == "" {
		missing = append(missing, "scan.organization")
	}
	if stage.Scan.HostURL == "" {
		missing = append(missing, "scan.hostURL")
	}
	if stage.Scan.TokenEnv == "" {
		missing = append(missing, "scan.tokenEnv")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required", strings.Join(missing, ", "))
	}
	return nil
}

func validateImageConfig(stage StageConfig) error {
	if stage.Image == nil {
		return fmt.Errorf("image config is required")
	}
	if stage.Image.Repository == "" {
		return fmt.Errorf("image.repository is required")
	}
	if stage.Image.UsernameEnv == "" || stage.Image.PasswordEnv == "" {
		return fmt.Errorf("image.usernameEnv and image.passwordEnv are required")
	}
	return nil
}

func validateManifestConfig(stage StageConfig, imageProducers map[string]bool) error {
	m := stage.Manifest
	if m == nil {
		return fmt.Errorf("manifest config is required")
	}
	if m.Image == "" {
		return fmt.Errorf("manifest.image is required")
	}
	if !imageProducers[m.Image] {
		return fmt.Errorf("manifest.image %q does not reference an earlier image stage", m.Image)
	}
	if m.URL == "" {
		return fmt.Errorf("manifest.url is required")
	}
	if m.TokenEnv == "" {
		return fmt.Errorf("manifest.tokenEnv is required")
	}
	if m.ValuesFile == "" {
		return fmt.Errorf("manifest.valuesFile is required")
	}
	if m.ChartFile == "" {
		return fmt.Errorf("manifest.chartFile is required")
	}
	if m.PullRequest.Repository != "" && strings.Count(m.PullRequest.Repository, "/") != 1 {
		return fmt.Errorf("manifest.pullRequest.repository %q must be owner/name", m.PullRequest.Repository)
	}
	return nil
}
