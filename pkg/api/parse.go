package api

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadPipeline reads a .release.yaml file, sets Dir/FilePath, applies defaults and validates it.
func LoadPipeline(filename string) (*Pipeline, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline file: %w", err)
	}

	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing pipeline file: %w", err)
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	p.FilePath = absPath
	p.Dir = filepath.Dir(absPath)

	p.ApplyDefaults()

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validating pipeline %s: %w", filename, err)
	}

	return &p, nil
}

// ApplyDefaults fills in optional fields left empty in the YAML.
func (p *Pipeline) ApplyDefaults() {
	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}
	if p.MainBranch == "" {
		p.MainBranch = DefaultMainBranch
	}

	for i := range p.Stages {
		s := &p.Stages[i]
		switch {
		case s.Type == StageTypeScan && s.Scan != nil:
			if s.Scan.Executable == "" {
				s.Scan.Executable = DefaultScanner
			}
			if s.Scan.CoverageProperty == "" {
				s.Scan.CoverageProperty = DefaultCoverageProp
			}
		case s.Type == StageTypeImage && s.Image != nil:
			if s.Image.Dockerfile == "" {
				s.Image.Dockerfile = DefaultDockerfile
			}
			if s.Image.Context == "" {
				s.Image.Context = "."
			}
		case s.Type == StageTypeManifest && s.Manifest != nil:
			applyManifestDefaults(s.Manifest, p.MainBranch)
		}
	}
}

func applyManifestDefaults(m *ManifestConfig, mainBranch string) {
	if m.Branch == "" {
		m.Branch = mainBranch
	}
	if m.TagKey == "" {
		m.TagKey = DefaultTagKey
	}
	if m.VersionKey == "" {
		m.VersionKey = DefaultVersionKey
	}
	if m.MaxAttempts <= 0 {
		m.MaxAttempts = DefaultMaxAttempts
	}
	if m.Author.Name == "" {
		m.Author.Name = "release-bot"
	}
	if m.Author.Email == "" {
		m.Author.Email = "release-bot@users.noreply.github.com"
	}
	if m.CommitTemplate == "" {
		m.CommitTemplate = "Update image tag to {{ .Tag }} and appVersion to {{ .Version }}"
	}
	pr := &m.PullRequest
	if pr.APIURL == "" {
		pr.APIURL = "https://api.github.com"
	}
	if pr.Base == "" {
		pr.Base = m.Branch
	}
	if pr.BranchTemplate == "" {
		pr.BranchTemplate = "release/{{ .Tag }}"
	}
	if pr.TitleTemplate == "" {
		pr.TitleTemplate = "Update image tag to {{ .Tag }}"
	}
	if pr.BodyTemplate == "" {
		pr.BodyTemplate = "Automated update from `{{ .Branch }}`.\n\n- image tag: `{{ .Tag }}`\n- appVersion: `{{ .Version }}`\n- run: `{{ .RunID }}`\n"
	}
}
