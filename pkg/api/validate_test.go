package api

import (
	"strings"
	"testing"
)

func imageStage(name string) StageConfig {
	return StageConfig{
		Name: name,
		Type: StageTypeImage,
		Image: &ImageConfig{
			Repository:  "acme/api",
			UsernameEnv: "U",
			PasswordEnv: "P",
		},
	}
}

func manifestStage(name, image string) StageConfig {
	return StageConfig{
		Name: name,
		Type: StageTypeManifest,
		Manifest: &ManifestConfig{
			Image:      image,
			URL:        "https://github.com/acme/manifests.git",
			TokenEnv:   "T",
			ValuesFile: "values.yaml",
			ChartFile:  "Chart.yaml",
		},
	}
}

func TestValidate_ValidPipeline(t *testing.T) {
	p := &Pipeline{
		Timezone: "Europe/Berlin",
		Triggers: TriggerConfig{
			Push: &PushTrigger{Branches: []string{"main", "dev/**"}},
		},
		Stages: []StageConfig{
			{Name: "build", Type: StageTypeBuild, Build: &BuildConfig{Script: "./gradlew"}},
			imageStage("publish"),
			manifestStage("deploy", "publish"),
		},
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid pipeline, got error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		p       Pipeline
		wantErr string
	}{
		{
			name:    "empty",
			p:       Pipeline{},
			wantErr: "no stages",
		},
		{
			name:    "bad timezone",
			p:       Pipeline{Timezone: "Mars/Olympus", Stages: []StageConfig{imageStage("a")}},
			wantErr: "timezone",
		},
		{
			name:    "missing name",
			p:       Pipeline{Stages: []StageConfig{{Type: StageTypeBuild, Build: &BuildConfig{Script: "x"}}}},
			wantErr: "name is required",
		},
		{
			name:    "duplicate name",
			p:       Pipeline{Stages: []StageConfig{imageStage("a"), imageStage("a")}},
			wantErr: "duplicate stage name",
		},
		{
			name:    "unknown type",
			p:       Pipeline{Stages: []StageConfig{{Name: "a", Type: "deploy"}}},
			wantErr: "unknown type",
		},
		{
			name:    "build without config",
			p:       Pipeline{Stages: []StageConfig{{Name: "a", Type: StageTypeBuild}}},
			wantErr: "build config is required",
		},
		{
			name:    "build without script",
			p:       Pipeline{Stages: []StageConfig{{Name: "a", Type: StageTypeBuild, Build: &BuildConfig{}}}},
			wantErr: "build.script is required",
		},
		{
			name: "duplicate artifact",
			p: Pipeline{Stages: []StageConfig{{Name: "a", Type: StageTypeBuild, Build: &BuildConfig{
				Script:    "x",
				Artifacts: []Artifact{{Name: "c"}, {Name: "c"}},
			}}}},
			wantErr: "duplicate name",
		},
		{
			name: "invalid artifact exclude pattern",
			p: Pipeline{Stages: []StageConfig{{Name: "a", Type: StageTypeBuild, Build: &BuildConfig{
				Script:    "x",
				Artifacts: []Artifact{{Name: "c", Paths: []string{"build/**"}, Exclude: []string{"build/[x"}}},
			}}}},
			wantErr: `exclude pattern "build/[x" is not valid`,
		},
		{
			name:    "scan missing fields",
			p:       Pipeline{Stages: []StageConfig{{Name: "a", Type: StageTypeScan, Scan: &ScanConfig{ProjectKey: "k"}}}},
			wantErr: "scan.organization, scan.hostURL, scan.tokenEnv required",
		},
		{
			name:    "image without repository",
			p:       Pipeline{Stages: []StageConfig{{Name: "a", Type: StageTypeImage, Image: &ImageConfig{}}}},
			wantErr: "image.repository is required",
		},
		{
			name:    "manifest references missing image stage",
			p:       Pipeline{Stages: []StageConfig{manifestStage("deploy", "publish")}},
			wantErr: "does not reference an earlier image stage",
		},
		{
			name:    "manifest references later image stage",
			p:       Pipeline{Stages: []StageConfig{manifestStage("deploy", "publish"), imageStage("publish")}},
			wantErr: "does not reference an earlier image stage",
		},
		{
			name:    "push trigger without branches",
			p:       Pipeline{Triggers: TriggerConfig{Push: &PushTrigger{}}, Stages: []StageConfig{imageStage("a")}},
			wantErr: "push.branches is required",
		},
		{
			name: "invalid branch pattern",
			p: Pipeline{
				Triggers: TriggerConfig{Push: &PushTrigger{Branches: []string{"dev/[a"}}},
				Stages:   []StageConfig{imageStage("a")},
			},
			wantErr: "not valid",
		},
		{
			name: "pull request trigger without actions",
			p: Pipeline{
				Triggers: TriggerConfig{PullRequest: &PullRequestTrigger{Branches: []string{"main"}}},
				Stages:   []StageConfig{imageStage("a")},
			},
			wantErr: "pullRequest.actions is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.p
			if p.Timezone == "" {
				p.Timezone = "UTC"
			}
			err := p.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_PullRequestRepositoryFormat(t *testing.T) {
	m := manifestStage("deploy", "publish")
	m.Manifest.PullRequest.Repository = "manifests"
	p := &Pipeline{Timezone: "UTC", Stages: []StageConfig{imageStage("publish"), m}}

	err := p.Validate()
	if err == nil || !strings.Contains(err.Error(), "must be owner/name") {
		t.Fatalf("expected owner/name error, got %v", err)
	}
}
