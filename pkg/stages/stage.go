package stages

import (
	"context"
	"time"
)

// Output keys published by stages.
const (
	OutputTag         = "tag"
	OutputImage       = "image"
	OutputTimestamp   = "timestamp"
	OutputArtifacts   = "artifacts"
	OutputVersion     = "version"
	OutputCommit      = "commit"
	OutputBranch      = "branch"
	OutputPullRequest = "pullRequest"
	OutputResult      = "result"
)

// TimestampFormat is the second-resolution stamp used in image tags and branch names.
const TimestampFormat = "20060102150405"

// StageContext provides the runtime context for a stage.
type StageContext struct {
	WorkDir      string
	ArtifactsDir string
	RunID        string
	Branch       string // source branch the run builds from
	Ref          string // triggering branch, compared with MainBranch
	MainBranch   string
	Now          time.Time // in the pipeline time zone
	TemplateData map[string]any
	Inputs       map[string]map[string]string // outputs of earlier stages, by stage name
	Secret       func(name string) string
	DryRun       bool
}

// StageResult holds the outputs of a stage.
type StageResult struct {
	Outputs map[string]string
}

// Stage is the interface all pipeline stages implement.
type Stage interface {
	Name() string
	Run(ctx context.Context, sc StageContext) (*StageResult, error)
}
