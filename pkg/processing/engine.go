package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/systemstart/gitops-release/pkg/api"
	"github.com/systemstart/gitops-release/pkg/stages"
)

// Status is the outcome of a stage within a run.
type Status string

const (
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusSkipped     Status = "skipped"      // an earlier stage failed
	StatusNotSelected Status = "not-selected" // excluded with -stages
)

// StageReport describes one stage of a finished run.
type StageReport struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`
	Status   Status            `yaml:"status"`
	Duration string            `yaml:"duration,omitempty"`
	Outputs  map[string]string `yaml:"outputs,omitempty"`
	Error    string            `yaml:"error,omitempty"`
}

// Report summarises a run.
type Report struct {
	RunID  string        `yaml:"runID"`
	Event  string        `yaml:"event"`
	Branch string        `yaml:"branch"`
	Stages []StageReport `yaml:"stages"`
}

// Failed reports whether any stage failed.
func (r *Report) Failed() bool {
	return slices.ContainsFunc(r.Stages, func(s StageReport) bool { return s.Status == StatusFailed })
}

// StageObserver is notified after each executed stage.
type StageObserver interface {
	StageFinished(stage, stageType string, d time.Duration, err error)
}

// Options tune a single run.
type Options struct {
	Stages       []string // subset to run; empty runs all
	ArtifactsDir string
	DryRun       bool
	Observer     StageObserver
}

// RunPipeline executes the pipeline's stages in order and stops at the first
// failure. The report is returned even when a stage fails.
func RunPipeline(ctx context.Context, pipeline *api.Pipeline, run *RunContext, deps stages.Deps, opts Options) (*Report, error) {
	selected, err := SelectStages(pipeline, opts.Stages)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: run.ID, Event: run.Event.Name, Branch: run.Branch}
	templateData := MergeContext(run.Context, pipeline.Context)
	outputs := make(map[string]map[string]string)

	var runErr error
	for _, stageCfg := range pipeline.Stages {
		entry := StageReport{Name: stageCfg.Name, Type: stageCfg.Type}

		switch {
		case !selected[stageCfg.Name]:
			entry.Status = StatusNotSelected
		case runErr != nil:
			entry.Status = StatusSkipped
			slog.Info("skipping stage", "run", run.ID, "stage", stageCfg.Name)
		default:
			result, d, err := runStage(ctx, stageCfg, pipeline, run, deps, opts, templateData, outputs)
			entry.Duration = d.Round(time.Millisecond).String()
			if opts.Observer != nil {
				opts.Observer.StageFinished(stageCfg.Name, stageCfg.Type, d, err)
			}
			if err != nil {
				runErr = fmt.Errorf("stage %q failed: %w", stageCfg.Name, err)
				entry.Status = StatusFailed
				entry.Error = err.Error()
				slog.Error("stage failed", "run", run.ID, "stage", stageCfg.Name, "duration", d, "error", err)
				break
			}
			entry.Status = StatusSucceeded
			if result != nil && len(result.Outputs) > 0 {
				outputs[stageCfg.Name] = result.Outputs
				entry.Outputs = result.Outputs
			}
			slog.Info("stage succeeded", "run", run.ID, "stage", stageCfg.Name, "duration", d)
		}

		report.Stages = append(report.Stages, entry)
	}

	return report, runErr
}

func runStage(ctx context.Context, stageCfg api.StageConfig, pipeline *api.Pipeline, run *RunContext, deps stages.Deps, opts Options, templateData map[string]any, outputs map[string]map[string]string) (*stages.StageResult, time.Duration, error) {
	stage, err := stages.NewStage(stageCfg, deps)
	if err != nil {
		return nil, 0, fmt.Errorf("creating stage: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	sc := stages.StageContext{
		WorkDir:      pipeline.Dir,
		ArtifactsDir: opts.ArtifactsDir,
		RunID:        run.ID,
		Branch:       run.Branch,
		Ref:          run.Ref,
		MainBranch:   pipeline.MainBranch,
		Now:          run.Now,
		TemplateData: templateData,
		Inputs:       outputs,
		Secret:       run.Secret,
		DryRun:       opts.DryRun,
	}

	slog.Info("running stage", "run", run.ID, "stage", stageCfg.Name, "type", stageCfg.Type)
	start := time.Now()
	result, err := stage.Run(ctx, sc)
	return result, time.Since(start), err
}

// SelectStages returns the set of stages to run. An empty selection picks
// every stage. A selected stage must not consume outputs of an unselected one.
func SelectStages(pipeline *api.Pipeline, names []string) (map[string]bool, error) {
	selected := make(map[string]bool, len(pipeline.Stages))
	known := make(map[string]bool, len(pipeline.Stages))
	for _, s := range pipeline.Stages {
		known[s.Name] = true
		if len(names) == 0 {
			selected[s.Name] = true
		}
	}

	for _, n := range names {
		if !known[n] {
			return nil, fmt.Errorf("unknown stage %q", n)
		}
		selected[n] = true
	}

	var errs []error
	for _, s := range pipeline.Stages {
		if !selected[s.Name] {
			continue
		}
		for _, need := range stageInputs(s) {
			if !selected[need] {
				errs = append(errs, fmt.Errorf("stage %q needs outputs of unselected stage %q", s.Name, need))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return selected, nil
}

func stageInputs(s api.StageConfig) []string {
	if s.Type == api.StageTypeManifest && s.Manifest != nil {
		return []string{s.Manifest.Image}
	}
	return nil
}
