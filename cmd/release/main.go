package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/systemstart/gitops-release/pkg/api"
	"github.com/systemstart/gitops-release/pkg/logging"
	"github.com/systemstart/gitops-release/pkg/metrics"
	"github.com/systemstart/gitops-release/pkg/processing"
	"github.com/systemstart/gitops-release/pkg/stages"
	"github.com/systemstart/gitops-release/pkg/trigger"
)

var version = "dev"

const (
	_ = iota
	exitLoggingSetupFailed
	exitDotenvError
	exitLoadConfigurationFileFailed
	exitEventError
	exitLoadContextFailed
	exitRunSetupFailed
	exitStageFailed
	exitReportFailed
)

var (
	configFile     string
	workDirectory  string
	maxDepth       int
	eventName      string
	eventAction    string
	eventRef       string
	headRef        string
	baseRef        string
	stageList      string
	dryRun         bool
	streamOutput   bool
	artifactsDir   string
	contextFile    string
	pushgatewayURL string
	printReport    bool
	loggingType    string
	logLevel       string
	showVersion    bool
)

func init() {
	flag.StringVar(
		&configFile,
		"config",
		"",
		"pipeline file (default: discover "+api.DefaultConfigFile+" below -workdir)")
	flag.StringVar(
		&workDirectory,
		"workdir",
		".",
		"directory searched for the pipeline file")
	flag.IntVar(
		&maxDepth,
		"max-depth",
		-1,
		"max directory depth for pipeline discovery (-1 = unlimited, 0 = workdir only)")
	flag.StringVar(
		&eventName,
		"event",
		"",
		"event name, overrides GITHUB_EVENT_NAME")
	flag.StringVar(
		&eventAction,
		"action",
		"",
		"pull request action, overrides the event payload")
	flag.StringVar(
		&eventRef,
		"ref",
		"",
		"triggering ref, overrides GITHUB_REF")
	flag.StringVar(
		&headRef,
		"head-ref",
		"",
		"pull request head branch, overrides GITHUB_HEAD_REF")
	flag.StringVar(
		&baseRef,
		"base-ref",
		"",
		"pull request base branch, overrides GITHUB_BASE_REF")
	flag.StringVar(
		&stageList,
		"stages",
		"",
		"comma separated stages to run (default: all)")
	flag.BoolVar(
		&dryRun,
		"dry-run",
		false,
		"build everything but push nothing")
	flag.BoolVar(
		&streamOutput,
		"stream",
		true,
		"stream output of external commands")
	flag.StringVar(
		&artifactsDir,
		"artifacts-dir",
		"release-artifacts",
		"directory receiving build artifacts")
	flag.StringVar(
		&contextFile,
		"context-file",
		"",
		"global context YAML file")
	flag.StringVar(
		&pushgatewayURL,
		"pushgateway-url",
		"",
		"Prometheus Pushgateway receiving run metrics (disabled when empty)")
	flag.BoolVar(
		&printReport,
		"report",
		false,
		"print the run report as YAML on stdout")
	flag.StringVar(
		&loggingType,
		"logging-type",
		"tint",
		"logging type: json, text or tint")
	flag.StringVar(
		&logLevel,
		"log-level",
		"info",
		"logging level: debug, info, warn, error")
	flag.BoolVar(
		&showVersion,
		"version",
		false,
		"print version and exit")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := logging.Initialize(os.Stderr, loggingType, logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitLoggingSetupFailed)
	}

	includeEnv()

	pipeline := loadPipeline()
	ev := loadEvent()

	decision := trigger.Evaluate(pipeline.Triggers, ev)
	if !decision.Run {
		slog.Info("event does not start a run", "event", ev.Name, "ref", ev.Ref, "reason", decision.Reason)
		os.Exit(0)
	}
	slog.Info("event starts a run", "event", ev.Name, "ref", ev.Ref, "reason", decision.Reason)

	run, err := processing.NewRunContext(ev, pipeline.Timezone, time.Now(), os.Getenv)
	if err != nil {
		slog.Error("failed to set up run", "error", err)
		os.Exit(exitRunSetupFailed)
	}
	run.Context = loadGlobalContext()

	os.Exit(execute(pipeline, run))
}

func execute(pipeline *api.Pipeline, run *processing.RunContext) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	artifacts, err := filepath.Abs(artifactsDir)
	if err != nil {
		slog.Error("failed to resolve artifacts directory", "directory", artifactsDir, "error", err)
		return exitRunSetupFailed
	}

	recorder := metrics.NewRecorder()
	recorder.RunStarted(run.Now)

	slog.Info("starting run", "run", run.ID, "pipeline", pipeline.FilePath, "branch", run.Branch, "dryRun", dryRun)
	report, runErr := processing.RunPipeline(ctx, pipeline, run, stages.DefaultDeps(streamOutput), processing.Options{
		Stages:       splitList(stageList),
		ArtifactsDir: artifacts,
		DryRun:       dryRun,
		Observer:     recorder,
	})

	pushMetrics(context.WithoutCancel(ctx), recorder, run.ID)

	if report != nil && printReport {
		if err := writeReport(report); err != nil {
			slog.Error("failed to write report", "error", err)
			return exitReportFailed
		}
	}

	if runErr != nil {
		slog.Error("run failed", "run", run.ID, "error", runErr)
		if report == nil {
			return exitRunSetupFailed
		}
		return exitStageFailed
	}

	slog.Info("done", "run", run.ID)
	return 0
}

func loadPipeline() *api.Pipeline {
	var (
		pipeline *api.Pipeline
		err      error
	)
	if configFile != "" {
		pipeline, err = api.LoadPipeline(configFile)
	} else {
		pipeline, err = processing.DiscoverPipeline(workDirectory, maxDepth)
	}
	if err != nil {
		slog.Error("failed to load pipeline", "error", err)
		os.Exit(exitLoadConfigurationFileFailed)
	}
	return pipeline
}

func loadEvent() trigger.Event {
	ev, err := trigger.FromEnv(os.Getenv)
	if err != nil {
		slog.Error("failed to read event", "error", err)
		os.Exit(exitEventError)
	}
	override(&ev.Name, eventName)
	override(&ev.Action, eventAction)
	override(&ev.Ref, eventRef)
	override(&ev.HeadRef, headRef)
	override(&ev.BaseRef, baseRef)
	return ev
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func loadGlobalContext() map[string]any {
	if contextFile == "" {
		return nil
	}

	ctx, err := processing.LoadContextFile(contextFile)
	if err != nil {
		slog.Error("failed to load context file", "filename", contextFile, "error", err)
		os.Exit(exitLoadContextFailed)
	}
	return ctx
}

func includeEnv() {
	err := godotenv.Load()
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to load .env", "error", err)
			os.Exit(exitDotenvError)
		}
		slog.Debug("no .env file found")
	} else {
		slog.Info("using .env file")
	}
}

func pushMetrics(ctx context.Context, recorder *metrics.Recorder, runID string) {
	if pushgatewayURL == "" {
		return
	}
	if err := recorder.Push(ctx, pushgatewayURL, "release", map[string]string{"run": runID}); err != nil {
		slog.Warn("failed to push metrics", "error", err)
		return
	}
	slog.Debug("pushed metrics", "url", pushgatewayURL)
}

func writeReport(report *processing.Report) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
