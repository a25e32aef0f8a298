package processing

import (
	"fmt"
	"maps"
	"os"
	"time"
	_ "time/tzdata" // pipelines name zones; CI images often lack zoneinfo

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/systemstart/gitops-release/pkg/trigger"
)

// LoadContextFile reads a YAML file and returns it as a map.
func LoadContextFile(filename string) (map[string]any, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading context file: %w", err)
	}

	var ctx map[string]any
	if err := yaml.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("parsing context file: %w", err)
	}

	if ctx == nil {
		ctx = make(map[string]any)
	}

	return ctx, nil
}

// MergeContext performs a shallow merge of local context over global context.
// Local keys override global keys at the top level.
func MergeContext(global, local map[string]any) map[string]any {
	merged := make(map[string]any, len(global)+len(local))
	maps.Copy(merged, global)
	maps.Copy(merged, local)
	return merged
}

// RunContext identifies one orchestrator run.
type RunContext struct {
	ID     string
	Event  trigger.Event
	Branch string // source branch, used for image tags and scan branch names
	Ref    string // triggering branch, decides direct push vs pull request
	Now    time.Time
	Secret func(name string) string
	// Context is the global template data, overridden by the pipeline's own.
	Context map[string]any
}

// NewRunContext creates a run for ev. now is converted to the pipeline time zone.
func NewRunContext(ev trigger.Event, timezone string, now time.Time, secret func(string) string) (*RunContext, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", timezone, err)
	}
	return &RunContext{
		ID:     uuid.NewString(),
		Event:  ev,
		Branch: ev.SourceBranch(),
		Ref:    ev.Branch(),
		Now:    now.In(loc),
		Secret: secret,
	}, nil
}
