package trigger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/systemstart/gitops-release/pkg/api"
)

// Decision is the outcome of evaluating an event against the trigger matrix.
type Decision struct {
	Run    bool
	Reason string
}

func skip(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Evaluate decides whether ev starts a run under cfg. Events of other types,
// or events missing the fields needed to match, never start a run.
func Evaluate(cfg api.TriggerConfig, ev Event) Decision {
	switch ev.Name {
	case api.EventPullRequest:
		return evaluatePullRequest(cfg.PullRequest, ev)
	case api.EventDispatch:
		if !cfg.Manual {
			return skip("manual runs are disabled")
		}
		return Decision{Run: true, Reason: "manual dispatch"}
	case api.EventPush:
		return evaluatePush(cfg.Push, ev)
	case "":
		return skip("no event")
	default:
		return skip("event %q does not trigger runs", ev.Name)
	}
}

func evaluatePullRequest(t *api.PullRequestTrigger, ev Event) Decision {
	if t == nil {
		return skip("pull request triggers are disabled")
	}
	if !slices.Contains(t.Actions, ev.Action) {
		return skip("pull request action %q is not one of %v", ev.Action, t.Actions)
	}
	base := trimBranch(ev.BaseRef)
	if base == "" {
		return skip("pull request event has no base branch")
	}
	if len(t.Branches) > 0 && !matchAny(t.Branches, base) {
		return skip("pull request base %q does not match %v", base, t.Branches)
	}
	return Decision{Run: true, Reason: fmt.Sprintf("pull request %s into %s", ev.Action, base)}
}

func evaluatePush(t *api.PushTrigger, ev Event) Decision {
	if t == nil {
		return skip("push triggers are disabled")
	}
	if ev.Ref == "" || strings.HasPrefix(ev.Ref, "refs/") && !strings.HasPrefix(ev.Ref, branchRefPrefix) {
		return skip("push to %q is not a branch", ev.Ref)
	}
	branch := ev.Branch()
	if !matchAny(t.Branches, branch) {
		return skip("branch %q does not match %v", branch, t.Branches)
	}
	return Decision{Run: true, Reason: fmt.Sprintf("push to %s", branch)}
}

func trimBranch(ref string) string {
	return Event{Ref: ref}.Branch()
}

func matchAny(patterns []string, branch string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, branch); err == nil && ok {
			return true
		}
	}
	return false
}
