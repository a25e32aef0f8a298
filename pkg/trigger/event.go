package trigger

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/go-github/v66/github"

	"github.com/systemstart/gitops-release/pkg/api"
)

const branchRefPrefix = "refs/heads/"

// Event is the subset of a repository event needed to decide on a run.
type Event struct {
	Name    string // pull_request, workflow_dispatch, push, ...
	Action  string // pull request action, e.g. "assigned"
	Ref     string // refs/heads/<branch> or a bare branch name
	HeadRef string // pull request source branch
	BaseRef string // pull request target branch
}

// Branch returns Ref without the refs/heads/ prefix.
func (e Event) Branch() string {
	return strings.TrimPrefix(e.Ref, branchRefPrefix)
}

// SourceBranch is the branch the run builds from: the head branch of a pull
// request, otherwise the pushed or dispatched branch.
func (e Event) SourceBranch() string {
	if e.HeadRef != "" {
		return strings.TrimPrefix(e.HeadRef, branchRefPrefix)
	}
	return e.Branch()
}

// Getenv matches os.Getenv; injected for tests.
type Getenv func(string) string

// FromEnv builds an Event from the GitHub Actions environment. For pull
// request events the action and branches are read from the webhook payload
// at GITHUB_EVENT_PATH when it exists.
func FromEnv(getenv Getenv) (Event, error) {
	ev := Event{
		Name:    getenv("GITHUB_EVENT_NAME"),
		Ref:     getenv("GITHUB_REF"),
		HeadRef: getenv("GITHUB_HEAD_REF"),
		BaseRef: getenv("GITHUB_BASE_REF"),
	}

	path := getenv("GITHUB_EVENT_PATH")
	if path == "" || ev.Name != api.EventPullRequest {
		return ev, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ev, fmt.Errorf("reading event payload: %w", err)
	}
	parsed, err := github.ParseWebHook(ev.Name, data)
	if err != nil {
		return ev, fmt.Errorf("parsing event payload: %w", err)
	}
	payload, ok := parsed.(*github.PullRequestEvent)
	if !ok {
		return ev, fmt.Errorf("unexpected %s payload type %T", ev.Name, parsed)
	}

	ev.Action = payload.GetAction()
	if pr := payload.GetPullRequest(); pr != nil {
		if ev.HeadRef == "" {
			ev.HeadRef = pr.GetHead().GetRef()
		}
		if ev.BaseRef == "" {
			ev.BaseRef = pr.GetBase().GetRef()
		}
	}
	return ev, nil
}
