package trigger

import (
	"testing"

	"github.com/systemstart/gitops-release/pkg/api"
)

var matrix = api.TriggerConfig{
	PullRequest: &api.PullRequestTrigger{Actions: []string{"assigned"}, Branches: []string{"main"}},
	Manual:      true,
	Push:        &api.PushTrigger{Branches: []string{"main", "dev/**"}},
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		cfg  api.TriggerConfig
		ev   Event
		want bool
	}{
		{"push to main", matrix, Event{Name: "push", Ref: "refs/heads/main"}, true},
		{"push to dev branch", matrix, Event{Name: "push", Ref: "refs/heads/dev/foo"}, true},
		{"push to nested dev branch", matrix, Event{Name: "push", Ref: "refs/heads/dev/team/foo"}, true},
		{"push with bare branch name", matrix, Event{Name: "push", Ref: "dev/foo"}, true},
		{"push to feature branch", matrix, Event{Name: "push", Ref: "refs/heads/feature/foo"}, false},
		{"push of a tag", matrix, Event{Name: "push", Ref: "refs/tags/main"}, false},
		{"push without ref", matrix, Event{Name: "push"}, false},
		{"manual dispatch", matrix, Event{Name: "workflow_dispatch", Ref: "refs/heads/feature/x"}, true},
		{"manual dispatch disabled", api.TriggerConfig{}, Event{Name: "workflow_dispatch"}, false},
		{"pr assigned to main", matrix, Event{Name: "pull_request", Action: "assigned", BaseRef: "main", HeadRef: "feature/x"}, true},
		{"pr opened", matrix, Event{Name: "pull_request", Action: "opened", BaseRef: "main"}, false},
		{"pr assigned to other base", matrix, Event{Name: "pull_request", Action: "assigned", BaseRef: "release"}, false},
		{"pr without base", matrix, Event{Name: "pull_request", Action: "assigned"}, false},
		{"pr triggers disabled", api.TriggerConfig{Manual: true}, Event{Name: "pull_request", Action: "assigned", BaseRef: "main"}, false},
		{"unknown event", matrix, Event{Name: "issue_comment", Ref: "refs/heads/main"}, false},
		{"empty event", matrix, Event{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.cfg, tt.ev)
			if d.Run != tt.want {
				t.Errorf("Evaluate() run = %v, want %v (reason: %s)", d.Run, tt.want, d.Reason)
			}
			if d.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}
