package command

import (
	"context"
	"io"
	"sync"
)

// Recorder is a Runner that records commands instead of executing them.
// Handlers keyed by executable name may return output or an error.
type Recorder struct {
	mu       sync.Mutex
	Commands []Command
	Stdin    []string
	Handlers map[string]func(Command) ([]byte, error)
}

func (r *Recorder) Run(_ context.Context, c Command) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stdin := ""
	if c.Stdin != nil {
		data, err := io.ReadAll(c.Stdin)
		if err != nil {
			return nil, err
		}
		stdin = string(data)
	}
	r.Commands = append(r.Commands, c)
	r.Stdin = append(r.Stdin, stdin)

	if h, ok := r.Handlers[c.Name]; ok {
		return h(c)
	}
	return nil, nil
}

// Lines returns the recorded command lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, 0, len(r.Commands))
	for _, c := range r.Commands {
		lines = append(lines, c.String())
	}
	return lines
}
