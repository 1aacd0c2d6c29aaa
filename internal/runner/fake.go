package runner

import (
	"context"
	"sync"

	"github.com/cta-lst/dl1merge/internal/errors"
)

// Recorder is a Runner that records commands instead of executing them.
// Responses are consumed in order; when none are left it answers with an
// empty successful Result. It is meant for tests.
type Recorder struct {
	mu        sync.Mutex
	Commands  []Command
	Responses []Response
}

// Response is a canned answer for Recorder.
type Response struct {
	Result Result
	// Err, when set, is returned as is. A non-zero Result.ExitCode without Err
	// produces a ProcessError.
	Err error
	// Effect runs before the response is returned, e.g. to create the file
	// a merge would have written.
	Effect func(Command)
}

// Run implements Runner.
func (r *Recorder) Run(_ context.Context, c Command) (Result, error) {
	r.mu.Lock()
	r.Commands = append(r.Commands, c)
	var resp Response
	if len(r.Responses) > 0 {
		resp = r.Responses[0]
		r.Responses = r.Responses[1:]
	}
	r.mu.Unlock()

	if resp.Effect != nil {
		resp.Effect(c)
	}
	if resp.Err != nil {
		return resp.Result, resp.Err
	}
	if resp.Result.ExitCode != 0 {
		return resp.Result, errors.NewProcessError(c.Name, c.Args, resp.Result.ExitCode).WithStderr(resp.Result.Stderr)
	}
	return resp.Result, nil
}

// Lines returns the recorded commands as shell-like strings.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, len(r.Commands))
	for i, c := range r.Commands {
		lines[i] = c.String()
	}
	return lines
}
