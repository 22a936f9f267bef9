package agent

import "context"

// Outcome is what an executor reports for one invocation.
// Success=false is a failure reported by the executor itself and is final;
// an error returned alongside means the invocation did not complete.
type Outcome struct {
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Succeeded builds a successful outcome.
func Succeeded(output any) Outcome {
	return Outcome{Success: true, Output: output}
}

// Failed builds an outcome for a failure reported by the executor.
func Failed(msg string) Outcome {
	return Outcome{Success: false, Error: msg}
}

// Executor performs the work of a named agent.
type Executor interface {
	Execute(ctx context.Context, input map[string]any) (Outcome, error)
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, input map[string]any) (Outcome, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, input map[string]any) (Outcome, error) {
	return f(ctx, input)
}

// Resolver looks up executors by name.
// A missing agent is reported as ok=false with a nil error; err is reserved
// for lookups that themselves failed (e.g. a loader could not start the agent).
type Resolver interface {
	Resolve(ctx context.Context, name string) (exec Executor, ok bool, err error)
}
