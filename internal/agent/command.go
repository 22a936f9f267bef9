package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// CommandConfig describes an agent backed by an external program.
type CommandConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	WorkDir string
	Timeout time.Duration // Zero means no per-invocation limit
}

// Command runs an external program once per invocation. The task input is
// written to stdin as JSON. Stdout is read as a JSON Outcome when it parses
// as an object carrying a "success" field; otherwise the trimmed text is a
// successful string output. A non-zero exit is an invocation error.
type Command struct {
	cfg  CommandConfig
	path string
	pm   *ProcessManager
}

// NewCommand resolves the program on PATH and returns an executor for it.
// The ProcessManager is optional.
func NewCommand(cfg CommandConfig, pm *ProcessManager) (*Command, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("agent %q has no command", cfg.Name)
	}

	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", cfg.Name, err)
	}

	return &Command{cfg: cfg, path: path, pm: pm}, nil
}

// CommandLoader returns a Loader that builds the Command on first use.
func CommandLoader(cfg CommandConfig, pm *ProcessManager) Loader {
	return func(ctx context.Context) (Executor, error) {
		return NewCommand(cfg, pm)
	}
}

// Execute implements Executor.
func (c *Command) Execute(ctx context.Context, input map[string]any) (Outcome, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return Outcome{}, fmt.Errorf("encoding input: %w", err)
	}

	cmd := newCommand(ctx, c.path, c.cfg.Args...)
	cmd.Dir = c.cfg.WorkDir
	if len(c.cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range c.cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	stdout, _, err := executeCommand(ctx, cmd, c.pm, payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("agent %q: %w", c.cfg.Name, err)
	}

	return parseOutcome(stdout), nil
}

// parseOutcome interprets agent stdout.
func parseOutcome(stdout []byte) Outcome {
	trimmed := bytes.TrimSpace(stdout)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err == nil {
		if _, ok := fields["success"]; ok {
			var out Outcome
			if err := json.Unmarshal(trimmed, &out); err == nil {
				return out
			}
		}
	}

	return Succeeded(string(trimmed))
}
