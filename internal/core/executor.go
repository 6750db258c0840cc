package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultStepTimeout applies when the executor is built without one. The
// pipeline document declares no timeouts; this is the runner's default.
const DefaultStepTimeout = 30 * time.Minute

// Executor runs single steps inside a job workspace.
type Executor struct {
	// Source is what the checkout step materializes into the workspace:
	// a local directory to copy, or a git URL to clone.
	Source string

	// Timeout bounds each step. Zero means DefaultStepTimeout.
	Timeout time.Duration
}

func NewExecutor(source string) *Executor {
	return &Executor{Source: source}
}

// RunStep executes a single resolved step in the given workspace and returns
// its combined output and exit code. A non-zero exit is also reported as a
// non-nil error.
func (e *Executor) RunStep(ctx context.Context, step ResolvedStep, workdir string, env map[string]string) (string, int, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	command := step.Command
	if step.Kind == "checkout" {
		var err error
		if command, err = e.checkoutCommand(); err != nil {
			return "", -1, err
		}
	}

	// Run the step in a shell (sh -c "cmd") with the job environment
	// overlaid on the process environment, then the step's own overlay.
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = workdir
	cmd.Env = overlayEnviron(env, step.Env)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return out.String(), -1, fmt.Errorf("step %q timed out after %s", step.Label(), timeout)
	}

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return out.String(), exitCode, fmt.Errorf("step %q: %w", step.Label(), err)
	}
	return out.String(), 0, nil
}

// overlayEnviron flattens the process environment with the job and step
// overlays applied, later layers winning.
func overlayEnviron(layers ...map[string]string) []string {
	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out
}

// checkoutCommand translates the built-in checkout step into a shell
// command: copy a local source tree, or clone a remote one.
func (e *Executor) checkoutCommand() (string, error) {
	if e.Source == "" {
		return "", errors.New("checkout step requires a source")
	}
	if fi, err := os.Stat(e.Source); err == nil && fi.IsDir() {
		return fmt.Sprintf("cp -a %q/. .", e.Source), nil
	}
	return fmt.Sprintf("git clone --depth 1 %q .", e.Source), nil
}
