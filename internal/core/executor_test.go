package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStepCapturesOutput(t *testing.T) {
	e := NewExecutor("")
	out, code, err := e.RunStep(context.Background(), ResolvedStep{
		Kind:    "run",
		Command: "echo hello; echo world >&2",
	}, t.TempDir(), nil)

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "world") // stderr is combined with stdout
}

func TestRunStepEnvironmentOverlay(t *testing.T) {
	e := NewExecutor("")
	out, _, err := e.RunStep(context.Background(), ResolvedStep{
		Kind:    "run",
		Command: `printf '%s|%s' "$GREETING" "$TARGET"`,
		Env:     map[string]string{"TARGET": "step"},
	}, t.TempDir(), map[string]string{"GREETING": "hi", "TARGET": "job"})

	require.NoError(t, err)
	// The step overlay wins over the job environment.
	assert.Equal(t, "hi|step", out)
}

func TestRunStepNonZeroExit(t *testing.T) {
	e := NewExecutor("")
	_, code, err := e.RunStep(context.Background(), ResolvedStep{
		Kind:    "run",
		Name:    "doomed",
		Command: "exit 3",
	}, t.TempDir(), nil)

	require.Error(t, err)
	assert.Equal(t, 3, code)
	assert.Contains(t, err.Error(), "doomed")
}

func TestRunStepTimeout(t *testing.T) {
	e := NewExecutor("")
	e.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, _, err := e.RunStep(context.Background(), ResolvedStep{
		Kind:    "run",
		Command: "sleep 10",
	}, t.TempDir(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCheckoutCopiesLocalSource(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "wrapper.py"), []byte("# oqs wrapper"), 0o644))

	e := NewExecutor(src)
	workdir := t.TempDir()
	_, code, err := e.RunStep(context.Background(), ResolvedStep{Kind: "checkout"}, workdir, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, code)

	data, err := os.ReadFile(filepath.Join(workdir, "wrapper.py"))
	require.NoError(t, err)
	assert.Equal(t, "# oqs wrapper", string(data))
}

func TestCheckoutWithoutSource(t *testing.T) {
	e := NewExecutor("")
	_, _, err := e.RunStep(context.Background(), ResolvedStep{Kind: "checkout"}, t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a source")
}
