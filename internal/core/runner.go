package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"liboqs-ci/internal/history"
	"liboqs-ci/internal/storage"
	"liboqs-ci/pkg/utils"
)

// Runner ties together Executor + log storage + run journal for one job at a
// time. The journal is optional; recording is best-effort and never blocks
// the pipeline.
type Runner struct {
	Executor *Executor
	Logs     *storage.LogStorage
	Journal  *history.Journal
	WorkDir  string // base directory for per-run job workspaces
}

func NewRunner(executor *Executor, logs *storage.LogStorage, journal *history.Journal, workDir string) *Runner {
	return &Runner{
		Executor: executor,
		Logs:     logs,
		Journal:  journal,
		WorkDir:  workDir,
	}
}

// RunJob executes the job's steps strictly in declared order. The first
// failing step aborts the remainder and marks the job failed; there are no
// retries and no partial success.
func (r *Runner) RunJob(ctx context.Context, runID, workflow string, job *ResolvedJob) JobResult {
	start := time.Now()
	res := JobResult{Job: job.Name, Status: StatusRunning}

	fmt.Printf("==> Job %s (image %s)\n", job.Name, job.Image)

	workdir := filepath.Join(r.WorkDir, runID, job.Name)
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("create workspace: %w", err)
		res.Duration = time.Since(start)
		return res
	}

	for i, step := range job.Steps {
		fmt.Printf("  [%d/%d] %s\n", i+1, len(job.Steps), step.Label())

		stepStart := time.Now()
		output, code, err := r.Executor.RunStep(ctx, step, workdir, job.Env)
		sr := StepResult{
			Step:     step,
			ExitCode: code,
			Output:   output,
			Duration: time.Since(stepStart),
		}

		if r.Logs != nil {
			logPath, logErr := r.Logs.SaveStepLog(runID, job.Name, i+1, step.Label(), output)
			if logErr != nil {
				fmt.Printf("WARN: cannot save log: %v\n", logErr)
			} else {
				sr.LogPath = logPath
			}
		}
		r.record(runID, workflow, job.Name, sr)

		res.Steps = append(res.Steps, sr)
		if err != nil {
			fmt.Printf("  step failed: %v\n", err)
			res.Status = StatusFailed
			res.Err = err
			res.Duration = time.Since(start)
			return res
		}
	}

	res.Status = StatusSuccess
	res.Duration = time.Since(start)
	fmt.Printf("==> Job %s finished in %s\n", job.Name, res.Duration.Round(time.Millisecond))
	return res
}

// record appends a step outcome to the run journal, if one is configured.
func (r *Runner) record(runID, workflow, job string, sr StepResult) {
	if r.Journal == nil {
		return
	}

	logHash := ""
	if sr.LogPath != "" {
		h, err := utils.HashFile(sr.LogPath)
		if err != nil {
			fmt.Printf("WARN: cannot hash log: %v\n", err)
		} else {
			logHash = h
		}
	} else {
		logHash = utils.HashString(sr.Output)
	}

	err := r.Journal.Append(history.Entry{
		RunID:    runID,
		Workflow: workflow,
		Job:      job,
		Step:     sr.Step.Label(),
		ExitCode: sr.ExitCode,
		LogPath:  sr.LogPath,
		LogHash:  logHash,
	})
	if err != nil {
		fmt.Printf("WARN: cannot append journal record: %v\n", err)
	}
}
