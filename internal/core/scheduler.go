package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"liboqs-ci/internal/config"
)

// Scheduler materializes a workflow and decides job execution order: every
// member is triggered on every invocation, members without requires edges
// run concurrently, and a member with requires edges waits for all of its
// dependencies to succeed.
type Scheduler struct {
	Runner *Runner
}

func NewScheduler(runner *Runner) *Scheduler {
	return &Scheduler{Runner: runner}
}

// WorkflowResult is the outcome of one workflow run. Jobs is ordered as the
// workflow declares its members. Err is the first job failure, if any.
type WorkflowResult struct {
	RunID    string        `json:"runId"`
	Workflow string        `json:"workflow"`
	Jobs     []JobResult   `json:"jobs"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Failed reports whether any member job failed or was skipped.
func (wr *WorkflowResult) Failed() bool {
	for _, jr := range wr.Jobs {
		if jr.Status != StatusSuccess {
			return true
		}
	}
	return false
}

// RunWorkflow resolves every member job up front, then executes the workflow
// in waves: all members whose dependencies have succeeded run concurrently,
// each in its own goroutine. A failing job never interrupts a sibling; it
// only causes members that require it to be skipped.
func (s *Scheduler) RunWorkflow(ctx context.Context, p *config.Pipeline, runID, name string) (*WorkflowResult, error) {
	wf, ok := p.Workflows[name]
	if !ok {
		return nil, fmt.Errorf("unknown workflow %q", name)
	}

	start := time.Now()
	fmt.Printf("Workflow %s: %d job(s)\n", name, len(wf.Jobs))

	// Resolve all members before anything executes, so a template error
	// fails the whole run up front.
	resolved := make(map[string]*ResolvedJob, len(wf.Jobs))
	for _, wj := range wf.Jobs {
		rj, err := Resolve(p, wj.Name)
		if err != nil {
			return nil, err
		}
		resolved[wj.Name] = rj
	}

	var (
		mu      sync.Mutex
		status  = make(map[string]string, len(wf.Jobs))
		results = make(map[string]JobResult, len(wf.Jobs))
	)
	for _, wj := range wf.Jobs {
		status[wj.Name] = StatusPending
	}

	var firstErr error
	for {
		ready := readyJobs(wf, status)
		if len(ready) == 0 {
			break
		}

		// Mark the whole wave running before any goroutine starts: the
		// goroutines write status under mu, so the map must not be touched
		// again from this loop once the first job is off.
		for _, wj := range ready {
			status[wj.Name] = StatusRunning
		}

		var g errgroup.Group
		for _, wj := range ready {
			job := resolved[wj.Name]
			g.Go(func() error {
				jr := s.Runner.RunJob(ctx, runID, name, job)
				mu.Lock()
				status[job.Name] = jr.Status
				results[job.Name] = jr
				mu.Unlock()
				return jr.Err
			})
		}
		// Wait reports the first failure but never cancels siblings:
		// every job in the wave runs to its own completion.
		if err := g.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Anything still pending had a failed or skipped dependency.
	for _, wj := range wf.Jobs {
		if status[wj.Name] == StatusPending {
			fmt.Printf("==> Job %s skipped (dependency failed)\n", wj.Name)
			results[wj.Name] = JobResult{Job: wj.Name, Status: StatusSkipped}
		}
	}

	wr := &WorkflowResult{
		RunID:    runID,
		Workflow: name,
		Duration: time.Since(start),
		Err:      firstErr,
	}
	for _, wj := range wf.Jobs {
		wr.Jobs = append(wr.Jobs, results[wj.Name])
	}
	return wr, nil
}

// readyJobs returns the pending members whose requires edges have all
// succeeded.
func readyJobs(wf config.Workflow, status map[string]string) []config.WorkflowJob {
	var ready []config.WorkflowJob
	for _, wj := range wf.Jobs {
		if status[wj.Name] != StatusPending {
			continue
		}
		ok := true
		for _, req := range wj.Requires {
			if status[req] != StatusSuccess {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, wj)
		}
	}
	return ready
}
