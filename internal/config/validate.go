package config

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrNoVersion = errors.New("pipeline has no version")
	ErrNoJobs    = errors.New("pipeline has no jobs")
	ErrNoImage   = errors.New("job has no image")
	ErrNoSteps   = errors.New("job has no steps")
)

// Validate checks the parsed document against what the runner requires:
// every job has an image and at least one step, every run step a command,
// and workflow members reference declared jobs with acyclic requires edges.
func (p *Pipeline) Validate() error {
	if p.Version == "" {
		return ErrNoVersion
	}
	if len(p.Jobs) == 0 {
		return ErrNoJobs
	}

	for name, job := range p.Jobs {
		if job.Image() == "" {
			return fmt.Errorf("job %q: %w", name, ErrNoImage)
		}
		if len(job.Steps) == 0 {
			return fmt.Errorf("job %q: %w", name, ErrNoSteps)
		}
		for i, step := range job.Steps {
			if step.Kind == StepRun && step.Command == "" {
				return fmt.Errorf("job %q step %d: run step has no command", name, i+1)
			}
		}
	}

	for wfName, wf := range p.Workflows {
		if err := validateWorkflow(p, wf); err != nil {
			return fmt.Errorf("workflow %q: %w", wfName, err)
		}
	}
	return nil
}

func validateWorkflow(p *Pipeline, wf Workflow) error {
	if len(wf.Jobs) == 0 {
		return errors.New("workflow has no jobs")
	}

	members := make(map[string]WorkflowJob, len(wf.Jobs))
	for _, wj := range wf.Jobs {
		if _, ok := p.Jobs[wj.Name]; !ok {
			return fmt.Errorf("references unknown job %q", wj.Name)
		}
		if _, dup := members[wj.Name]; dup {
			return fmt.Errorf("job %q listed twice", wj.Name)
		}
		members[wj.Name] = wj
	}

	for _, wj := range wf.Jobs {
		for _, req := range wj.Requires {
			if _, ok := members[req]; !ok {
				return fmt.Errorf("job %q requires %q, which is not in the workflow", wj.Name, req)
			}
		}
	}

	// requires edges must not form a cycle
	const (
		white = iota // unvisited
		grey         // on stack
		black        // done
	)
	colors := make(map[string]int, len(members))
	var visit func(name string) error
	visit = func(name string) error {
		switch colors[name] {
		case grey:
			return fmt.Errorf("requires cycle through job %q", name)
		case black:
			return nil
		}
		colors[name] = grey
		for _, req := range members[name].Requires {
			if err := visit(req); err != nil {
				return err
			}
		}
		colors[name] = black
		return nil
	}
	for name := range members {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
