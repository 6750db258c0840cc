package core

import (
	"fmt"
	"sort"

	"github.com/buildkite/interpolate"

	"liboqs-ci/internal/config"
)

// EnvImage is always present in a resolved job's environment. It names the
// container image the job was bound to.
const EnvImage = "IMAGE"

// mapEnv adapts a plain map to interpolate.Env.
type mapEnv map[string]string

func (m mapEnv) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Resolve binds the named job's template: flattens the environment (job
// values over pipeline values), interpolates the image reference from it,
// then interpolates every step. The result carries IMAGE in its environment,
// set to the bound image reference.
func Resolve(p *config.Pipeline, name string) (*ResolvedJob, error) {
	job, ok := p.Jobs[name]
	if !ok {
		return nil, fmt.Errorf("unknown job %q", name)
	}

	env := make(map[string]string, len(p.Env)+len(job.Env)+1)
	for k, v := range p.Env {
		env[k] = v
	}
	for k, v := range job.Env {
		env[k] = v
	}

	image, err := interpolate.Interpolate(mapEnv(env), job.Image())
	if err != nil {
		return nil, fmt.Errorf("job %q: interpolate image: %w", name, err)
	}
	if image == "" {
		return nil, fmt.Errorf("job %q: image resolved to empty string", name)
	}
	env[EnvImage] = image

	resolved := &ResolvedJob{
		Name:  name,
		Image: image,
		Env:   env,
		Steps: make([]ResolvedStep, 0, len(job.Steps)),
	}
	for i, step := range job.Steps {
		rs, err := resolveStep(step, env)
		if err != nil {
			return nil, fmt.Errorf("job %q step %d: %w", name, i+1, err)
		}
		resolved.Steps = append(resolved.Steps, rs)
	}
	return resolved, nil
}

// ResolveAll resolves every job in the pipeline, sorted by name.
func ResolveAll(p *config.Pipeline) ([]*ResolvedJob, error) {
	names := make([]string, 0, len(p.Jobs))
	for name := range p.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	jobs := make([]*ResolvedJob, 0, len(names))
	for _, name := range names {
		rj, err := Resolve(p, name)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, rj)
	}
	return jobs, nil
}

func resolveStep(step config.Step, env map[string]string) (ResolvedStep, error) {
	rs := ResolvedStep{Kind: step.Kind}

	var err error
	if rs.Name, err = interpolate.Interpolate(mapEnv(env), step.Name); err != nil {
		return rs, err
	}
	if rs.Command, err = interpolate.Interpolate(mapEnv(env), step.Command); err != nil {
		return rs, err
	}
	if len(step.Env) > 0 {
		rs.Env = make(map[string]string, len(step.Env))
		for k, v := range step.Env {
			if rs.Env[k], err = interpolate.Interpolate(mapEnv(env), v); err != nil {
				return rs, err
			}
		}
	}
	return rs, nil
}
