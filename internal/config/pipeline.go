package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Pipeline is the whole parsed pipeline document.
//
// Anchors, aliases and merge keys in the document are resolved by the YAML
// decoder itself, so a job template written once and merged into several
// concrete jobs arrives here already expanded.
type Pipeline struct {
	Version   string              `yaml:"version"`
	Env       map[string]string   `yaml:"environment,omitempty"` // pipeline-wide defaults
	Jobs      map[string]Job      `yaml:"jobs"`
	Workflows map[string]Workflow `yaml:"workflows,omitempty"`
}

// Job is one isolated unit of execution: a container image and an ordered
// step sequence, plus an environment map that parameterizes the template
// (e.g. supplies IMAGE).
type Job struct {
	Docker []DockerImage     `yaml:"docker"`
	Env    map[string]string `yaml:"environment,omitempty"`
	Steps  []Step            `yaml:"steps"`
}

// DockerImage names a container image the job runs in. The reference may
// contain ${VAR} placeholders filled from the job environment at resolve
// time.
type DockerImage struct {
	Image string `yaml:"image"`
}

// Image returns the job's primary image reference, or "" if none declared.
func (j Job) Image() string {
	if len(j.Docker) == 0 {
		return ""
	}
	return j.Docker[0].Image
}

// Workflow is a named set of jobs triggered together. Members without
// requires edges are independent of each other.
type Workflow struct {
	Jobs []WorkflowJob `yaml:"jobs"`
}

// WorkflowJob is one workflow member: either a bare job name, or a job name
// with requires edges naming other members of the same workflow.
type WorkflowJob struct {
	Name     string
	Requires []string
}

// UnmarshalYAML accepts the two forms a workflow member takes:
//
//	- amd64-buster
//	- amd64-buster:
//	    requires: [other-job]
func (w *WorkflowJob) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Decode(&w.Name)

	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return fmt.Errorf("line %d: workflow job mapping must have exactly one key", n.Line)
		}
		if err := n.Content[0].Decode(&w.Name); err != nil {
			return err
		}
		var body struct {
			Requires []string `yaml:"requires"`
		}
		if err := n.Content[1].Decode(&body); err != nil {
			return err
		}
		w.Requires = body.Requires
		return nil

	default:
		return fmt.Errorf("line %d: malformed workflow job", n.Line)
	}
}
