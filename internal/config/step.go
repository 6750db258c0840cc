package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Step kinds.
const (
	StepCheckout = "checkout"
	StepRun      = "run"
)

// Step is one action inside a job: the built-in checkout, or a named shell
// command with an optional environment overlay.
type Step struct {
	Kind    string
	Name    string
	Command string
	Env     map[string]string
}

// UnmarshalYAML accepts the forms a step takes in the document:
//
//	- checkout
//	- run: make -j
//	- run:
//	    name: Run tests
//	    command: nosetests --verbose
//	    environment:
//	      PYTHONPATH: /root/project
func (s *Step) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var v string
		if err := n.Decode(&v); err != nil {
			return err
		}
		if v != StepCheckout {
			return fmt.Errorf("line %d: unknown step %q", n.Line, v)
		}
		s.Kind = StepCheckout
		return nil

	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return fmt.Errorf("line %d: step mapping must have exactly one key", n.Line)
		}
		var key string
		if err := n.Content[0].Decode(&key); err != nil {
			return err
		}
		if key != StepRun {
			return fmt.Errorf("line %d: unknown step %q", n.Line, key)
		}

		body := n.Content[1]
		switch body.Kind {
		case yaml.ScalarNode:
			// short form: the value is the command itself
			s.Kind = StepRun
			return body.Decode(&s.Command)

		case yaml.MappingNode:
			var run struct {
				Name    string            `yaml:"name"`
				Command string            `yaml:"command"`
				Env     map[string]string `yaml:"environment"`
			}
			if err := body.Decode(&run); err != nil {
				return err
			}
			s.Kind = StepRun
			s.Name = run.Name
			s.Command = run.Command
			s.Env = run.Env
			return nil

		default:
			return fmt.Errorf("line %d: malformed run step", body.Line)
		}

	default:
		return fmt.Errorf("line %d: malformed step", n.Line)
	}
}

// Label returns a human-readable name for the step: the declared name when
// present, otherwise the command, otherwise the kind.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Command != "" {
		return s.Command
	}
	return s.Kind
}
