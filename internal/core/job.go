package core

import "time"

// Job statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// ResolvedJob is a job with its template fully bound: image fixed,
// environment flattened, ${VAR} placeholders filled in. It is built once at
// resolve time and never modified afterwards.
type ResolvedJob struct {
	Name  string            `json:"name"`
	Image string            `json:"image"`
	Env   map[string]string `json:"environment"`
	Steps []ResolvedStep    `json:"steps"`
}

// ResolvedStep is one executable action of a resolved job.
type ResolvedStep struct {
	Kind    string            `json:"kind"`
	Name    string            `json:"name,omitempty"`
	Command string            `json:"command,omitempty"`
	Env     map[string]string `json:"environment,omitempty"` // per-step overlay
}

// Label returns the step's display name.
func (s ResolvedStep) Label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Command != "" {
		return s.Command
	}
	return s.Kind
}

// StepResult is the outcome of one executed step.
type StepResult struct {
	Step     ResolvedStep  `json:"step"`
	ExitCode int           `json:"exitCode"`
	Output   string        `json:"-"`
	LogPath  string        `json:"logPath,omitempty"`
	Duration time.Duration `json:"duration"`
}

// JobResult is the outcome of one executed job. Steps holds a result per
// executed step; steps after the first failure are absent.
type JobResult struct {
	Job      string        `json:"job"`
	Status   string        `json:"status"`
	Steps    []StepResult  `json:"steps"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}
