package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of a sweep run.
type RunStatus string

const (
	StatusQueued    RunStatus = "QUEUED"
	StatusRunning   RunStatus = "RUNNING"
	StatusCompleted RunStatus = "COMPLETED"
	StatusFailed    RunStatus = "FAILED"
)

// IsTerminal returns true if the status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Execution targets.
const (
	TargetSimulator = "simulator"
	TargetQPU       = "qpu"
)

// IsValidTarget accepts the empty target (service default), "simulator",
// "qpu" and named devices of the form "qpu.<device>".
func IsValidTarget(target string) bool {
	switch {
	case target == "", target == TargetSimulator, target == TargetQPU:
		return true
	case strings.HasPrefix(target, TargetQPU+"."):
		return len(target) > len(TargetQPU)+1
	}
	return false
}

// IsQPUTarget reports whether target names physical hardware.
func IsQPUTarget(target string) bool {
	return target == TargetQPU || strings.HasPrefix(target, TargetQPU+".")
}

// SweepRun is a parameter sweep tracked through its lifecycle.
type SweepRun struct {
	SweepID     uuid.UUID  `json:"sweep_id"`
	Circuit     *Circuit   `json:"circuit"`
	Sweep       *SweepSpec `json:"sweep,omitempty"`
	Repetitions int        `json:"repetitions"`
	Target      string     `json:"target,omitempty"`
	Seed        *int64     `json:"seed,omitempty"`
	Status      RunStatus  `json:"status"`
	JobIDs      []string   `json:"job_ids,omitempty"`
	Results     []*Result  `json:"results,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// SweepMessage is a queued sweep run with broker acknowledgement callbacks.
type SweepMessage struct {
	Run  *SweepRun
	Ack  func() error
	Nack func(requeue bool) error
}

// SubmitRequest represents an incoming sweep submission from the API.
type SubmitRequest struct {
	Circuit     *Circuit   `json:"circuit" binding:"required"`
	Sweep       *SweepSpec `json:"sweep"`
	Repetitions int        `json:"repetitions" binding:"required"`
	Target      string     `json:"target"`
	Seed        *int64     `json:"seed,omitempty"`
}

// SubmitResponse is returned after a successful submission.
type SubmitResponse struct {
	SweepID uuid.UUID `json:"sweep_id"`
	Status  string    `json:"status"`
}

// TargetInfo describes an execution target.
type TargetInfo struct {
	Name        string `json:"name"`
	Simulator   bool   `json:"simulator"`
	Description string `json:"description"`
}
