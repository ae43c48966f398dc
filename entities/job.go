package entities

import (
	"time"
)

type JobStatus int

const (
	JobQueued JobStatus = iota
	JobSubmitted
	JobRunning
	JobSucceeded
	JobFailed
	JobCancelled
)

func (s JobStatus) String() string {
	switch s {
	case JobQueued:
		return "Queued"
	case JobSubmitted:
		return "Submitted"
	case JobRunning:
		return "Running"
	case JobSucceeded:
		return "Succeeded"
	case JobFailed:
		return "Failed"
	case JobCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// GeneratedImage is a single output image downloaded from the backend.
type GeneratedImage struct {
	Filename string
	Data     []byte
}

// Job tracks one generation from admission to delivery. Jobs are owned by
// the coordinator: every field mutation goes through its job table, which
// enforces that the status only ever moves forward through
// Queued -> Submitted -> Running -> {Succeeded, Failed, Cancelled}.
type Job struct {
	ID      string
	Request *GenerationRequest

	Status   JobStatus
	Progress float64
	PromptID string

	Images []GeneratedImage
	Error  string

	EnqueuedAt  time.Time
	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

type ProgressPhase string

const (
	PhaseStarting   ProgressPhase = "starting"
	PhaseLoading    ProgressPhase = "loading"
	PhaseGenerating ProgressPhase = "generating"
	PhaseCached     ProgressPhase = "cached"
	PhaseFinalizing ProgressPhase = "finalizing"
	PhaseComplete   ProgressPhase = "complete"
	PhaseError      ProgressPhase = "error"
)

// Terminal reports whether the event stream ends with this phase.
func (p ProgressPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// ProgressEvent is one element of the finite event stream a backend client
// produces for a submitted job. The stream always ends with a terminal
// phase; Fraction is clamped to [0, 1] by the producer.
type ProgressEvent struct {
	PromptID string
	Phase    ProgressPhase
	Message  string
	Fraction float64
	Err      error
}
