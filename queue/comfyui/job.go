package comfyui

import (
	"fmt"
	"log"
	"sync"
	"time"

	"flux_comfy_bot/entities"
)

// jobTable owns every job the queue knows about. All status changes go
// through Transition, which only ever moves a job forward through
// Queued -> Submitted -> Running -> {Succeeded, Failed, Cancelled}.
// Events arriving after a job is terminal are dropped, so replays and
// cancellation races cannot resurrect a finished job.
type jobTable struct {
	mu        sync.Mutex
	jobs      map[string]*entities.Job
	retention time.Duration
}

const defaultRetention = 10 * time.Minute

func newJobTable(retention time.Duration) *jobTable {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &jobTable{
		jobs:      make(map[string]*entities.Job),
		retention: retention,
	}
}

func (t *jobTable) Create(request *entities.GenerationRequest) *entities.Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	job := &entities.Job{
		ID:         request.RequestID,
		Request:    request,
		Status:     entities.JobQueued,
		EnqueuedAt: time.Now(),
	}
	t.jobs[job.ID] = job

	return job
}

// Get returns a copy so callers never observe a job mid-mutation.
func (t *jobTable) Get(id string) (entities.Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return entities.Job{}, false
	}
	return *job, true
}

// Transition advances a job to status. It returns false when the change was
// dropped: the job is already terminal, already at or past the status, or
// unknown.
func (t *jobTable) Transition(id string, status entities.JobStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return false
	}
	if job.Status.Terminal() {
		// late events for finished jobs are expected during cancellation
		// races, drop them quietly
		return false
	}
	if status <= job.Status && !status.Terminal() {
		return false
	}

	job.Status = status
	now := time.Now()
	switch status {
	case entities.JobSubmitted:
		job.SubmittedAt = now
	case entities.JobRunning:
		job.StartedAt = now
	case entities.JobSucceeded, entities.JobFailed, entities.JobCancelled:
		job.FinishedAt = now
		if status == entities.JobSucceeded {
			job.Progress = 1
		}
	}

	return true
}

func (t *jobTable) SetPromptID(id, promptID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if job, ok := t.jobs[id]; ok {
		job.PromptID = promptID
	}
}

func (t *jobTable) SetProgress(id string, fraction float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	job.Progress = fraction
}

func (t *jobTable) SetImages(id string, images []entities.GeneratedImage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if job, ok := t.jobs[id]; ok {
		job.Images = images
	}
}

func (t *jobTable) Fail(id string, err error) bool {
	if err != nil {
		t.mu.Lock()
		if job, ok := t.jobs[id]; ok && !job.Status.Terminal() {
			job.Error = err.Error()
		}
		t.mu.Unlock()
	}
	return t.Transition(id, entities.JobFailed)
}

// Apply folds one progress event into the job. Applying the same event
// twice, or any event after a terminal one, changes nothing.
func (t *jobTable) Apply(id string, event entities.ProgressEvent) {
	switch event.Phase {
	case entities.PhaseStarting, entities.PhaseLoading, entities.PhaseCached:
		t.Transition(id, entities.JobRunning)
	case entities.PhaseGenerating, entities.PhaseFinalizing:
		t.Transition(id, entities.JobRunning)
		t.SetProgress(id, event.Fraction)
	case entities.PhaseComplete:
		t.SetProgress(id, 1)
	case entities.PhaseError:
		// terminal mapping is decided by the caller, which knows whether
		// the error was an interrupt it asked for
	default:
		log.Printf("Unknown progress phase %q for job %s", event.Phase, id)
	}
}

// Snapshot lists every known job, newest first not guaranteed.
func (t *jobTable) Snapshot() []entities.Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	jobs := make([]entities.Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// evict drops terminal jobs older than the retention window and returns
// the IDs it removed.
func (t *jobTable) evict() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []string
	cutoff := time.Now().Add(-t.retention)
	for id, job := range t.jobs {
		if job.Status.Terminal() && job.FinishedAt.Before(cutoff) {
			delete(t.jobs, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

func (t *jobTable) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("jobTable(%d jobs)", len(t.jobs))
}
