package comfyui

import (
	"errors"
	"testing"
	"time"

	"flux_comfy_bot/entities"
)

func newTestJob(t *jobTable) *entities.Job {
	return t.Create(&entities.GenerationRequest{RequestID: "req-1", UserID: "user-1"})
}

func TestTransitionForwardOnly(t *testing.T) {
	table := newJobTable(0)
	job := newTestJob(table)

	if !table.Transition(job.ID, entities.JobSubmitted) {
		t.Fatal("Queued -> Submitted should be allowed")
	}
	if table.Transition(job.ID, entities.JobQueued) {
		t.Error("moving back to Queued should be dropped")
	}
	if table.Transition(job.ID, entities.JobSubmitted) {
		t.Error("repeating Submitted should be dropped")
	}
	if !table.Transition(job.ID, entities.JobRunning) {
		t.Fatal("Submitted -> Running should be allowed")
	}
	if !table.Transition(job.ID, entities.JobSucceeded) {
		t.Fatal("Running -> Succeeded should be allowed")
	}

	got, _ := table.Get(job.ID)
	if got.Status != entities.JobSucceeded {
		t.Errorf("status = %s", got.Status)
	}
	if got.Progress != 1 {
		t.Errorf("progress = %f, want 1 on success", got.Progress)
	}
	if got.SubmittedAt.IsZero() || got.StartedAt.IsZero() || got.FinishedAt.IsZero() {
		t.Errorf("timestamps missing: %+v", got)
	}
}

func TestTerminalAbsorbsLateEvents(t *testing.T) {
	table := newJobTable(0)
	job := newTestJob(table)

	if !table.Transition(job.ID, entities.JobCancelled) {
		t.Fatal("Queued -> Cancelled should be allowed")
	}
	if table.Fail(job.ID, errors.New("late failure")) {
		t.Error("Fail after Cancelled should be dropped")
	}
	if table.Transition(job.ID, entities.JobSucceeded) {
		t.Error("Succeeded after Cancelled should be dropped")
	}

	table.SetProgress(job.ID, 0.5)
	table.Apply(job.ID, entities.ProgressEvent{Phase: entities.PhaseGenerating, Fraction: 0.7})

	got, _ := table.Get(job.ID)
	if got.Status != entities.JobCancelled {
		t.Errorf("status = %s, want Cancelled", got.Status)
	}
	if got.Progress != 0 {
		t.Errorf("progress = %f, cancelled jobs should not move", got.Progress)
	}
	if got.Error != "" {
		t.Errorf("error = %q, late failures should not stick", got.Error)
	}
}

func TestFailRecordsError(t *testing.T) {
	table := newJobTable(0)
	job := newTestJob(table)

	if !table.Fail(job.ID, errors.New("backend exploded")) {
		t.Fatal("Fail on a live job should transition")
	}

	got, _ := table.Get(job.ID)
	if got.Status != entities.JobFailed {
		t.Errorf("status = %s", got.Status)
	}
	if got.Error != "backend exploded" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	table := newJobTable(0)
	job := newTestJob(table)

	event := entities.ProgressEvent{Phase: entities.PhaseGenerating, Fraction: 0.4}
	table.Apply(job.ID, event)
	first, _ := table.Get(job.ID)

	table.Apply(job.ID, event)
	second, _ := table.Get(job.ID)

	if first.Status != second.Status || first.Progress != second.Progress {
		t.Errorf("replaying an event changed the job: %+v vs %+v", first, second)
	}
	if second.Status != entities.JobRunning || second.Progress != 0.4 {
		t.Errorf("job = %+v", second)
	}
}

func TestSetProgressClamps(t *testing.T) {
	table := newJobTable(0)
	job := newTestJob(table)

	table.SetProgress(job.ID, 1.5)
	if got, _ := table.Get(job.ID); got.Progress != 1 {
		t.Errorf("progress = %f, want 1", got.Progress)
	}

	table.SetProgress(job.ID, -0.3)
	if got, _ := table.Get(job.ID); got.Progress != 0 {
		t.Errorf("progress = %f, want 0", got.Progress)
	}
}

func TestEvict(t *testing.T) {
	table := newJobTable(time.Millisecond)

	finished := newTestJob(table)
	table.Transition(finished.ID, entities.JobSucceeded)

	live := table.Create(&entities.GenerationRequest{RequestID: "req-2"})
	table.Transition(live.ID, entities.JobRunning)

	time.Sleep(10 * time.Millisecond)

	evicted := table.evict()
	if len(evicted) != 1 || evicted[0] != finished.ID {
		t.Errorf("evicted = %v, want [%s]", evicted, finished.ID)
	}
	if _, ok := table.Get(finished.ID); ok {
		t.Error("finished job should be gone")
	}
	if _, ok := table.Get(live.ID); !ok {
		t.Error("running job must survive eviction")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	table := newJobTable(0)
	job := newTestJob(table)

	snapshot, _ := table.Get(job.ID)
	snapshot.Status = entities.JobFailed

	got, _ := table.Get(job.ID)
	if got.Status != entities.JobQueued {
		t.Errorf("mutating a snapshot leaked into the table: %s", got.Status)
	}
}
