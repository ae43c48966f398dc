package comfyui

import (
	"context"

	"flux_comfy_bot/entities"
)

// Client is the surface the queue uses to talk to a ComfyUI server.
type Client interface {
	// QueuePrompt submits a workflow and returns the server's prompt ID.
	// Transient failures are retried with backoff before giving up;
	// rejections are returned immediately as *RejectionError.
	QueuePrompt(ctx context.Context, workflow Workflow) (string, error)

	// Watch streams progress for a submitted prompt. The channel always
	// ends with a terminal event (PhaseComplete or PhaseError) and is then
	// closed.
	Watch(ctx context.Context, promptID string) (<-chan entities.ProgressEvent, error)

	// Outputs downloads the finished images of a prompt from the server's
	// history, skipping intermediate temp files.
	Outputs(ctx context.Context, promptID string) ([]entities.GeneratedImage, error)

	Interrupt(ctx context.Context) error
	SystemStats(ctx context.Context) (*SystemStats, error)
	Host() string
}

type SystemStats struct {
	System struct {
		OS             string `json:"os"`
		PythonVersion  string `json:"python_version"`
		ComfyUIVersion string `json:"comfyui_version"`
	} `json:"system"`
	Devices []DeviceStats `json:"devices"`
}

type DeviceStats struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	VRAMTotal uint64 `json:"vram_total"`
	VRAMFree  uint64 `json:"vram_free"`
}
