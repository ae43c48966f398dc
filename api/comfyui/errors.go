package comfyui

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrBackendUnavailable marks transient failures: the server could not
	// be reached or answered with a 5xx. Submissions may be retried.
	ErrBackendUnavailable = errors.New("comfyui backend unavailable")

	// ErrInterrupted is reported when the server interrupts execution,
	// usually because we asked it to.
	ErrInterrupted = errors.New("execution interrupted")
)

// RejectionError is a terminal submission failure: the server understood the
// request and refused it. Retrying the same prompt will not help.
type RejectionError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *RejectionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("prompt rejected by server: %s", e.Message)
	}
	return fmt.Sprintf("prompt rejected by server (status %d)", e.StatusCode)
}

// Transient reports whether err is worth retrying.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBackendUnavailable) {
		return true
	}
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
