package handlers

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	got := formatError("Error attaching the generated images.", errors.New("no images provided"))
	if !strings.Contains(got, "Error attaching the generated images.") {
		t.Errorf("formatted = %q", got)
	}
	if !strings.Contains(got, "no images provided") {
		t.Errorf("formatted = %q, want the wrapped error", got)
	}
	if !strings.Contains(got, "Multiple errors") {
		t.Errorf("formatted = %q, want the multi-error prefix", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	token := "bot-token-123"
	Token = &token
	defer func() { Token = nil }()

	message := "401 unauthorized for bot-token-123"
	sanitized := sanitizeToken(&message)
	if strings.Contains(*sanitized, token) {
		t.Errorf("token leaked: %q", *sanitized)
	}
	if !strings.Contains(*sanitized, "[TOKEN]") {
		t.Errorf("sanitized = %q", *sanitized)
	}
}
