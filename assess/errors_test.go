package assess

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCallErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &CallError{Message: "assessment call failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected cause reachable through Unwrap")
	}
	if got := err.Error(); !strings.Contains(got, "connection refused") {
		t.Errorf("expected cause in message, got %q", got)
	}

	bare := &CallError{Message: "building assessment request"}
	if got := bare.Error(); got != "building assessment request" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestProviderHTTPErrorFormat(t *testing.T) {
	err := &ProviderHTTPError{
		CallError:  CallError{Message: "assessment backend returned non-success status"},
		Provider:   ProviderOpenAI,
		StatusCode: 503,
		Body:       `{"error":"overloaded"}`,
	}

	got := err.Error()
	if !strings.Contains(got, "[openai]") || !strings.Contains(got, "status=503") {
		t.Errorf("unexpected format %q", got)
	}
}

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"http error", &ProviderHTTPError{Provider: ProviderAnthropic, StatusCode: 500}, false},
		{"timeout", &ProviderTimeoutError{Provider: ProviderGemini, Timeout: time.Second}, true},
		{"wrapped timeout", &CallError{Message: "outer", Cause: &ProviderTimeoutError{Provider: ProviderGemini}}, true},
	}

	for _, tt := range tests {
		if got := IsTimeout(tt.err); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}
