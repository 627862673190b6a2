package types

import (
	"errors"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true)

	if GetErrorCode(err) != ErrUpstreamError {
		t.Fatalf("expected code %s, got %s", ErrUpstreamError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestError_APIBody(t *testing.T) {
	t.Parallel()

	err := NewError(ErrAPI, "flight offers search failed").
		WithHTTPStatus(400).
		WithBody(`{"errors":[{"code":477}]}`)

	if err.Retryable {
		t.Fatalf("4xx must not be retryable")
	}
	if err.Body == "" {
		t.Fatalf("expected body to be preserved")
	}
}

func TestIsRetryable_PlainError(t *testing.T) {
	t.Parallel()

	if IsRetryable(errors.New("plain")) {
		t.Fatalf("plain errors are not retryable")
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Fatalf("plain errors have no code")
	}
}
