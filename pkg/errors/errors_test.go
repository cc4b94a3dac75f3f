package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeResolution, "no version of %s satisfies %s", "lib", "^9.0.0")

	if err.Code != ErrCodeResolution {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeResolution)
	}

	if err.Message != "no version of lib satisfies ^9.0.0" {
		t.Errorf("Message = %v", err.Message)
	}

	expected := "RESOLUTION: no version of lib satisfies ^9.0.0"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrCodeFetch, cause, "fetch lib@1.0.0")

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if got := err.Error(); got != "FETCH: fetch lib@1.0.0: connection reset" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{"matching code", New(ErrCodeUnmetPeer, "x"), ErrCodeUnmetPeer, true},
		{"different code", New(ErrCodeUnmetPeer, "x"), ErrCodePeerConflict, false},
		{"fmt wrapped", fmt.Errorf("install: %w", New(ErrCodeHookExecution, "x")), ErrCodeHookExecution, true},
		{"outer code wins", Wrap(ErrCodeFetch, New(ErrCodeNetwork, "x"), "y"), ErrCodeNetwork, false},
		{"plain error", errors.New("x"), ErrCodeInternal, false},
		{"nil", nil, ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHas(t *testing.T) {
	err := fmt.Errorf("run: %w", Wrap(ErrCodeFetch, New(ErrCodeNetwork, "timeout"), "fetch lib@1.0.0"))
	if !Has(err, ErrCodeFetch) {
		t.Error("Has(FETCH) = false")
	}
	if !Has(err, ErrCodeNetwork) {
		t.Error("Has(NETWORK_ERROR) = false")
	}
	if Has(err, ErrCodeExtract) {
		t.Error("Has(EXTRACT) = true")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeExtract, "x")); got != ErrCodeExtract {
		t.Errorf("GetCode() = %v", got)
	}
	if got := GetCode(errors.New("x")); got != "" {
		t.Errorf("GetCode(plain) = %v, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	err := Wrap(ErrCodeManifestRead, errors.New("no such file"), "read manifest in /tmp/app")
	if got := UserMessage(err); got != "read manifest in /tmp/app: no such file" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
}
