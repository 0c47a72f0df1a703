package errors

import (
	"errors"
	"testing"
)

func TestNewErrorNil(t *testing.T) {
	if NewError(nil, BindFailureExitCode) != nil {
		t.Fatal("expected nil for a nil cause")
	}
	var e *ExitCodeError
	if e.GetExitCode() != 0 {
		t.Fatal("nil ExitCodeError should report exit code 0")
	}
}

func TestExitCodeUnwrap(t *testing.T) {
	cause := errors.New("bind: address already in use")
	e := NewError(cause, BindFailureExitCode)
	if e.GetExitCode() != BindFailureExitCode {
		t.Fatalf("got exit code %d", e.GetExitCode())
	}
	if !errors.Is(e, cause) {
		t.Fatal("expected ExitCodeError to unwrap to its cause")
	}
	if e.Error() != cause.Error() {
		t.Fatalf("unexpected message %q", e.Error())
	}
}
