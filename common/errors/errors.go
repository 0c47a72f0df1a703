package errors

import "fmt"

// ExitCodeError pairs a fatal error with the process exit code the binary
// should terminate with.
type ExitCodeError struct {
	code ExitCode
	error
}

func NewError(err error, exitCode ExitCode) *ExitCodeError {
	if err == nil {
		return nil
	}
	return &ExitCodeError{exitCode, err}
}

func (e *ExitCodeError) GetExitCode() ExitCode {
	if e == nil {
		return 0
	}
	return e.code
}

func (e *ExitCodeError) Unwrap() error {
	return e.error
}

func (e *ExitCodeError) String() string {
	return fmt.Sprintf("%v (exit code %d)", e.error, e.code)
}
