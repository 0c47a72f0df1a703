package agent

//go:generate mockgen -source=signal.go -package=agent -destination=signal_mock.go

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/twitter/cosched/protocol"
)

// Signaler suspends and resumes local processes.
type Signaler interface {
	Suspend(pid int32) error
	Resume(pid int32) error
}

// SignalError reports a failed delivery to one pid.
type SignalError struct {
	Pid  int32
	Kind protocol.Kind
	Err  error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("%s to pid %d: %v", e.Kind, e.Pid, e.Err)
}

func (e *SignalError) Unwrap() error { return e.Err }

// Gone reports whether the target process no longer exists.
func (e *SignalError) Gone() bool {
	return errors.Is(e.Err, unix.ESRCH)
}

type procSignaler struct{}

// NewProcSignaler returns a Signaler that sends SIGSTOP and SIGCONT.
func NewProcSignaler() Signaler {
	return procSignaler{}
}

func (procSignaler) Suspend(pid int32) error {
	return kill(pid, unix.SIGSTOP)
}

func (procSignaler) Resume(pid int32) error {
	return kill(pid, unix.SIGCONT)
}

// pids <= 0 address process groups, never a single worker
func kill(pid int32, sig unix.Signal) error {
	if pid <= 0 {
		return errors.Errorf("refusing to signal pid %d", pid)
	}
	return unix.Kill(int(pid), sig)
}

// deliver applies a Stop or Cont to one pid.
func deliver(s Signaler, kind protocol.Kind, pid int32) error {
	var err error
	switch kind {
	case protocol.Stop:
		err = s.Suspend(pid)
	case protocol.Cont:
		err = s.Resume(pid)
	default:
		err = errors.Errorf("%s is not a signal", kind)
	}
	if err != nil {
		return &SignalError{Pid: pid, Kind: kind, Err: err}
	}
	return nil
}
