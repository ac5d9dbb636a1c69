package process

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrUnsupported is returned by the OS handle on platforms without a
// process supervision backend.
var ErrUnsupported = errors.New("process supervision is not supported on this platform")

// OSError reports a failed syscall-class operation together with the
// underlying OS error code.
type OSError struct {
	Op    string
	PID   PID
	Errno syscall.Errno
}

func (e *OSError) Error() string {
	if e.PID.Valid() {
		return fmt.Sprintf("%s pid %d: %v", e.Op, e.PID, e.Errno)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Errno)
}

func (e *OSError) Unwrap() error { return e.Errno }

// Code returns the OS error code.
func (e *OSError) Code() int { return int(e.Errno) }

// ExecError reports that the program image could not be loaded into the
// spawned child.
type ExecError struct {
	Path  string
	Errno syscall.Errno
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("exec %s: %v", e.Path, e.Errno)
}

func (e *ExecError) Unwrap() error { return e.Errno }

// Code is the diagnostic exit code the failed child terminated with.
func (e *ExecError) Code() int { return int(e.Errno) }

func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EINVAL
}
