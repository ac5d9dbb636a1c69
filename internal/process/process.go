// Package process wraps the OS primitives needed to supervise a child
// process: spawning, signalling, enumerating and waiting.
//
// Two implementations exist. New returns the OS-backed one; NewFake returns
// an in-memory one whose behaviour is fully programmable.
package process

import "strconv"

// PID is an operating system process ID.
type PID int

// InvalidPID is the "no process" sentinel.
const InvalidPID PID = -1

// Valid reports whether p can refer to a real process.
func (p PID) Valid() bool { return p > 0 }

func (p PID) String() string { return strconv.Itoa(int(p)) }

// WaitOutcome classifies the result of a blocking wait on a child process.
type WaitOutcome int

const (
	// Terminated means the child was killed by a signal.
	Terminated WaitOutcome = iota
	// Exited means the child terminated normally and its exit status is available.
	Exited
	// ImpossibleError means the OS returned something its contract rules out.
	ImpossibleError
	// NotAChild means the wait failed with ECHILD but the pid is still alive.
	NotAChild
	// DoesNotExist means the wait failed with ECHILD and the pid is gone.
	DoesNotExist
	// InterruptedBySignal means the wait was interrupted. It is not retried.
	InterruptedBySignal
	// UnknownStatus covers every other failure.
	UnknownStatus
)

func (o WaitOutcome) String() string {
	switch o {
	case Terminated:
		return "terminated"
	case Exited:
		return "exited"
	case ImpossibleError:
		return "impossible_error"
	case NotAChild:
		return "not_a_child"
	case DoesNotExist:
		return "does_not_exist"
	case InterruptedBySignal:
		return "interrupted_by_signal"
	case UnknownStatus:
		return "unknown_status"
	default:
		return "wait_outcome(" + strconv.Itoa(int(o)) + ")"
	}
}

// Handle is the capability set the supervisor needs from the OS.
type Handle interface {
	// Spawn starts argv[0] with the given arguments as a child of the
	// current process. A failure to create the child is an *OSError; a
	// failure to load the program image is an *ExecError, in which case the
	// child has already exited. The child branch runs inside Spawn, so no
	// caller ever needs to terminate the current process.
	Spawn(argv []string) (PID, error)

	// Terminate sends the termination signal to pid.
	Terminate(pid PID) error

	// ListLive enumerates the pids of all live processes.
	ListLive() ([]PID, error)

	// ExecutableName resolves the executable name of pid.
	ExecutableName(pid PID) (string, bool)

	// Wait blocks until the child pid changes state and classifies the result.
	Wait(pid PID) WaitOutcome
}
