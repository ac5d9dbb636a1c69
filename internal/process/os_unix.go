//go:build unix

package process

import (
	"errors"
	"os"
	"syscall"

	"github.com/rs/zerolog/log"
	gops "github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"
)

// OS is the Handle backed by the host operating system.
type OS struct{}

// New returns the OS-backed Handle.
func New() Handle { return OS{} }

// Spawn forks and execs argv[0]. The child is placed in its own process
// group so terminal signals aimed at the host do not reach it.
func (OS) Spawn(argv []string) (PID, error) {
	if len(argv) == 0 || argv[0] == "" {
		return InvalidPID, &ExecError{Errno: syscall.ENOENT}
	}
	attr := &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd()},
		Sys:   &syscall.SysProcAttr{Setpgid: true},
	}
	pid, err := syscall.ForkExec(argv[0], argv, attr)
	if err == nil {
		return PID(pid), nil
	}
	errno := errnoOf(err)
	switch errno {
	case syscall.EAGAIN, syscall.ENOMEM:
		return InvalidPID, &OSError{Op: "fork", Errno: errno}
	default:
		// The child reported the exec failure through the runtime's
		// status pipe and exited.
		return InvalidPID, &ExecError{Path: argv[0], Errno: errno}
	}
}

// Terminate sends SIGTERM to pid.
func (OS) Terminate(pid PID) error {
	if err := unix.Kill(int(pid), unix.SIGTERM); err != nil {
		return &OSError{Op: "kill", PID: pid, Errno: errnoOf(err)}
	}
	return nil
}

// ListLive enumerates live processes (procfs scan on Linux, sysctl on darwin).
func (OS) ListLive() ([]PID, error) {
	pids, err := gops.Pids()
	if err != nil {
		return nil, &OSError{Op: "list processes", Errno: errnoOf(err)}
	}
	out := make([]PID, 0, len(pids))
	for _, p := range pids {
		out = append(out, PID(p))
	}
	return out, nil
}

// ExecutableName resolves the executable name of pid.
func (OS) ExecutableName(pid PID) (string, bool) {
	p, err := gops.NewProcess(int32(pid))
	if err != nil {
		return "", false
	}
	name, err := p.Name()
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// Wait blocks in wait4 until pid changes state.
func (OS) Wait(pid PID) WaitOutcome {
	if !pid.Valid() {
		return UnknownStatus
	}

	var ws unix.WaitStatus
	wpid, err := unix.Wait4(int(pid), &ws, 0, nil)
	if err != nil {
		log.Error().Err(err).Int("pid", int(pid)).Msg("wait4 failed")
		switch {
		case errors.Is(err, unix.ECHILD):
			if isAlive(pid) {
				log.Error().Int("pid", int(pid)).Msg("process exists but is not our child, or SIGCHLD is ignored")
				return NotAChild
			}
			log.Error().Int("pid", int(pid)).Msg("process does not exist")
			return DoesNotExist
		case errors.Is(err, unix.EINTR):
			return InterruptedBySignal
		default:
			return UnknownStatus
		}
	}
	if wpid == 0 {
		log.Error().Int("pid", int(pid)).Msg("wait4 returned 0 without WNOHANG")
		return ImpossibleError
	}
	if ws.Exited() {
		return Exited
	}
	return Terminated
}

// isAlive probes pid with the null signal. EPERM means the process exists
// but belongs to someone else.
func isAlive(pid PID) bool {
	err := unix.Kill(int(pid), 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
