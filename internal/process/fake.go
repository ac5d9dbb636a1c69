package process

import (
	"errors"
	"slices"
	"sync"
	"syscall"
)

// Fake is an in-memory Handle. Processes live in a table owned by the fake;
// fork, exec and kill behaviour can be overridden per call by queueing hooks,
// which are consumed in the order they were added.
//
// Safe for concurrent use.
type Fake struct {
	mu          sync.Mutex
	defaultName string
	procs       []*fakeProc
	lastPID     PID

	forkHooks []func() (PID, error)
	execHooks []func(argv []string) error
	killHooks []func(pid PID) error

	forkCalls int
	execCalls int
	exitCodes []int
	killCalls []PID
	argvs     [][]string
}

type fakeProc struct {
	pid     PID
	name    string
	killed  bool
	outcome WaitOutcome
	changed chan struct{}
}

var _ Handle = (*Fake)(nil)

// NewFake returns a Fake whose spawned processes are named defaultName.
func NewFake(defaultName string) *Fake {
	return &Fake{defaultName: defaultName}
}

// CreateProcess adds a live process and returns its pid. Pids are assigned
// sequentially starting at 1.
func (f *Fake) CreateProcess(name string) PID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPID++
	f.procs = append(f.procs, &fakeProc{
		pid:     f.lastPID,
		name:    name,
		outcome: UnknownStatus,
		changed: make(chan struct{}, 1),
	})
	return f.lastPID
}

// AddForkCall queues a hook replacing the next process duplication.
func (f *Fake) AddForkCall(fn func() (PID, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forkHooks = append(f.forkHooks, fn)
}

// AddExecCall queues a hook replacing the next image replacement. A non-nil
// error makes the simulated child terminate itself.
func (f *Fake) AddExecCall(fn func(argv []string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execHooks = append(f.execHooks, fn)
}

// AddKillCall queues a hook replacing the next Terminate.
func (f *Fake) AddKillCall(fn func(pid PID) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killHooks = append(f.killHooks, fn)
}

// Spawn implements [Handle].
func (f *Fake) Spawn(argv []string) (PID, error) {
	f.mu.Lock()
	f.forkCalls++
	fork := pop(&f.forkHooks)
	f.mu.Unlock()

	var pid PID
	if fork != nil {
		var err error
		if pid, err = fork(); err != nil {
			return InvalidPID, err
		}
	} else {
		pid = f.CreateProcess(f.defaultName)
	}

	// Child branch.
	f.mu.Lock()
	f.execCalls++
	f.argvs = append(f.argvs, slices.Clone(argv))
	exec := pop(&f.execHooks)
	f.mu.Unlock()

	if exec == nil {
		return pid, nil
	}
	if err := exec(argv); err != nil {
		var execErr *ExecError
		if !errors.As(err, &execErr) {
			execErr = &ExecError{Errno: errnoOf(err)}
			if len(argv) > 0 {
				execErr.Path = argv[0]
			}
		}
		f.Exit(execErr.Code())
		f.Complete(pid, Exited)
		return InvalidPID, execErr
	}
	return pid, nil
}

// Terminate implements [Handle]. Without a queued hook the process is
// marked as terminated by a signal.
func (f *Fake) Terminate(pid PID) error {
	f.mu.Lock()
	f.killCalls = append(f.killCalls, pid)
	kill := pop(&f.killHooks)
	f.mu.Unlock()

	if kill != nil {
		return kill(pid)
	}
	if !f.Complete(pid, Terminated) {
		return &OSError{Op: "kill", PID: pid, Errno: syscall.ESRCH}
	}
	return nil
}

// ListLive implements [Handle].
func (f *Fake) ListLive() ([]PID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PID
	for _, p := range f.procs {
		if !p.killed {
			out = append(out, p.pid)
		}
	}
	return out, nil
}

// ExecutableName implements [Handle].
func (f *Fake) ExecutableName(pid PID) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := f.live(pid); p != nil {
		return p.name, true
	}
	return "", false
}

// Wait implements [Handle]. It blocks until Complete is called for pid.
func (f *Fake) Wait(pid PID) WaitOutcome {
	f.mu.Lock()
	p := f.live(pid)
	f.mu.Unlock()
	if p == nil {
		return DoesNotExist
	}

	<-p.changed

	f.mu.Lock()
	defer f.mu.Unlock()
	return p.outcome
}

// Exit records the code a simulated child exits with after a failed exec.
func (f *Fake) Exit(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exitCodes = append(f.exitCodes, code)
}

// Complete makes a pending Wait on pid return outcome. Exited and
// Terminated also remove the process from the live set. Reports whether a
// live process with that pid existed.
func (f *Fake) Complete(pid PID, outcome WaitOutcome) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.live(pid)
	if p == nil {
		return false
	}
	p.outcome = outcome
	if outcome == Exited || outcome == Terminated {
		p.killed = true
	}
	select {
	case p.changed <- struct{}{}:
	default:
	}
	return true
}

// MarkExited simulates pid exiting on its own.
func (f *Fake) MarkExited(pid PID) bool { return f.Complete(pid, Exited) }

// ForkCalls returns how many times Spawn duplicated a process.
func (f *Fake) ForkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forkCalls
}

// ExecCalls returns how many times an image replacement was attempted.
func (f *Fake) ExecCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.execCalls
}

// ExitCodes returns the codes passed to Exit, in order.
func (f *Fake) ExitCodes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.exitCodes)
}

// KillCalls returns the pids passed to Terminate, in order.
func (f *Fake) KillCalls() []PID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.killCalls)
}

// Argvs returns the command lines of every exec attempt.
func (f *Fake) Argvs() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.argvs))
	for i, a := range f.argvs {
		out[i] = slices.Clone(a)
	}
	return out
}

func (f *Fake) live(pid PID) *fakeProc {
	for _, p := range f.procs {
		if p.pid == pid && !p.killed {
			return p
		}
	}
	return nil
}

func pop[T any](q *[]T) T {
	var zero T
	if len(*q) == 0 {
		return zero
	}
	v := (*q)[0]
	*q = (*q)[1:]
	return v
}
