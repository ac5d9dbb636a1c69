package supervisor

// Supervisor keeps exactly one package manager agent process alive: it
// sweeps stray instances, spawns the agent, restarts it when it dies while
// armed and stops it on request.

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carlosprados/pmcontrol/internal/events"
	"github.com/carlosprados/pmcontrol/internal/metrics"
	"github.com/carlosprados/pmcontrol/internal/process"
	"github.com/carlosprados/pmcontrol/internal/status"
)

const (
	// DefaultRestartDelay is how long the monitor waits before respawning a
	// crashed agent.
	DefaultRestartDelay = 30 * time.Second
	// DefaultMonitorTimeout bounds the test-visible wait helpers.
	DefaultMonitorTimeout = 5 * time.Second
)

// ErrNoBasePath is returned by New when the agent install directory is empty.
var ErrNoBasePath = errors.New("supervisor base path has not been set")

// State represents the externally visible state of the supervised agent.
type State string

const (
	StateStopped    State = "stopped"
	StateRunning    State = "running"
	StateRestarting State = "restarting"
	StateFailed     State = "failed"
)

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithRestartDelay sets the initial restart delay.
func WithRestartDelay(d time.Duration) Option {
	return func(s *Supervisor) { s.restartDelay = d }
}

// WithLogger replaces the logger derived from the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Supervisor) { s.log = l.With().Str("component", BinaryName).Logger() }
}

// WithPublisher sets the receiver of lifecycle events.
func WithPublisher(p events.Publisher) Option {
	return func(s *Supervisor) { s.publisher = p }
}

// WithMonitorTimeout bounds WaitMonitorStarted and WaitForIteration.
func WithMonitorTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.monitorTimeout = d }
}

// Supervisor owns the lifecycle of one agent process.
type Supervisor struct {
	handle         process.Handle
	argv           []string
	log            zerolog.Logger
	publisher      events.Publisher
	monitorTimeout time.Duration

	// serializes Start and Stop
	startStopMu sync.Mutex

	// guards everything below up to delayMu; shared with the monitor
	mu          sync.Mutex
	pid         process.PID
	armed       bool
	state       State
	restarts    uint64
	lastOutcome string
	stopCh      chan struct{}
	startedCh   chan struct{}
	done        chan struct{}

	delayMu      sync.RWMutex
	restartDelay time.Duration

	monitorStarted atomic.Bool

	iterMu    sync.Mutex
	iteration uint64
	iterCh    chan struct{}
}

// New creates a supervisor for the agent installed in basePath reading its
// configuration from configPath.
func New(basePath, configPath string, h process.Handle, opts ...Option) (*Supervisor, error) {
	if basePath == "" {
		return nil, ErrNoBasePath
	}
	s := &Supervisor{
		handle:         h,
		argv:           Command(basePath, configPath),
		log:            log.With().Str("component", BinaryName).Logger(),
		publisher:      events.Nop{},
		monitorTimeout: DefaultMonitorTimeout,
		pid:            process.InvalidPID,
		state:          StateStopped,
		restartDelay:   DefaultRestartDelay,
		iterCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start sweeps a stray agent instance, spawns a fresh one and starts the
// monitoring goroutine. It does not wait for the agent to exit.
func (s *Supervisor) Start() status.Status {
	s.startStopMu.Lock()
	defer s.startStopMu.Unlock()

	if s.Armed() || s.monitorActive() {
		s.log.Warn().Msg("already supervising, refusing to start twice")
		return status.Exists
	}

	s.killStray()

	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.startProcess(); st != status.OK {
		s.log.Error().Stringer("status", st).Msg("could not start the process")
		s.setState(StateFailed)
		s.publish(events.Event{Type: events.StartFailed})
		return status.Fail
	}

	s.armed = true
	s.stopCh = make(chan struct{})
	s.startedCh = make(chan struct{})
	s.done = make(chan struct{})
	s.setState(StateRunning)
	s.publish(events.Event{Type: events.Started, PID: int(s.pid)})
	s.log.Debug().Int("pid", int(s.pid)).Msg("process successfully launched")

	go s.monitor(s.stopCh, s.startedCh, s.done)
	return status.OK
}

// Stop disarms the supervisor, terminates the agent and waits for the
// monitoring goroutine to finish. Stopping a supervisor that is not armed
// is a no-op.
func (s *Supervisor) Stop() status.Status {
	s.startStopMu.Lock()
	defer s.startStopMu.Unlock()

	s.mu.Lock()
	if !s.armed {
		s.mu.Unlock()
		return status.OK
	}
	// Disarm before killing so the monitor treats the exit as intentional.
	s.armed = false
	close(s.stopCh)
	if st := s.stopProcess(); st != status.OK {
		s.log.Error().Stringer("status", st).Msg("could not stop the process")
		s.publish(events.Event{Type: events.StopFailed, PID: int(s.pid)})
		s.mu.Unlock()
		return status.Fail
	}
	done := s.done
	s.mu.Unlock()

	// The monitor takes s.mu, so join without holding it.
	if done != nil {
		<-done
	}

	s.mu.Lock()
	s.setState(StateStopped)
	s.publish(events.Event{Type: events.Stopped})
	s.mu.Unlock()
	s.log.Debug().Msg("process successfully stopped")
	return status.OK
}

// SetRestartDelay changes the delay used for subsequent restarts.
func (s *Supervisor) SetRestartDelay(d time.Duration) {
	s.delayMu.Lock()
	defer s.delayMu.Unlock()
	s.restartDelay = d
}

// RestartDelay returns the current restart delay.
func (s *Supervisor) RestartDelay() time.Duration {
	s.delayMu.RLock()
	defer s.delayMu.RUnlock()
	return s.restartDelay
}

// Command returns the agent command line.
func (s *Supervisor) Command() []string { return slices.Clone(s.argv) }

// PID returns the pid of the supervised process, or process.InvalidPID.
func (s *Supervisor) PID() process.PID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

// Armed reports whether the supervisor intends the agent to be running.
func (s *Supervisor) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Snapshot is a point-in-time view of the supervisor.
type Snapshot struct {
	Name           string   `json:"name"`
	State          State    `json:"state"`
	PID            int      `json:"pid"`
	Armed          bool     `json:"armed"`
	MonitorRunning bool     `json:"monitor_running"`
	Iterations     uint64   `json:"iterations"`
	Restarts       uint64   `json:"restarts"`
	LastOutcome    string   `json:"last_outcome,omitempty"`
	RestartDelay   string   `json:"restart_delay"`
	Command        []string `json:"command"`
}

// Status returns a snapshot of the supervisor state.
func (s *Supervisor) Status() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Name:        BinaryName,
		State:       s.state,
		PID:         int(s.pid),
		Armed:       s.armed,
		Restarts:    s.restarts,
		LastOutcome: s.lastOutcome,
		Command:     slices.Clone(s.argv),
	}
	s.mu.Unlock()
	snap.MonitorRunning = s.monitorActive()
	snap.Iterations = s.Iterations()
	snap.RestartDelay = s.RestartDelay().String()
	return snap
}

// killStray terminates the first live process running the agent binary.
// At most one instance is killed per call; failures are only logged.
func (s *Supervisor) killStray() {
	pids, err := s.handle.ListLive()
	if err != nil {
		s.log.Warn().Err(err).Msg("could not enumerate processes")
		return
	}
	for _, pid := range pids {
		if name, ok := s.handle.ExecutableName(pid); !ok || name != BinaryName {
			continue
		}
		if err := s.handle.Terminate(pid); err != nil {
			s.log.Error().Err(err).Int("pid", int(pid)).Msg("failed to terminate previous instance")
			return
		}
		s.log.Debug().Int("pid", int(pid)).Msg("previous instance terminated")
		metrics.IncStrayKills(BinaryName)
		s.publish(events.Event{Type: events.StrayKilled, PID: int(pid)})
		return
	}
}

// startProcess spawns the agent. Callers hold s.mu.
func (s *Supervisor) startProcess() status.Status {
	if s.pid != process.InvalidPID {
		s.log.Debug().Int("pid", int(s.pid)).Msg("process is still running")
		return status.Error
	}

	pid, err := s.handle.Spawn(s.argv)
	if err != nil {
		var execErr *process.ExecError
		if errors.As(err, &execErr) {
			s.log.Error().Err(err).Int("code", execErr.Code()).Msg("exec failed, failed to start agent")
		} else {
			s.log.Error().Err(err).Msg("child process creation failed")
		}
		return status.Error
	}

	s.pid = pid
	s.log.Debug().Str("path", s.argv[0]).Int("pid", int(pid)).Msg("starting process")
	return status.OK
}

// stopProcess terminates the agent. Callers hold s.mu. On failure the pid
// is kept so the caller may retry.
func (s *Supervisor) stopProcess() status.Status {
	if !s.pid.Valid() {
		s.log.Warn().Msg("unable to stop, process is not running")
		return status.OK
	}
	if err := s.handle.Terminate(s.pid); err != nil {
		s.log.Error().Err(err).Int("pid", int(s.pid)).Msg("failed to terminate process")
		return status.Error
	}
	s.log.Debug().Str("path", s.argv[0]).Int("pid", int(s.pid)).Msg("stopped the process")
	s.pid = process.InvalidPID
	return status.OK
}

// setState changes state with logging. Callers hold s.mu.
func (s *Supervisor) setState(st State) {
	s.state = st
	metrics.ObserveState(BinaryName, string(st))
	s.log.Info().Str("state", string(st)).Msg("state change")
}

func (s *Supervisor) publish(e events.Event) {
	e.Component = BinaryName
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	s.publisher.Publish(e)
}
