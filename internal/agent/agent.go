package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carlosprados/pmcontrol/internal/config"
	"github.com/carlosprados/pmcontrol/internal/control"
	"github.com/carlosprados/pmcontrol/internal/events"
	"github.com/carlosprados/pmcontrol/internal/logging"
	"github.com/carlosprados/pmcontrol/internal/metrics"
	"github.com/carlosprados/pmcontrol/internal/process"
	"github.com/carlosprados/pmcontrol/internal/state"
	"github.com/carlosprados/pmcontrol/internal/supervisor"
	"github.com/carlosprados/pmcontrol/internal/version"
)

const sampleInterval = 10 * time.Second

// Options defines the runtime configuration of the daemon.
type Options struct {
	Settings config.Settings
	// Handle defaults to the OS process handle.
	Handle process.Handle
	// Publisher receives lifecycle events in addition to the built-in ones.
	Publisher events.Publisher
}

// Agent hosts the control module in a long-running daemon and exposes it
// over a local HTTP API.
type Agent struct {
	opts   Options
	start  time.Time
	closed atomic.Bool

	plugin *control.Plugin
	module control.ModuleContext

	mu           sync.Mutex
	settings     config.Settings
	cancelSample context.CancelFunc
}

// Status is the JSON view served at /v1/agent.
type Status struct {
	Started    bool                 `json:"started"`
	Version    string               `json:"version"`
	Supervisor *supervisor.Snapshot `json:"supervisor,omitempty"`
	Persisted  *state.Snapshot      `json:"persisted,omitempty"`
}

// New creates an Agent. The agent process is not started.
func New(opts Options) (*Agent, error) {
	delay, err := opts.Settings.Delay()
	if err != nil {
		return nil, err
	}
	a := &Agent{opts: opts, start: time.Now(), settings: opts.Settings}

	pubs := events.Multi{events.Func(a.track)}
	if opts.Publisher != nil {
		pubs = append(pubs, opts.Publisher)
	}
	popts := []control.Option{
		control.WithPublisher(pubs),
		control.WithSupervisorOptions(supervisor.WithRestartDelay(delay)),
	}
	if opts.Handle != nil {
		popts = append(popts, control.WithHandle(opts.Handle))
	}
	a.plugin = control.New(popts...)
	if res := control.CreateModuleInstance(a.plugin, &a.module); res != control.Success {
		return nil, fmt.Errorf("create module instance: %s", res)
	}
	return a, nil
}

// Start launches the agent with the configured paths.
func (a *Agent) Start() control.Result {
	s := a.Settings()
	res := a.module.FpStart(s.BasePath, s.DataPath, s.ConfigPath)
	log.Info().Stringer("result", res).Str("base", s.BasePath).Msg("start requested")
	return res
}

// Stop stops the agent.
func (a *Agent) Stop() control.Result {
	res := a.module.FpStop()
	log.Info().Stringer("result", res).Msg("stop requested")
	return res
}

// Status returns the current daemon view.
func (a *Agent) Status() Status {
	st := Status{Started: a.plugin.Started(), Version: version.Version}
	if sup := a.plugin.Supervisor(); sup != nil {
		snap := sup.Status()
		st.Supervisor = &snap
	}
	if rec := a.plugin.Recorder(); rec != nil {
		snap := rec.Snapshot()
		st.Persisted = &snap
	}
	return st
}

// Plugin returns the control plugin backing the module entry points.
func (a *Agent) Plugin() *control.Plugin { return a.plugin }

func (a *Agent) Settings() config.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// Apply takes the live-reloadable part of s: restart delay and log level.
// Paths and listeners keep the values the daemon started with.
func (a *Agent) Apply(s config.Settings) error {
	delay, err := s.Delay()
	if err != nil {
		return err
	}
	lvl, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil {
		return fmt.Errorf("log level %q: %w", s.LogLevel, err)
	}

	a.mu.Lock()
	a.settings.RestartDelay = s.RestartDelay
	a.settings.LogLevel = s.LogLevel
	a.mu.Unlock()

	if sup := a.plugin.Supervisor(); sup != nil {
		sup.SetRestartDelay(delay)
	}
	if lvl != zerolog.GlobalLevel() {
		logging.SetLevel(lvl)
	}
	return nil
}

// SetLogLevel forwards a CM severity through the module option entry point.
func (a *Agent) SetLogLevel(cm int32) control.Result {
	b := []byte{byte(cm), byte(cm >> 8), byte(cm >> 16), byte(cm >> 24)}
	return a.module.FpSetOption(control.OptionLogLevel, b)
}

// Close stops the agent if running and releases the module.
func (a *Agent) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	var errs []error
	if a.plugin.Started() {
		if res := a.Stop(); res != control.Success {
			errs = append(errs, fmt.Errorf("stop agent: %s", res))
		}
	}
	a.stopSampling()
	control.ReleaseModuleInstance(&a.module)
	if a.opts.Publisher != nil {
		errs = append(errs, a.opts.Publisher.Close())
	}
	return errors.Join(errs...)
}

// track samples resource usage of the current agent pid.
func (a *Agent) track(e events.Event) {
	switch e.Type {
	case events.Started, events.Restarting:
		a.stopSampling()
		ctx, cancel := context.WithCancel(context.Background())
		a.mu.Lock()
		a.cancelSample = cancel
		a.mu.Unlock()
		go metrics.SampleProcessMetrics(ctx, e.Component, e.PID, sampleInterval)
	case events.Exited, events.Stopped, events.MonitorAborted:
		a.stopSampling()
	}
}

func (a *Agent) stopSampling() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelSample != nil {
		a.cancelSample()
		a.cancelSample = nil
	}
}
