// Package control is the module-facing surface of the supervisor: start,
// stop and option entry points returning public Result codes. No panic
// escapes an entry point.
package control

import (
	"encoding/binary"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/carlosprados/pmcontrol/internal/events"
	"github.com/carlosprados/pmcontrol/internal/logging"
	"github.com/carlosprados/pmcontrol/internal/process"
	"github.com/carlosprados/pmcontrol/internal/state"
	"github.com/carlosprados/pmcontrol/internal/supervisor"
)

// Option customizes a Plugin.
type Option func(*Plugin)

// WithHandle replaces the OS process handle, typically with a process.Fake.
func WithHandle(h process.Handle) Option {
	return func(p *Plugin) { p.handle = h }
}

// WithPublisher adds a receiver of supervisor lifecycle events.
func WithPublisher(pub events.Publisher) Option {
	return func(p *Plugin) { p.publishers = append(p.publishers, pub) }
}

// WithSupervisorOptions passes options to the supervisor built on first start.
func WithSupervisorOptions(opts ...supervisor.Option) Option {
	return func(p *Plugin) { p.supOpts = append(p.supOpts, opts...) }
}

// Plugin owns one lazily constructed supervisor. The paths given to the
// first successful construction are kept for the plugin's lifetime.
type Plugin struct {
	handle     process.Handle
	publishers []events.Publisher
	supOpts    []supervisor.Option

	mu       sync.Mutex
	sup      *supervisor.Supervisor
	recorder *state.Recorder
	started  bool
}

func New(opts ...Option) *Plugin {
	p := &Plugin{}
	for _, opt := range opts {
		opt(p)
	}
	if p.handle == nil {
		p.handle = process.New()
	}
	return p
}

// Start launches and supervises the agent.
func (p *Plugin) Start(basePath, dataPath, configPath string) (res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer recoverInto("start", &res, GeneralError)

	if p.started {
		log.Debug().Msg("package manager agent already started")
		return AlreadyStarted
	}
	sup, err := p.supervisor(basePath, dataPath, configPath)
	if err != nil {
		log.Error().Err(err).Msg("could not create supervisor")
		return GeneralError
	}
	res = fromStatus(sup.Start())
	if res == Success {
		p.started = true
	}
	return res
}

// Stop stops the agent started by Start.
func (p *Plugin) Stop() (res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Once a supervisor exists a fault may leave the agent running.
	onPanic := NotStarted
	if p.sup != nil {
		onPanic = GeneralError
	}
	defer recoverInto("stop", &res, onPanic)

	if !p.started || p.sup == nil {
		log.Warn().Msg("package manager agent not started")
		return NotStarted
	}
	res = fromStatus(p.sup.Stop())
	if res == Success {
		p.started = false
	}
	return res
}

// SetOption applies a module option. The only option is OptionLogLevel,
// whose value is a little-endian int32 CM severity.
func (p *Plugin) SetOption(id OptionID, value []byte) (res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer recoverInto("set option", &res, GeneralError)

	if id != OptionLogLevel {
		log.Warn().Int32("option", int32(id)).Msg("invalid option parameter")
		return InvalidParam
	}
	if len(value) != 4 {
		log.Warn().Int("size", len(value)).Msg("invalid log level size")
		return InvalidParam
	}
	cm := int32(binary.LittleEndian.Uint32(value))
	lvl, ok := logging.FromCMLevel(cm)
	if !ok {
		log.Warn().Int32("level", cm).Msg("invalid log level")
		return InvalidParam
	}
	logging.SetLevel(lvl)
	return Success
}

// Started reports whether the agent is currently started through this plugin.
func (p *Plugin) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Supervisor returns the supervisor, or nil before the first start.
func (p *Plugin) Supervisor() *supervisor.Supervisor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sup
}

// Recorder returns the state recorder, or nil when no data path was given.
func (p *Plugin) Recorder() *state.Recorder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recorder
}

// supervisor builds the supervisor on first use. Callers hold p.mu.
func (p *Plugin) supervisor(basePath, dataPath, configPath string) (*supervisor.Supervisor, error) {
	if p.sup != nil {
		return p.sup, nil
	}

	pubs := append([]events.Publisher(nil), p.publishers...)
	var rec *state.Recorder
	if dataPath != "" {
		rec = state.NewRecorder(dataPath)
		pubs = append(pubs, rec)
	}
	opts := append([]supervisor.Option{supervisor.WithPublisher(events.Multi(pubs))}, p.supOpts...)

	sup, err := supervisor.New(basePath, configPath, p.handle, opts...)
	if err != nil {
		return nil, err
	}
	p.sup, p.recorder = sup, rec
	return sup, nil
}

func recoverInto(op string, res *Result, onPanic Result) {
	if r := recover(); r != nil {
		log.Error().Str("op", op).Interface("panic", r).Msg("fault at module boundary")
		*res = onPanic
	}
}
