package control

import (
	"encoding/binary"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosprados/pmcontrol/internal/events"
	"github.com/carlosprados/pmcontrol/internal/process"
	"github.com/carlosprados/pmcontrol/internal/state"
	"github.com/carlosprados/pmcontrol/internal/status"
	"github.com/carlosprados/pmcontrol/internal/supervisor"
)

func newTestPlugin(t *testing.T, opts ...Option) (*Plugin, *process.Fake) {
	t.Helper()
	fake := process.NewFake(supervisor.BinaryName)
	opts = append([]Option{
		WithHandle(fake),
		WithSupervisorOptions(supervisor.WithRestartDelay(10 * time.Millisecond)),
	}, opts...)
	return New(opts...), fake
}

func levelBytes(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func TestStartTwiceReturnsAlreadyStarted(t *testing.T) {
	p, fake := newTestPlugin(t)

	require.Equal(t, Success, p.Start("/opt/cm/bin", "", "/opt/cm/etc"))
	assert.True(t, p.Started())
	assert.Equal(t, AlreadyStarted, p.Start("/opt/cm/bin", "", "/opt/cm/etc"))

	live, err := fake.ListLive()
	require.NoError(t, err)
	assert.Len(t, live, 1)
	assert.Equal(t, 1, fake.ForkCalls())

	require.Equal(t, Success, p.Stop())
	assert.False(t, p.Started())
	live, err = fake.ListLive()
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestStopWithoutStart(t *testing.T) {
	p, _ := newTestPlugin(t)
	assert.Equal(t, NotStarted, p.Stop())
	assert.Nil(t, p.Supervisor())
}

func TestStopAfterStopReturnsNotStarted(t *testing.T) {
	p, _ := newTestPlugin(t)
	require.Equal(t, Success, p.Start("/opt/cm/bin", "", "/opt/cm/etc"))
	require.Equal(t, Success, p.Stop())
	assert.Equal(t, NotStarted, p.Stop())
}

func TestStartWithoutBasePath(t *testing.T) {
	p, fake := newTestPlugin(t)
	assert.Equal(t, GeneralError, p.Start("", "", "/opt/cm/etc"))
	assert.Nil(t, p.Supervisor())
	assert.Equal(t, 0, fake.ForkCalls())
	assert.Equal(t, NotStarted, p.Stop())

	// A later call with a usable path builds the supervisor.
	require.Equal(t, Success, p.Start("/opt/cm/bin", "", "/opt/cm/etc"))
	require.Equal(t, Success, p.Stop())
}

func TestStartFailureMapsToGeneralError(t *testing.T) {
	p, fake := newTestPlugin(t)
	fake.AddForkCall(func() (process.PID, error) {
		return process.InvalidPID, &process.OSError{Op: "fork", Errno: syscall.EAGAIN}
	})

	assert.Equal(t, GeneralError, p.Start("/opt/cm/bin", "", "/opt/cm/etc"))
	assert.False(t, p.Started())
	assert.Equal(t, NotStarted, p.Stop())
}

func TestPathsFromFirstConstructionAreKept(t *testing.T) {
	p, fake := newTestPlugin(t)
	require.Equal(t, Success, p.Start("/first", "", "/first/etc"))
	require.Equal(t, Success, p.Stop())
	require.Equal(t, Success, p.Start("/second", "", "/second/etc"))
	require.Equal(t, Success, p.Stop())

	argvs := fake.Argvs()
	require.Len(t, argvs, 2)
	assert.Equal(t, argvs[0], argvs[1])
	assert.Equal(t, "/first/cmpackagemanager", argvs[1][0])
}

func TestStartRecordsStateInDataPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	var seen []events.Type
	p, _ := newTestPlugin(t, WithPublisher(events.Func(func(e events.Event) { seen = append(seen, e.Type) })))

	require.Equal(t, Success, p.Start("/opt/cm/bin", dir, "/opt/cm/etc"))
	require.NotNil(t, p.Recorder())

	snap, err := state.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "running", snap.State)
	assert.Equal(t, 1, snap.PID)

	require.Equal(t, Success, p.Stop())
	snap, err = state.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "stopped", snap.State)
	assert.Equal(t, []events.Type{events.Started, events.Stopped}, seen)
}

func TestSetOptionLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	p, _ := newTestPlugin(t)
	require.Equal(t, Success, p.SetOption(OptionLogLevel, levelBytes(7)))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	require.Equal(t, Success, p.SetOption(OptionLogLevel, levelBytes(3)))
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}

func TestSetOptionInvalid(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	p, _ := newTestPlugin(t)
	assert.Equal(t, InvalidParam, p.SetOption(OptionID(1), levelBytes(7)))
	assert.Equal(t, InvalidParam, p.SetOption(OptionLogLevel, []byte{7}))
	assert.Equal(t, InvalidParam, p.SetOption(OptionLogLevel, nil))
	assert.Equal(t, InvalidParam, p.SetOption(OptionLogLevel, levelBytes(0)))
	assert.Equal(t, InvalidParam, p.SetOption(OptionLogLevel, levelBytes(8)))
	assert.Equal(t, prev, zerolog.GlobalLevel())
}

type panickingHandle struct{ process.Handle }

func (panickingHandle) ListLive() ([]process.PID, error) { panic("boom") }

func TestPanicDoesNotEscape(t *testing.T) {
	p := New(WithHandle(panickingHandle{process.NewFake(supervisor.BinaryName)}))
	var res Result
	require.NotPanics(t, func() { res = p.Start("/opt/cm/bin", "", "/opt/cm/etc") })
	assert.Equal(t, GeneralError, res)
	assert.False(t, p.Started())
}

type terminatePanicHandle struct{ *process.Fake }

func (terminatePanicHandle) Terminate(process.PID) error { panic("boom") }

func TestPanicDuringStopIsGeneralError(t *testing.T) {
	p := New(WithHandle(terminatePanicHandle{process.NewFake(supervisor.BinaryName)}))
	require.Equal(t, Success, p.Start("/opt/cm/bin", "", "/opt/cm/etc"))

	var res Result
	require.NotPanics(t, func() { res = p.Stop() })
	assert.Equal(t, GeneralError, res)
	assert.True(t, p.Started())
}

func TestFromStatus(t *testing.T) {
	assert.Equal(t, Success, fromStatus(status.OK))
	for _, s := range []status.Status{status.Fail, status.Error, status.Exists, status.Timeout, status.Max} {
		assert.Equal(t, GeneralError, fromStatus(s), s.String())
	}
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "ALREADY_STARTED", AlreadyStarted.String())
	assert.Equal(t, "result(42)", Result(42).String())
}
