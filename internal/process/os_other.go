//go:build !unix

package process

// OS is a stub Handle for platforms without a supervision backend.
type OS struct{}

func New() Handle { return OS{} }

func (OS) Spawn([]string) (PID, error) { return InvalidPID, ErrUnsupported }
func (OS) Terminate(PID) error { return ErrUnsupported }
func (OS) ListLive() ([]PID, error) { return nil, ErrUnsupported }
func (OS) ExecutableName(PID) (string, bool) { return "", false }
func (OS) Wait(PID) WaitOutcome { return UnknownStatus }
