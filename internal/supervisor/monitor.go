package supervisor

import (
	"time"

	"github.com/carlosprados/pmcontrol/internal/events"
	"github.com/carlosprados/pmcontrol/internal/metrics"
	"github.com/carlosprados/pmcontrol/internal/process"
)

// monitor waits on the agent and restarts it while armed. The blocking
// wait always runs without s.mu so that Stop can kill the agent to unblock it.
func (s *Supervisor) monitor(stop <-chan struct{}, started, done chan struct{}) {
	s.monitorStarted.Store(true)
	close(started)
	defer func() {
		s.monitorStarted.Store(false)
		close(done)
		s.iterMu.Lock()
		s.broadcastLocked()
		s.iterMu.Unlock()
		s.log.Debug().Msg("exiting monitor")
	}()

	for {
		s.mu.Lock()
		pid := s.pid
		s.mu.Unlock()

		outcome := s.handle.Wait(pid)
		metrics.ObserveWait(BinaryName, outcome.String())
		s.log.Debug().Int("pid", int(pid)).Stringer("outcome", outcome).Msg("child process signalled")

		switch outcome {
		case process.ImpossibleError:
			s.log.Error().Int("pid", int(pid)).Msg("wait contract violated, abandoning supervision")
			s.mu.Lock()
			s.lastOutcome = outcome.String()
			s.setState(StateFailed)
			s.publish(events.Event{Type: events.MonitorAborted, PID: int(pid), Outcome: outcome.String()})
			s.mu.Unlock()
			return
		case process.NotAChild:
			if err := s.handle.Terminate(pid); err != nil {
				s.log.Debug().Err(err).Int("pid", int(pid)).Msg("best-effort terminate failed")
			}
		}

		if !s.restart(pid, outcome, stop) {
			return
		}
	}
}

// restart takes the restart decision for one monitoring pass. It reports
// whether the monitor should keep going.
func (s *Supervisor) restart(pid process.PID, outcome process.WaitOutcome, stop <-chan struct{}) bool {
	s.mu.Lock()
	s.lastOutcome = outcome.String()
	// A failed Stop leaves the pid recorded; once waited on it is stale.
	if s.pid == pid {
		s.pid = process.InvalidPID
	}
	iteration := s.completeIteration()
	if !s.armed {
		s.mu.Unlock()
		return false
	}

	s.log.Warn().Int("pid", int(pid)).Stringer("outcome", outcome).Uint64("iteration", iteration).
		Msg("child process terminated, starting it again")
	s.publish(events.Event{Type: events.Exited, PID: int(pid), Outcome: outcome.String(), Iteration: iteration})
	s.setState(StateRestarting)
	s.mu.Unlock()

	delay := s.RestartDelay()
	timer := time.NewTimer(delay)
	select {
	case <-timer.C:
	case <-stop:
		timer.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return false
	}
	s.restarts++
	metrics.IncRestarts(BinaryName)
	if st := s.startProcess(); !st.Succeeded() {
		s.log.Error().Stringer("status", st).Dur("retry_in", delay).Msg("restart failed")
		s.setState(StateFailed)
		s.publish(events.Event{Type: events.RestartFailed, Iteration: iteration})
		return true
	}
	s.setState(StateRunning)
	s.publish(events.Event{Type: events.Restarting, PID: int(s.pid), Iteration: iteration})
	return true
}

// completeIteration bumps the iteration counter and wakes waiters.
func (s *Supervisor) completeIteration() uint64 {
	metrics.IncIterations(BinaryName)
	s.iterMu.Lock()
	defer s.iterMu.Unlock()
	s.iteration++
	s.broadcastLocked()
	return s.iteration
}

// broadcastLocked wakes everyone blocked on the current iteration channel.
// Callers hold s.iterMu.
func (s *Supervisor) broadcastLocked() {
	close(s.iterCh)
	s.iterCh = make(chan struct{})
}

func (s *Supervisor) monitorActive() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Iterations returns the number of completed monitoring passes.
func (s *Supervisor) Iterations() uint64 {
	s.iterMu.Lock()
	defer s.iterMu.Unlock()
	return s.iteration
}

// MonitorStarted reports whether the monitoring goroutine is running.
func (s *Supervisor) MonitorStarted() bool { return s.monitorStarted.Load() }

// WaitMonitorStarted blocks until the monitoring goroutine of the current
// session has started, bounded by the monitor timeout.
func (s *Supervisor) WaitMonitorStarted() bool {
	s.mu.Lock()
	started := s.startedCh
	s.mu.Unlock()
	if started == nil {
		return false
	}
	timer := time.NewTimer(s.monitorTimeout)
	defer timer.Stop()
	select {
	case <-started:
		return true
	case <-timer.C:
		return false
	}
}

// WaitForIteration blocks until at least n monitoring passes completed. It
// gives up when the monitor is not running or the monitor timeout elapses.
func (s *Supervisor) WaitForIteration(n uint64) bool {
	timer := time.NewTimer(s.monitorTimeout)
	defer timer.Stop()
	for {
		s.iterMu.Lock()
		reached, ch := s.iteration >= n, s.iterCh
		s.iterMu.Unlock()
		if reached {
			return true
		}
		if !s.monitorActive() {
			return false
		}
		select {
		case <-ch:
		case <-timer.C:
			return false
		}
	}
}

// WaitMonitorStopped joins the monitoring goroutine if one was started.
func (s *Supervisor) WaitMonitorStopped() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
