// Package state persists the last known supervisor state to the data
// directory so operators and restarted hosts can inspect it.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carlosprados/pmcontrol/internal/events"
)

// FileName is the snapshot file inside the data directory.
const FileName = "pmcontrol_state.json"

type Snapshot struct {
	Agent       string    `json:"agent"`
	State       string    `json:"state"`
	PID         int       `json:"pid,omitempty"`
	Iteration   uint64    `json:"iteration,omitempty"`
	LastEvent   string    `json:"last_event"`
	LastOutcome string    `json:"last_outcome,omitempty"`
	StrayKills  int       `json:"stray_kills,omitempty"`
	Updated     time.Time `json:"updated"`
}

// Save writes snap atomically into dir.
func Save(dir string, snap Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, FileName)
	tmp := path + ".tmp"
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func Load(dir string) (Snapshot, error) {
	var snap Snapshot
	b, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// Recorder is an events.Publisher that folds lifecycle events into a
// Snapshot and saves it after each one.
type Recorder struct {
	dir string

	mu   sync.Mutex
	snap Snapshot
}

var _ events.Publisher = (*Recorder)(nil)

func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir, snap: Snapshot{State: "stopped"}}
}

// Publish implements events.Publisher. Save failures are logged.
func (r *Recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snap.Agent = e.Component
	r.snap.LastEvent = string(e.Type)
	r.snap.Updated = e.Time
	if e.Outcome != "" {
		r.snap.LastOutcome = e.Outcome
	}
	if e.Iteration > 0 {
		r.snap.Iteration = e.Iteration
	}
	switch e.Type {
	case events.Started, events.Restarting:
		r.snap.State, r.snap.PID = "running", e.PID
	case events.Exited:
		r.snap.State, r.snap.PID = "restarting", 0
	case events.StartFailed, events.RestartFailed, events.MonitorAborted:
		r.snap.State = "failed"
	case events.Stopped:
		r.snap.State, r.snap.PID = "stopped", 0
	case events.StrayKilled:
		r.snap.StrayKills++
	}

	if err := Save(r.dir, r.snap); err != nil {
		log.Warn().Err(err).Str("dir", r.dir).Msg("failed to persist state snapshot")
	}
}

// Snapshot returns the last recorded snapshot.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

func (r *Recorder) Close() error { return nil }
