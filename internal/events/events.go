// Package events carries supervisor lifecycle notifications to interested
// parties: local observers and, optionally, a message broker.
package events

import (
	"encoding/json"
	"errors"
	"time"
)

// Type names a lifecycle transition.
type Type string

const (
	Started        Type = "started"
	StartFailed    Type = "start_failed"
	StrayKilled    Type = "stray_killed"
	Exited         Type = "exited"
	Restarting     Type = "restarting"
	RestartFailed  Type = "restart_failed"
	Stopped        Type = "stopped"
	StopFailed     Type = "stop_failed"
	MonitorAborted Type = "monitor_aborted"
)

// Event is one lifecycle notification.
type Event struct {
	Type      Type      `json:"type"`
	Component string    `json:"component"`
	PID       int       `json:"pid,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Iteration uint64    `json:"iteration,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Encode returns the JSON wire form used by the broker publishers.
func (e Event) Encode() ([]byte, error) { return json.Marshal(e) }

// Publisher receives events. Publish is called with supervisor state locked
// and must return promptly.
type Publisher interface {
	Publish(Event)
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}
func (Nop) Close() error { return nil }

// Func adapts a function to a Publisher.
type Func func(Event)

func (f Func) Publish(e Event) { f(e) }
func (Func) Close() error { return nil }

// Multi fans events out to several publishers.
type Multi []Publisher

func (m Multi) Publish(e Event) {
	for _, p := range m {
		p.Publish(e)
	}
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
