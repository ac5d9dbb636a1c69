package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// States the supervised agent can be observed in.
var States = []string{"stopped", "running", "restarting", "failed"}

var (
	once       sync.Once
	agentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pmcontrol",
			Subsystem: "agent",
			Name:      "state",
			Help:      "Supervised agent state gauge (1 for the current state, 0 otherwise).",
		},
		[]string{"name", "state"},
	)
	agentRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pmcontrol",
			Subsystem: "agent",
			Name:      "restarts_total",
			Help:      "Number of crash restarts attempted for the agent.",
		},
		[]string{"name"},
	)
	monitorIterations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pmcontrol",
			Subsystem: "monitor",
			Name:      "iterations_total",
			Help:      "Completed monitoring loop passes.",
		},
		[]string{"name"},
	)
	waitOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pmcontrol",
			Subsystem: "monitor",
			Name:      "wait_outcomes_total",
			Help:      "Classified results of waiting on the agent process.",
		},
		[]string{"name", "outcome"},
	)
	strayKills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pmcontrol",
			Subsystem: "agent",
			Name:      "stray_kills_total",
			Help:      "Stray agent instances terminated before start.",
		},
		[]string{"name"},
	)
)

func init() {
	once.Do(func() {
		prometheus.MustRegister(agentState, agentRestarts, monitorIterations, waitOutcomes, strayKills)
	})
}

// ObserveState sets the gauge of the current state to 1 and the others to 0.
func ObserveState(name, state string) {
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		agentState.WithLabelValues(name, s).Set(v)
	}
}

func IncRestarts(name string) { agentRestarts.WithLabelValues(name).Inc() }
func IncIterations(name string) { monitorIterations.WithLabelValues(name).Inc() }
func IncStrayKills(name string) { strayKills.WithLabelValues(name).Inc() }
func ObserveWait(name, outcome string) { waitOutcomes.WithLabelValues(name, outcome).Inc() }
