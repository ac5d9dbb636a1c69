package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStateIsExclusive(t *testing.T) {
	ObserveState("metrics-test", "running")
	assert.Equal(t, 1.0, testutil.ToFloat64(agentState.WithLabelValues("metrics-test", "running")))
	assert.Equal(t, 0.0, testutil.ToFloat64(agentState.WithLabelValues("metrics-test", "stopped")))

	ObserveState("metrics-test", "stopped")
	assert.Equal(t, 0.0, testutil.ToFloat64(agentState.WithLabelValues("metrics-test", "running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(agentState.WithLabelValues("metrics-test", "stopped")))
}

func TestCounters(t *testing.T) {
	IncRestarts("metrics-test")
	IncRestarts("metrics-test")
	ObserveWait("metrics-test", "exited")

	assert.Equal(t, 2.0, testutil.ToFloat64(agentRestarts.WithLabelValues("metrics-test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(waitOutcomes.WithLabelValues("metrics-test", "exited")))
}
