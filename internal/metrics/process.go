package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	procCPU = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "pmcontrol", Subsystem: "agent", Name: "cpu_percent", Help: "Agent CPU percent"},
		[]string{"name"},
	)
	procRSS = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "pmcontrol", Subsystem: "agent", Name: "memory_rss_bytes", Help: "Agent RSS bytes"},
		[]string{"name"},
	)
)

func init() {
	prometheus.MustRegister(procCPU, procRSS)
}

// SampleProcessMetrics samples CPU and RSS of pid every interval until ctx
// is done or the process disappears.
func SampleProcessMetrics(ctx context.Context, name string, pid int, interval time.Duration) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return
	}
	// Warm-up for CPU percent baseline
	_, _ = p.CPUPercentWithContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ok, err := p.IsRunningWithContext(ctx); err != nil || !ok {
				procCPU.DeleteLabelValues(name)
				procRSS.DeleteLabelValues(name)
				return
			}
			if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
				procCPU.WithLabelValues(name).Set(cpu)
			}
			if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
				procRSS.WithLabelValues(name).Set(float64(mi.RSS))
			}
		}
	}
}
