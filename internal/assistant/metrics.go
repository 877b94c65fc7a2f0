package assistant

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	PollsTotal    prometheus.Counter
	ToolCallTotal *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics registers the collectors with the default registry once.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "sam_runs_total",
				Help: "Assistant runs by outcome",
			}, []string{"outcome"}),
			RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "sam_run_duration_seconds",
				Help:    "Time from run creation to answer",
				Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
			}),
			PollsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sam_run_polls_total",
				Help: "Run status polls that found the run still pending",
			}),
			ToolCallTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "sam_tool_calls_total",
				Help: "Tool calls by tool and outcome",
			}, []string{"tool", "outcome"}),
		}
	})
	return metricsInstance
}

func (m *Metrics) RecordRun(outcome string, d time.Duration) {
	if m == nil || m.RunsTotal == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.RunDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) RecordPoll() {
	if m == nil || m.PollsTotal == nil {
		return
	}
	m.PollsTotal.Inc()
}

func (m *Metrics) RecordToolCall(tool, outcome string) {
	if m == nil || m.ToolCallTotal == nil {
		return
	}
	m.ToolCallTotal.WithLabelValues(tool, outcome).Inc()
}
