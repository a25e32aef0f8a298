package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "release"

// Recorder collects stage outcomes for one run.
type Recorder struct {
	registry *prometheus.Registry
	duration *prometheus.GaugeVec
	success  *prometheus.GaugeVec
	started  prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of the last run of each stage.",
		}, []string{"stage", "type"}),
		success: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_success",
			Help:      "1 if the stage succeeded in the last run, 0 if it failed.",
		}, []string{"stage", "type"}),
		started: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_timestamp_seconds",
			Help:      "Unix time the last run started.",
		}),
	}
	r.registry.MustRegister(r.duration, r.success, r.started)
	return r
}

// RunStarted records the run start time.
func (r *Recorder) RunStarted(t time.Time) {
	r.started.Set(float64(t.Unix()))
}

// StageFinished records the outcome of a stage.
func (r *Recorder) StageFinished(stage, stageType string, d time.Duration, err error) {
	r.duration.WithLabelValues(stage, stageType).Set(d.Seconds())
	ok := 0.0
	if err == nil {
		ok = 1
	}
	r.success.WithLabelValues(stage, stageType).Set(ok)
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Push sends the collected metrics to the Pushgateway at url, grouped by job
// and the given labels.
func (r *Recorder) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	p := push.New(url, job).Gatherer(r.registry)
	for k, v := range grouping {
		p = p.Grouping(k, v)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
