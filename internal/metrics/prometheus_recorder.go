package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	workerCapacity prom.Gauge
	runningTasks   prom.Gauge
	taskResults    *prom.CounterVec
	taskDuration   *prom.HistogramVec
	stageDuration  *prom.HistogramVec
	stageResults   *prom.CounterVec
	runDuration    prom.Histogram
	runOutcome     *prom.CounterVec
	cloneRetries   *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.workerCapacity = prom.NewGauge(prom.GaugeOpts{
			Namespace: "corpusbuilder",
			Name:      "worker_capacity",
			Help:      "Configured maximum number of concurrent build tasks",
		})
		pr.runningTasks = prom.NewGauge(prom.GaugeOpts{
			Namespace: "corpusbuilder",
			Name:      "running_tasks",
			Help:      "Number of build tasks currently running",
		})
		pr.taskResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "corpusbuilder",
			Name:      "task_results_total",
			Help:      "Task results by outcome",
		}, []string{"result"})
		pr.taskDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "corpusbuilder",
			Name:      "task_duration_seconds",
			Help:      "Duration of complete per-project build tasks",
			Buckets:   prom.DefBuckets,
		}, []string{"project", "result"})
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "corpusbuilder",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "corpusbuilder",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "corpusbuilder",
			Name:      "run_duration_seconds",
			Help:      "Total corpus run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "corpusbuilder",
			Name:      "run_outcomes_total",
			Help:      "Corpus run outcomes by final status",
		}, []string{"outcome"})
		pr.cloneRetries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "corpusbuilder",
			Name:      "clone_retries_total",
			Help:      "Total clone retries (transient failures)",
		}, []string{"project"})
		reg.MustRegister(pr.workerCapacity, pr.runningTasks, pr.taskResults, pr.taskDuration, pr.stageDuration, pr.stageResults, pr.runDuration, pr.runOutcome, pr.cloneRetries)
	})
	return pr
}

func (p *PrometheusRecorder) SetWorkerCapacity(n int) {
	if p == nil || p.workerCapacity == nil {
		return
	}
	p.workerCapacity.Set(float64(n))
}

func (p *PrometheusRecorder) SetRunningTasks(n int) {
	if p == nil || p.runningTasks == nil {
		return
	}
	p.runningTasks.Set(float64(n))
}

func (p *PrometheusRecorder) IncTaskResult(result ResultLabel) {
	if p == nil || p.taskResults == nil {
		return
	}
	p.taskResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveTaskDuration(project string, d time.Duration, success bool) {
	if p == nil || p.taskDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.taskDuration.WithLabelValues(project, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome ResultLabel) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncCloneRetry(project string) {
	if p == nil || p.cloneRetries == nil {
		return
	}
	p.cloneRetries.WithLabelValues(project).Inc()
}
