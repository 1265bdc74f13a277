package metrics

import "time"

// ResultLabel enumerates task and stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultPartial ResultLabel = "partial"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// Recorder defines observability hooks for run, task and stage metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	SetWorkerCapacity(n int)
	SetRunningTasks(n int)
	IncTaskResult(result ResultLabel)
	ObserveTaskDuration(project string, d time.Duration, success bool)
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome ResultLabel)
	IncCloneRetry(project string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) SetWorkerCapacity(int)                           {}
func (NoopRecorder) SetRunningTasks(int)                             {}
func (NoopRecorder) IncTaskResult(ResultLabel)                       {}
func (NoopRecorder) ObserveTaskDuration(string, time.Duration, bool) {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration)      {}
func (NoopRecorder) IncStageResult(string, ResultLabel)              {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                {}
func (NoopRecorder) IncRunOutcome(ResultLabel)                       {}
func (NoopRecorder) IncCloneRetry(string)                            {}
