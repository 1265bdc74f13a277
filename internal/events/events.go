// Package events publishes run lifecycle events over NATS so downstream
// consumers (the embedding pipeline, dashboards) can react to fresh corpus
// content without polling the output tree.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/corpusbuilder/internal/logfields"
)

// RunStarted is emitted when the scheduler begins dequeuing tasks.
type RunStarted struct {
	RunID     string    `json:"run_id"`
	Version   string    `json:"version"`
	Workers   int       `json:"workers"`
	Tasks     int       `json:"tasks"`
	StartedAt time.Time `json:"started_at"`
}

// TaskFinished is emitted once per task terminal state.
type TaskFinished struct {
	RunID      string `json:"run_id"`
	Project    string `json:"project"`
	Label      string `json:"label"`
	Status     string `json:"status"`
	Stage      string `json:"stage"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunCompleted is emitted after prune and finalize; OutputDir points at the
// published aggregate tree.
type RunCompleted struct {
	RunID      string    `json:"run_id"`
	Version    string    `json:"version"`
	Succeeded  int       `json:"succeeded"`
	Partial    int       `json:"partial"`
	Failed     int       `json:"failed"`
	OutputDir  string    `json:"output_dir"`
	FinishedAt time.Time `json:"finished_at"`
}

// Publisher emits run lifecycle events. Implementations must be safe to call
// with publishing disabled.
type Publisher interface {
	PublishRunStarted(e RunStarted)
	PublishTaskFinished(e TaskFinished)
	PublishRunCompleted(e RunCompleted)
	Close()
}

// NoopPublisher drops every event (default when events are not configured).
type NoopPublisher struct{}

func (NoopPublisher) PublishRunStarted(RunStarted)     {}
func (NoopPublisher) PublishTaskFinished(TaskFinished) {}
func (NoopPublisher) PublishRunCompleted(RunCompleted) {}
func (NoopPublisher) Close()                           {}

// NATSPublisher publishes events to a NATS server under a subject prefix.
// Publish failures are logged and swallowed: eventing must never fail a run.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to the NATS server.
func NewNATSPublisher(url, subjectPrefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("Connected to NATS for run events", logfields.URL(url), slog.String("prefix", subjectPrefix))
	return &NATSPublisher{conn: conn, prefix: subjectPrefix}, nil
}

func (p *NATSPublisher) PublishRunStarted(e RunStarted) {
	p.publish("run.started", e)
}

func (p *NATSPublisher) PublishTaskFinished(e TaskFinished) {
	p.publish("task.finished", e)
}

func (p *NATSPublisher) PublishRunCompleted(e RunCompleted) {
	p.publish("run.completed", e)
}

func (p *NATSPublisher) publish(subject string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", slog.String("subject", subject), logfields.Error(err))
		return
	}
	if err := p.conn.Publish(p.prefix+"."+subject, data); err != nil {
		slog.Warn("Failed to publish event", slog.String("subject", subject), logfields.Error(err))
	}
}

// Close flushes and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Flush()
		p.conn.Close()
	}
}

// FromConfig returns a NATS publisher when events are enabled, the noop
// publisher otherwise. A connection failure degrades to noop with a warning
// rather than failing the run.
func FromConfig(enabled bool, url, subjectPrefix string) Publisher {
	if !enabled {
		return NoopPublisher{}
	}
	pub, err := NewNATSPublisher(url, subjectPrefix)
	if err != nil {
		slog.Warn("Run events disabled: NATS unreachable", logfields.Error(err))
		return NoopPublisher{}
	}
	return pub
}
