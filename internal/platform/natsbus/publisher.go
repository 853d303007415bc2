// Package natsbus publishes generation progress to NATS as CloudEvents, so
// processes other than the one running a task can follow it.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/phrazzld/docgen/internal/events"
)

// Event attributes
const (
	ProgressEventType = "com.docgen.generation.progress"
	DefaultPrefix     = "docgen.progress"
	DefaultSource     = "/docgen/orchestrator"
)

// Publisher implements events.Sink. Each event is published in CloudEvents
// structured JSON mode on "<prefix>.<task_id>".
type Publisher struct {
	conn   *nats.Conn
	prefix string
	source string
	logger *slog.Logger
}

var _ events.Sink = (*Publisher)(nil)

// NewPublisher creates a Publisher. Empty prefix and source use the defaults.
func NewPublisher(conn *nats.Conn, prefix, source string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if source == "" {
		source = DefaultSource
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		prefix: prefix,
		source: source,
		logger: logger.With("component", "natsbus"),
	}
}

// Subject returns the subject events of taskID are published on.
func (p *Publisher) Subject(taskID uuid.UUID) string {
	return p.prefix + "." + taskID.String()
}

// WildcardSubject matches the events of every task.
func (p *Publisher) WildcardSubject() string {
	return p.prefix + ".*"
}

// Publish implements events.Sink. nats.Conn buffers outgoing messages, so
// this does not wait for the server.
func (p *Publisher) Publish(_ context.Context, ev events.ProgressEvent) error {
	data, err := Encode(ev, p.source)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.Subject(ev.TaskID), data); err != nil {
		return fmt.Errorf("failed to publish progress event: %w", err)
	}
	return nil
}

// Encode wraps ev in a CloudEvent and marshals it.
func Encode(ev events.ProgressEvent, source string) ([]byte, error) {
	ce := cloudevents.NewEvent()
	ce.SetID(uuid.NewString())
	ce.SetSource(source)
	ce.SetType(ProgressEventType)
	ce.SetSubject(ev.TaskID.String())
	ce.SetTime(ev.Timestamp)
	if err := ce.SetData(cloudevents.ApplicationJSON, ev); err != nil {
		return nil, fmt.Errorf("failed to set event data: %w", err)
	}
	if err := ce.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cloudevent: %w", err)
	}
	return json.Marshal(ce)
}

// Decode parses a message produced by Encode.
func Decode(data []byte) (events.ProgressEvent, error) {
	var ce cloudevents.Event
	if err := json.Unmarshal(data, &ce); err != nil {
		return events.ProgressEvent{}, fmt.Errorf("failed to decode cloudevent: %w", err)
	}
	if ce.Type() != ProgressEventType {
		return events.ProgressEvent{}, fmt.Errorf("unexpected event type %q", ce.Type())
	}
	var ev events.ProgressEvent
	if err := ce.DataAs(&ev); err != nil {
		return events.ProgressEvent{}, fmt.Errorf("failed to decode progress event: %w", err)
	}
	return ev, nil
}

// Connect dials NATS with reconnects enabled and connection changes logged.
func Connect(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "natsbus")

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrlRedacted())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return nc, nil
}

// Close flushes buffered events, waiting at most timeout, and closes the
// connection.
func (p *Publisher) Close(timeout time.Duration) error {
	defer p.conn.Close()
	if err := p.conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("failed to flush progress events: %w", err)
	}
	return nil
}
