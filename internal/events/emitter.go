package events

import (
	"context"
	"log/slog"
	"sync"
)

// MultiSink publishes every event to all registered sinks.
type MultiSink struct {
	sinks  []Sink
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewMultiSink creates a MultiSink publishing to sinks.
func NewMultiSink(logger *slog.Logger, sinks ...Sink) *MultiSink {
	return &MultiSink{
		sinks:  append([]Sink(nil), sinks...),
		logger: logger.With("component", "multi_sink"),
	}
}

// Add registers another sink.
func (m *MultiSink) Add(sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, sink)
	m.logger.Debug("registered progress sink", "sink_count", len(m.sinks))
}

// Publish sends event to every sink. A failing sink does not stop delivery to
// the others; the first error is returned.
func (m *MultiSink) Publish(ctx context.Context, event ProgressEvent) error {
	m.mu.RLock()
	sinks := make([]Sink, len(m.sinks))
	copy(sinks, m.sinks)
	m.mu.RUnlock()

	var firstErr error
	for i, sink := range sinks {
		if err := sink.Publish(ctx, event); err != nil {
			m.logger.WarnContext(ctx, "progress sink failed",
				"error", err,
				"sink_index", i,
				"task_id", event.TaskID,
				"state", event.State)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
