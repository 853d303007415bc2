package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscriber channel capacity used when none is
// configured.
const DefaultBufferSize = 16

// Broadcaster delivers progress events to per-task subscribers.
//
// Per task, progress never goes backwards: a non-terminal event with lower
// progress than the last one is dropped. A subscriber joining mid-stream first
// receives the last event. A terminal event is delivered, then every
// subscriber channel of the task is closed and its state released.
type Broadcaster struct {
	bufferSize int
	logger     *slog.Logger

	mu      sync.Mutex
	streams map[uuid.UUID]*stream
}

type stream struct {
	last   *ProgressEvent
	subs   map[uint64]chan ProgressEvent
	nextID uint64
}

var _ Sink = (*Broadcaster)(nil)

// NewBroadcaster creates a Broadcaster. A bufferSize below 1 uses
// DefaultBufferSize.
func NewBroadcaster(bufferSize int, logger *slog.Logger) *Broadcaster {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	return &Broadcaster{
		bufferSize: bufferSize,
		logger:     logger.With("component", "progress_broadcaster"),
		streams:    make(map[uuid.UUID]*stream),
	}
}

// Subscribe returns a channel of events for taskID and a func that ends the
// subscription. The channel is closed after the task's terminal event or
// when the subscription ends.
func (b *Broadcaster) Subscribe(taskID uuid.UUID) (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, b.bufferSize)

	b.mu.Lock()
	s := b.streamLocked(taskID)
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	if s.last != nil {
		ch <- *s.last
	}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			s, ok := b.streams[taskID]
			if !ok {
				return
			}
			if sub, ok := s.subs[id]; ok && sub == ch {
				delete(s.subs, id)
				close(sub)
			}
			if len(s.subs) == 0 && s.last == nil {
				delete(b.streams, taskID)
			}
		})
	}
}

// Publish delivers event to the task's subscribers without blocking.
func (b *Broadcaster) Publish(_ context.Context, event ProgressEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.streamLocked(event.TaskID)
	if s.last != nil && event.Progress < s.last.Progress {
		if !event.Terminal() {
			b.logger.Debug("dropping progress regression",
				"task_id", event.TaskID,
				"progress", event.Progress,
				"last_progress", s.last.Progress)
			return nil
		}
		event.Progress = s.last.Progress
	}
	s.last = &event

	for id, ch := range s.subs {
		if !offer(ch, event) {
			b.logger.Warn("subscriber buffer contended, event lost",
				"task_id", event.TaskID,
				"subscriber", id)
		}
	}

	if event.Terminal() {
		for _, ch := range s.subs {
			close(ch)
		}
		delete(b.streams, event.TaskID)
	}
	return nil
}

// offer sends event, evicting the oldest buffered event when ch is full.
func offer(ch chan ProgressEvent, event ProgressEvent) bool {
	select {
	case ch <- event:
		return true
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- event:
		return true
	default:
		return false
	}
}

// Subscribers returns the number of live subscriptions for taskID.
func (b *Broadcaster) Subscribers(taskID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.streams[taskID]; ok {
		return len(s.subs)
	}
	return 0
}

func (b *Broadcaster) streamLocked(taskID uuid.UUID) *stream {
	s, ok := b.streams[taskID]
	if !ok {
		s = &stream{subs: make(map[uint64]chan ProgressEvent)}
		b.streams[taskID] = s
	}
	return s
}
