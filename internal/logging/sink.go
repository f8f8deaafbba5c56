package logging

import (
	"sync"

	"github.com/rs/zerolog"
)

// Event is one structured log event emitted by a goroutine handling a
// single node.
type Event struct {
	Level   zerolog.Level
	Node    string
	Message string
}

// Sink serializes log events from concurrent node handling through one
// drain goroutine, so per-node goroutines never interleave output and
// never share the underlying writer.
type Sink struct {
	logger zerolog.Logger
	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewSink(logger zerolog.Logger) *Sink {
	s := &Sink{
		logger: logger,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

func (s *Sink) drain() {
	defer close(s.done)
	for ev := range s.events {
		s.logger.WithLevel(ev.Level).Str("node", ev.Node).Msg(ev.Message)
	}
}

// Log queues one event. Safe for concurrent use; events logged after Close
// bypass the queue and go straight to the logger, so long-lived goroutines
// can keep logging past the sink's lifetime.
func (s *Sink) Log(level zerolog.Level, node, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.WithLevel(level).Str("node", node).Msg(message)
		return
	}
	s.events <- Event{Level: level, Node: node, Message: message}
}

func (s *Sink) Info(node, message string) { s.Log(zerolog.InfoLevel, node, message) }
func (s *Sink) Warn(node, message string) { s.Log(zerolog.WarnLevel, node, message) }
func (s *Sink) Error(node, message string) { s.Log(zerolog.ErrorLevel, node, message) }

// Close flushes queued events and stops the drain goroutine.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.events)
	<-s.done
}
