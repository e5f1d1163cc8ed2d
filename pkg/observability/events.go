// Package observability provides the advisory event sink and metrics
// the engine reports into. Sinks must never block or fail the
// orchestration path.
package observability

import (
	"log/slog"
	"time"
)

// EventType classifies orchestration notifications.
type EventType string

const (
	EventPlanning      EventType = "planning"
	EventTaskStart     EventType = "task_start"
	EventTaskComplete  EventType = "task_complete"
	EventTaskError     EventType = "task_error"
	EventGroupStart    EventType = "group_start"
	EventGroupEnd      EventType = "group_end"
	EventInputRequired EventType = "input_required"
	EventThrottled     EventType = "throttled"
	EventGoalComplete  EventType = "goal_complete"
)

// Event is one orchestration notification.
type Event struct {
	Type    EventType         `json:"type"`
	Agent   string            `json:"agent,omitempty"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
	Time    time.Time         `json:"time"`
}

// Sink consumes orchestration events. Emit must not block.
type Sink interface {
	Emit(event Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// SlogSink logs events at debug level.
type SlogSink struct{}

func (SlogSink) Emit(event Event) {
	slog.Debug("orchestration event",
		"type", event.Type,
		"agent", event.Agent,
		"message", event.Message)
}

// ChannelSink forwards events to a buffered channel, dropping events
// when the consumer falls behind.
type ChannelSink struct {
	ch chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Events returns the consumer side of the sink.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

func (s *ChannelSink) Emit(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	select {
	case s.ch <- event:
	default:
		// Drop rather than block orchestration.
	}
}

// Close closes the consumer channel.
func (s *ChannelSink) Close() { close(s.ch) }

// Emit is a nil-safe helper for optional sinks.
func Emit(sink Sink, event Event) {
	if sink == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	sink.Emit(event)
}
