// Package bus provides a typed in-process publish/subscribe dispatcher for
// cross-component notifications (auth changes, workflow lifecycle). A single
// dispatcher instance is passed via dependency injection; there is no
// ambient global state.
package bus

import (
	"sync"

	"github.com/dennisjooo/moodlist/internal/api"
)

// Topic identifies a message type on the dispatcher.
type Topic string

const (
	TopicAuthUpdated      Topic = "auth.updated"
	TopicWorkflowStarted  Topic = "workflow.started"
	TopicWorkflowFinished Topic = "workflow.finished"
)

// AuthUpdated is published whenever the authenticated identity changes.
type AuthUpdated struct {
	User      *api.User
	Validated bool
}

// WorkflowStarted is published when a new workflow session begins.
type WorkflowStarted struct {
	SessionID  string
	MoodPrompt string
}

// WorkflowFinished is published when a session reaches a terminal stage.
type WorkflowFinished struct {
	SessionID string
	Stage     api.Stage
}

// Event pairs a topic with its payload. Payload is one of the structs above,
// matched to the topic.
type Event struct {
	Topic   Topic
	Payload any
}

// Dispatcher fans events out to topic subscribers. Subscribers are invoked
// synchronously in Publish's goroutine.
type Dispatcher struct {
	mu   sync.RWMutex
	subs map[Topic]map[int]func(Event)
	next int
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[Topic]map[int]func(Event))}
}

// Subscribe registers a handler for a topic and returns an unsubscribe
// function.
func (d *Dispatcher) Subscribe(topic Topic, fn func(Event)) func() {
	d.mu.Lock()
	id := d.next
	d.next++
	if d.subs[topic] == nil {
		d.subs[topic] = make(map[int]func(Event))
	}
	d.subs[topic][id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.subs[topic], id)
		d.mu.Unlock()
	}
}

// Publish delivers an event to all subscribers of its topic.
func (d *Dispatcher) Publish(topic Topic, payload any) {
	d.mu.RLock()
	handlers := make([]func(Event), 0, len(d.subs[topic]))
	for _, fn := range d.subs[topic] {
		handlers = append(handlers, fn)
	}
	d.mu.RUnlock()

	event := Event{Topic: topic, Payload: payload}
	for _, fn := range handlers {
		fn(event)
	}
}
