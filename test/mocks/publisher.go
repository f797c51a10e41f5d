package mocks

import "sync"

// PublishedEvent is one recorded Publish call.
type PublishedEvent struct {
	UserID  string
	Event   string
	Payload interface{}
}

// RecordingPublisher records every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

// NewRecordingPublisher creates an empty recorder.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

// Publish records the event.
func (p *RecordingPublisher) Publish(userID, event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{UserID: userID, Event: event, Payload: payload})
}

// Events returns the recorded events of the given name, in order.
func (p *RecordingPublisher) Events(event string) []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []PublishedEvent
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
