// Package events provides event types and publishing infrastructure for aura.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Type defines the type of event.
type Type string

const (
	// TypeStoryStatus indicates a story status change.
	TypeStoryStatus Type = "story_status"
	// TypeStepStarted indicates a step began running.
	TypeStepStarted Type = "step_started"
	// TypeStepFinished indicates a step reached a terminal status.
	TypeStepFinished Type = "step_finished"
	// TypeWaveStarted indicates a wave dispatch began.
	TypeWaveStarted Type = "wave_started"
	// TypeWaveFinished indicates every started step of a wave terminated.
	TypeWaveFinished Type = "wave_finished"
	// TypeGateEvaluated indicates a gate outcome was recorded.
	TypeGateEvaluated Type = "gate_evaluated"
	// TypeApprovalRequired indicates a step is waiting for human approval.
	TypeApprovalRequired Type = "approval_required"
	// TypeWarning indicates a non-fatal warning.
	TypeWarning Type = "warning"
)

// Event represents a published event.
type Event struct {
	Type    Type      `json:"type"`
	StoryID string    `json:"story_id"`
	StepID  string    `json:"step_id,omitempty"`
	Data    any       `json:"data,omitempty"`
	Time    time.Time `json:"time"`
}

// GlobalStoryID is the special story ID for subscribing to all events.
const GlobalStoryID = "*"

// Publisher defines the interface for event publishing.
type Publisher interface {
	Publish(event Event)
	Subscribe(storyID string) <-chan Event
	Unsubscribe(storyID string, ch <-chan Event)
	Close()
}

// MemoryPublisher is an in-memory implementation of Publisher.
// Publishing never blocks; subscribers with full buffers miss events.
type MemoryPublisher struct {
	subscribers map[string][]chan Event
	bufferSize  int
	closed      bool
	mu          sync.RWMutex
}

// NewMemoryPublisher creates a new in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{
		subscribers: make(map[string][]chan Event),
		bufferSize:  100,
	}
}

// Publish sends an event to subscribers of the story and to global
// subscribers.
func (p *MemoryPublisher) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	for _, ch := range p.subscribers[event.StoryID] {
		select {
		case ch <- event:
		default:
		}
	}
	if event.StoryID != GlobalStoryID {
		for _, ch := range p.subscribers[GlobalStoryID] {
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// Subscribe returns a channel receiving events for the given story.
// Use GlobalStoryID to receive all events.
func (p *MemoryPublisher) Subscribe(storyID string) <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Event, p.bufferSize)
	p.subscribers[storyID] = append(p.subscribers[storyID], ch)
	return ch
}

// Unsubscribe removes a subscription channel and closes it.
func (p *MemoryPublisher) Unsubscribe(storyID string, ch <-chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.subscribers[storyID]
	for i, sub := range subs {
		if sub == ch {
			p.subscribers[storyID] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close shuts down the publisher and all subscriptions.
func (p *MemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, subs := range p.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	p.subscribers = make(map[string][]chan Event)
}

// LogPublisher writes events to a slog logger. Useful as a default when no
// subscriber cares about delivery.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs every event.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(event Event) {
	p.logger.Info("event",
		"type", event.Type,
		"story_id", event.StoryID,
		"step_id", event.StepID)
}

// Subscribe returns a closed channel; LogPublisher has no subscriptions.
func (p *LogPublisher) Subscribe(string) <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}

// Unsubscribe is a no-op.
func (p *LogPublisher) Unsubscribe(string, <-chan Event) {}

// Close is a no-op.
func (p *LogPublisher) Close() {}
