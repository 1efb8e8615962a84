package fanout

import (
	"sync"

	"github.com/rahulvtu/studycircle/internal/models"
)

// Bus is an in-process Channel. Publishing blocks until every subscriber's
// callback returns, so delivery order equals publish order.
type Bus struct {
	mu     sync.Mutex
	nextID int64
	subs   map[string]map[int64]Handler // group id -> subscriber id -> handler
}

// NewBus creates an empty in-process fan-out bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int64]Handler)}
}

// Subscribe registers a handler for one group's events.
func (b *Bus) Subscribe(groupID string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[groupID] == nil {
		b.subs[groupID] = make(map[int64]Handler)
	}
	b.subs[groupID][id] = handler

	return newSubscription(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[groupID], id)
	})
}

// PublishMessage announces an appended message to the group's subscribers.
func (b *Bus) PublishMessage(message *models.Message) {
	b.publish(message.GroupID, Event{
		Kind:    EventKindMessage,
		GroupID: message.GroupID,
		ID:      message.ID,
		Seq:     message.Seq,
	})
}

// PublishRequest announces a created or resolved join request.
func (b *Bus) PublishRequest(request *models.JoinRequest) {
	b.publish(request.GroupID, Event{
		Kind:    EventKindRequest,
		GroupID: request.GroupID,
		ID:      request.ID,
		Status:  request.Status,
	})
}

// Interrupt delivers a transport-gap signal to every subscriber of every
// group, mimicking a dropped connection.
func (b *Bus) Interrupt(err error) {
	b.mu.Lock()
	var handlers []Handler
	for _, group := range b.subs {
		for _, h := range group {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		if h.OnInterrupt != nil {
			h.OnInterrupt(err)
		}
	}
}

func (b *Bus) publish(groupID string, event Event) {
	b.mu.Lock()
	var handlers []Handler
	for _, h := range b.subs[groupID] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		switch event.Kind {
		case EventKindMessage:
			if h.OnMessage != nil {
				h.OnMessage(event)
			}
		case EventKindRequest:
			if h.OnRequest != nil {
				h.OnRequest(event)
			}
		}
	}
}
