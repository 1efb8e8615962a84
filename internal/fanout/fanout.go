// Package fanout delivers committed store events to live subscribers without
// polling. Production rides Postgres LISTEN/NOTIFY, whose notifications fire
// in commit order; the in-process Bus serves tests. Delivery is at-least-once
// in commit order per group, and a transport gap is always surfaced as an
// interruption so consumers can resynchronize from the stores — events are
// never silently skipped.
package fanout

import (
	"go.uber.org/atomic"

	"github.com/rahulvtu/studycircle/internal/models"
)

// EventKind discriminates fan-out event payloads.
type EventKind string

const (
	EventKindMessage EventKind = "message"
	EventKindRequest EventKind = "request"
)

// Event announces one committed row. Payloads carry ids only; consumers
// hydrate the row through the stores, which also makes redelivery harmless.
type Event struct {
	Kind    EventKind `json:"kind"`
	GroupID string    `json:"group_id"`
	ID      string    `json:"id"`
	// Seq is set for message events and preserves the log's total order.
	Seq int64 `json:"seq,omitempty"`
	// Status is set for request events.
	Status models.RequestStatus `json:"status,omitempty"`
}

// Handler receives events for one subscription. Callbacks for a single
// subscription are never invoked concurrently with each other. A nil
// callback skips that event class.
type Handler struct {
	OnMessage func(Event)
	OnRequest func(Event)
	// OnInterrupt reports a transport gap. The consumer must re-fetch
	// backlog and pending requests before trusting live delivery again.
	OnInterrupt func(error)
}

// Channel is the subscribe side of the fan-out transport.
type Channel interface {
	// Subscribe begins delivering events committed after this call for the
	// given group. Events committed earlier must be recovered via backlog.
	Subscribe(groupID string, handler Handler) *Subscription
}

// Subscription is a handle for one subscriber. Unsubscribe is idempotent;
// no callbacks run after it returns.
type Subscription struct {
	closed atomic.Bool
	cancel func()
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Unsubscribe releases the subscription. Safe to call multiple times.
func (s *Subscription) Unsubscribe() {
	if s == nil || !s.closed.CAS(false, true) {
		return
	}
	s.cancel()
}
