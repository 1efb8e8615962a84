package fanout

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	apperrors "github.com/rahulvtu/studycircle/pkg/errors"
)

// notifyChannel must match the channel name the migration triggers notify.
const notifyChannel = "studycircle_events"

const (
	minReconnectInterval = 2 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// Listener is the production Channel: a single LISTEN connection shared by
// every subscriber, fed by the pg_notify triggers on chat_messages and
// group_requests. Postgres fires notifications in commit order, which is the
// ordering guarantee sessions rely on.
type Listener struct {
	logger   *logrus.Logger
	listener *pq.Listener

	mu     sync.Mutex
	nextID int64
	subs   map[string]map[int64]Handler

	done chan struct{}
}

// NewListener connects to the database and starts dispatching notifications.
// It returns an error when the initial LISTEN fails; later connection drops
// are handled by reconnecting and signalling an interruption to subscribers.
func NewListener(logger *logrus.Logger, conninfo string) (*Listener, error) {
	l := &Listener{
		logger: logger,
		subs:   make(map[string]map[int64]Handler),
		done:   make(chan struct{}),
	}

	l.listener = pq.NewListener(conninfo, minReconnectInterval, maxReconnectInterval, func(event pq.ListenerEventType, err error) {
		if event == pq.ListenerEventConnectionAttemptFailed {
			logger.WithError(err).Warn("Fan-out listener reconnect attempt failed")
		}
	})

	if err := l.listener.Listen(notifyChannel); err != nil {
		l.listener.Close()
		return nil, err
	}

	go l.run()

	return l, nil
}

// Subscribe registers a handler for one group's events.
func (l *Listener) Subscribe(groupID string, handler Handler) *Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	if l.subs[groupID] == nil {
		l.subs[groupID] = make(map[int64]Handler)
	}
	l.subs[groupID][id] = handler

	return newSubscription(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs[groupID], id)
	})
}

// Close stops the dispatch loop and tears down the LISTEN connection.
func (l *Listener) Close() error {
	close(l.done)
	return l.listener.Close()
}

func (l *Listener) run() {
	for {
		select {
		case <-l.done:
			return
		case notification := <-l.listener.Notify:
			if notification == nil {
				// pq delivers nil after an automatic reconnect: anything
				// committed while disconnected was missed, so every
				// subscriber must resync from the stores.
				l.logger.Warn("Fan-out listener reconnected; signalling interruption")
				l.interruptAll()
				continue
			}
			l.dispatch(notification.Extra)
		case <-time.After(pingInterval):
			go func() {
				if err := l.listener.Ping(); err != nil {
					l.logger.WithError(err).Warn("Fan-out listener ping failed")
				}
			}()
		}
	}
}

func (l *Listener) dispatch(payload string) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		l.logger.WithError(err).WithField("payload", payload).Error("Failed to decode fan-out notification")
		return
	}

	l.mu.Lock()
	var handlers []Handler
	for _, h := range l.subs[event.GroupID] {
		handlers = append(handlers, h)
	}
	l.mu.Unlock()

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
		default:
			l.logger.WithField("kind", event.Kind).Warn("Unknown fan-out event kind")
		}
	}
}

func (l *Listener) interruptAll() {
	l.mu.Lock()
	var handlers []Handler
	for _, group := range l.subs {
		for _, h := range group {
			handlers = append(handlers, h)
		}
	}
	l.mu.Unlock()

	err := apperrors.ChannelInterrupted(nil)
	for _, h := range handlers {
		if h.OnInterrupt != nil {
			h.OnInterrupt(err)
		}
	}
}
