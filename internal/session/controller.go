// Package session coordinates one client's view of one group: initial state
// load, live fan-out subscription, membership/request decisions, and message
// send/receive. Each Controller owns its cached state exclusively; nothing
// here is process-wide, so several open sessions never interfere.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/rahulvtu/studycircle/internal/access"
	"github.com/rahulvtu/studycircle/internal/chatlog"
	"github.com/rahulvtu/studycircle/internal/fanout"
	"github.com/rahulvtu/studycircle/internal/metrics"
	"github.com/rahulvtu/studycircle/internal/models"
	apperrors "github.com/rahulvtu/studycircle/pkg/errors"
)

// Status is the lifecycle state of a session.
type Status int32

const (
	StatusLoading Status = iota
	StatusActive
	StatusFailed
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusActive:
		return "active"
	case StatusFailed:
		return "failed"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

// resyncTimeout bounds the store reads a live event or interruption triggers.
const resyncTimeout = 10 * time.Second

// Observer receives session state changes. Callbacks are serialized with
// each other and with inbound fan-out events; they must not call back into
// the controller.
type Observer struct {
	OnMessage  func(*models.Message)
	OnMembers  func([]*models.Membership)
	OnRequests func([]*models.JoinRequest)
	OnStatus   func(Status, error)
}

// Manager opens sessions over a shared engine, log and fan-out channel.
type Manager struct {
	logger  *logrus.Logger
	engine  *access.Engine
	log     *chatlog.Log
	channel fanout.Channel
	metrics *metrics.Metrics
}

// NewManager creates a session manager.
func NewManager(logger *logrus.Logger, engine *access.Engine, log *chatlog.Log, channel fanout.Channel, m *metrics.Metrics) *Manager {
	return &Manager{
		logger:  logger,
		engine:  engine,
		log:     log,
		channel: channel,
		metrics: m,
	}
}

// Controller is one open session. A mutex serializes inbound fan-out
// callbacks with outbound user actions, so cached state never sees two
// mutations at once.
type Controller struct {
	logger  *logrus.Logger
	engine  *access.Engine
	log     *chatlog.Log
	metrics *metrics.Metrics

	groupID string
	userID  string

	status atomic.Int32

	mu        sync.Mutex
	group     *models.Group
	isCreator bool
	messages  []*models.Message
	seen      map[string]bool
	lastSeq   int64
	members   []*models.Membership
	pending   []*models.JoinRequest
	sub       *fanout.Subscription
	observer  Observer
}

// Open runs the loading pass for one (group, user) pair: group metadata,
// member list, message backlog and, when the user is the group's creator,
// the pending request list, then the live subscription. It returns an
// Active controller, or an error when any part of the load fails — a failed
// load degrades this session only.
func (m *Manager) Open(ctx context.Context, groupID, userID string, observer Observer) (*Controller, error) {
	c := &Controller{
		logger:   m.logger,
		engine:   m.engine,
		log:      m.log,
		metrics:  m.metrics,
		groupID:  groupID,
		userID:   userID,
		seen:     make(map[string]bool),
		observer: observer,
	}
	c.status.Store(int32(StatusLoading))

	group, err := m.engine.Group(ctx, groupID)
	if err != nil {
		c.status.Store(int32(StatusFailed))
		return nil, err
	}
	c.group = group
	c.isCreator = group.IsCreator(userID)

	// The remaining fetches are independent; run them together and keep
	// every failure rather than just the first.
	var (
		loadMu   sync.Mutex
		loadErrs *multierror.Error
		wg       sync.WaitGroup
	)
	fetch := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				loadMu.Lock()
				loadErrs = multierror.Append(loadErrs, err)
				loadMu.Unlock()
			}
		}()
	}

	fetch(func() error {
		members, err := m.engine.Members(ctx, groupID)
		if err != nil {
			return err
		}
		c.members = members
		return nil
	})
	fetch(func() error {
		backlog, err := m.log.Backlog(ctx, groupID, 0)
		if err != nil {
			return err
		}
		c.messages = backlog
		for _, msg := range backlog {
			c.seen[msg.ID] = true
			if msg.Seq > c.lastSeq {
				c.lastSeq = msg.Seq
			}
		}
		return nil
	})
	if c.isCreator {
		fetch(func() error {
			pending, err := m.engine.PendingRequests(ctx, groupID)
			if err != nil {
				return err
			}
			c.pending = pending
			return nil
		})
	}
	wg.Wait()

	if err := loadErrs.ErrorOrNil(); err != nil {
		c.status.Store(int32(StatusFailed))
		m.logger.WithError(err).WithField("group_id", groupID).Error("Session load failed")
		return nil, err
	}

	// Active before the subscription exists, or the handlers would discard
	// events delivered during the handover. Nothing outside this method can
	// see the controller yet, so the early flip is unobservable.
	c.status.Store(int32(StatusActive))

	// Backlog first, subscription second: an event straddling the boundary
	// may arrive twice and is absorbed by the id dedup in handleMessage.
	c.sub = m.channel.Subscribe(groupID, fanout.Handler{
		OnMessage:   c.handleMessage,
		OnRequest:   c.handleRequest,
		OnInterrupt: c.handleInterrupt,
	})

	m.metrics.ActiveSessions.Inc()
	if c.observer.OnStatus != nil {
		c.observer.OnStatus(StatusActive, nil)
	}

	m.logger.WithFields(logrus.Fields{
		"group_id": groupID,
		"user_id":  userID,
		"backlog":  len(c.messages),
	}).Info("Session opened")

	return c, nil
}

// Status returns the session's lifecycle state.
func (c *Controller) Status() Status {
	return Status(c.status.Load())
}

// Group returns the session's group metadata.
func (c *Controller) Group() *models.Group { return c.group }

// Send appends a message to the group through the log. NotAMember is
// surfaced verbatim so the caller can show an access-denied signal; it is
// never retried here. A send completing against an already-closed session
// is discarded from local state, not an error.
func (c *Controller) Send(ctx context.Context, content string) (*models.Message, error) {
	if c.Status() != StatusActive {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "session is not active")
	}

	message, err := c.log.Append(ctx, c.groupID, c.userID, content)
	if err != nil {
		return nil, err
	}

	// Apply the echo immediately; the fan-out copy dedups on id.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Status() == StatusActive {
		c.applyMessageLocked(message)
	}

	return message, nil
}

// RequestJoin files a join request for this session's group on behalf of the
// session user.
func (c *Controller) RequestJoin(ctx context.Context) (*models.JoinRequest, error) {
	if c.Status() != StatusActive {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "session is not active")
	}
	return c.engine.RequestPrivateJoin(ctx, c.groupID, c.userID)
}

// ResolveRequest applies the session user's decision to a pending request
// and, on success, drops it from the local pending view and refreshes the
// member list.
func (c *Controller) ResolveRequest(ctx context.Context, requestID string, decision access.Decision) error {
	if c.Status() != StatusActive {
		return apperrors.New(apperrors.CodeInvalidArgument, "session is not active")
	}

	if err := c.engine.ResolveRequest(ctx, requestID, decision, c.userID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Status() != StatusActive {
		return nil
	}

	kept := c.pending[:0]
	for _, req := range c.pending {
		if req.ID != requestID {
			kept = append(kept, req)
		}
	}
	c.pending = kept
	if c.observer.OnRequests != nil {
		c.observer.OnRequests(c.snapshotPendingLocked())
	}

	if decision == access.DecisionApprove {
		c.refreshMembersLocked()
	}

	return nil
}

// Close unsubscribes and discards cached state. Safe to call more than
// once, and safe while a load or send is in flight: their results are
// discarded rather than applied.
func (c *Controller) Close() {
	if !c.status.CAS(int32(StatusActive), int32(StatusClosed)) {
		return
	}
	c.sub.Unsubscribe()
	c.metrics.ActiveSessions.Dec()

	c.mu.Lock()
	c.messages = nil
	c.members = nil
	c.pending = nil
	c.seen = make(map[string]bool)
	c.mu.Unlock()

	if c.observer.OnStatus != nil {
		c.observer.OnStatus(StatusClosed, nil)
	}

	c.logger.WithFields(logrus.Fields{
		"group_id": c.groupID,
		"user_id":  c.userID,
	}).Info("Session closed")
}

// Messages returns the ordered message view.
func (c *Controller) Messages() []*models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Members returns the membership view.
func (c *Controller) Members() []*models.Membership {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.Membership, len(c.members))
	copy(out, c.members)
	return out
}

// PendingRequests returns the creator-only pending request view.
func (c *Controller) PendingRequests() []*models.JoinRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotPendingLocked()
}

func (c *Controller) snapshotPendingLocked() []*models.JoinRequest {
	out := make([]*models.JoinRequest, len(c.pending))
	copy(out, c.pending)
	return out
}

// ---------------------------------------------------------------------------
// Fan-out handlers
// ---------------------------------------------------------------------------

func (c *Controller) handleMessage(event fanout.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Status() != StatusActive {
		return
	}
	c.metrics.FanoutEvents.WithLabelValues(string(fanout.EventKindMessage)).Inc()

	if c.seen[event.ID] {
		return // own echo or redelivery after a resync boundary
	}

	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	message, err := c.log.Get(ctx, event.ID)
	if err != nil {
		c.logger.WithError(err).WithField("message_id", event.ID).Warn("Failed to hydrate fan-out message; resyncing")
		c.resyncLocked(ctx)
		return
	}
	if message == nil {
		return
	}
	c.applyMessageLocked(message)
}

// handleRequest reacts to a created or resolved join request. The pending
// list is re-fetched wholesale rather than merged incrementally; partial
// merges are where the bugs live, and the list is small.
func (c *Controller) handleRequest(event fanout.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Status() != StatusActive {
		return
	}
	c.metrics.FanoutEvents.WithLabelValues(string(fanout.EventKindRequest)).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	if c.isCreator {
		c.refreshPendingLocked(ctx)
	}
	if event.Status == models.RequestStatusApproved {
		c.refreshMembersLocked()
	}
}

func (c *Controller) handleInterrupt(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Status() != StatusActive {
		return
	}
	c.metrics.Interruptions.Inc()
	c.logger.WithError(cause).WithField("group_id", c.groupID).Warn("Realtime channel interrupted; resyncing")

	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()
	c.resyncLocked(ctx)
}

// resyncLocked bridges a delivery gap from the stores: backlog since the
// last applied seq, plus the pending list for creators. Only when the
// catch-up read itself fails is the interruption surfaced to the observer.
func (c *Controller) resyncLocked(ctx context.Context) {
	backlog, err := c.log.Backlog(ctx, c.groupID, c.lastSeq)
	if err != nil {
		if c.observer.OnStatus != nil {
			c.observer.OnStatus(StatusActive, apperrors.ChannelInterrupted(err))
		}
		return
	}
	for _, message := range backlog {
		if !c.seen[message.ID] {
			c.applyMessageLocked(message)
		}
	}

	if c.isCreator {
		c.refreshPendingLocked(ctx)
	}
	c.refreshMembersLocked()
}

func (c *Controller) applyMessageLocked(message *models.Message) {
	if c.seen[message.ID] {
		return
	}
	c.seen[message.ID] = true
	c.messages = append(c.messages, message)
	if message.Seq > c.lastSeq {
		c.lastSeq = message.Seq
	}
	if c.observer.OnMessage != nil {
		c.observer.OnMessage(message)
	}
}

func (c *Controller) refreshPendingLocked(ctx context.Context) {
	pending, err := c.engine.PendingRequests(ctx, c.groupID)
	if err != nil {
		c.logger.WithError(err).WithField("group_id", c.groupID).Warn("Failed to refresh pending requests")
		return
	}
	c.pending = pending
	if c.observer.OnRequests != nil {
		c.observer.OnRequests(c.snapshotPendingLocked())
	}
}

func (c *Controller) refreshMembersLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	members, err := c.engine.Members(ctx, c.groupID)
	if err != nil {
		c.logger.WithError(err).WithField("group_id", c.groupID).Warn("Failed to refresh member list")
		return
	}
	c.members = members
	if c.observer.OnMembers != nil {
		out := make([]*models.Membership, len(members))
		copy(out, members)
		c.observer.OnMembers(out)
	}
}
