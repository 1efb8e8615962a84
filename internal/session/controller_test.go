package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulvtu/studycircle/internal/access"
	"github.com/rahulvtu/studycircle/internal/chatlog"
	"github.com/rahulvtu/studycircle/internal/fanout"
	"github.com/rahulvtu/studycircle/internal/metrics"
	"github.com/rahulvtu/studycircle/internal/models"
	"github.com/rahulvtu/studycircle/internal/repository/memory"
	apperrors "github.com/rahulvtu/studycircle/pkg/errors"
	"github.com/rahulvtu/studycircle/pkg/logger"
)

type fixture struct {
	store   *memory.Store
	engine  *access.Engine
	log     *chatlog.Log
	bus     *fanout.Bus
	manager *Manager
}

func newFixture() *fixture {
	store := memory.New()
	l := logger.New("error", "text")
	m := metrics.New()
	engine := access.NewEngine(l, m, store.Groups(), store.Memberships(), store.Requests())
	log := chatlog.NewLog(l, engine, m, store.Messages())
	bus := fanout.NewBus()
	return &fixture{
		store:   store,
		engine:  engine,
		log:     log,
		bus:     bus,
		manager: NewManager(l, engine, log, bus, m),
	}
}

// privateGroup creates a group owned by "creator" with "member" approved in.
func (f *fixture) privateGroup(t *testing.T) *models.Group {
	t.Helper()
	ctx := context.Background()
	group, err := f.engine.CreatePrivateGroup(ctx, "Exam prep", "", "", "", "creator")
	require.NoError(t, err)
	request, err := f.engine.RequestPrivateJoin(ctx, group.ID, "member")
	require.NoError(t, err)
	require.NoError(t, f.engine.ResolveRequest(ctx, request.ID, access.DecisionApprove, "creator"))
	return group
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("loads backlog and members before going active", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)
		for _, text := range []string{"one", "two"} {
			_, err := f.log.Append(ctx, group.ID, "creator", text)
			require.NoError(t, err)
		}

		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		defer ctrl.Close()

		assert.Equal(t, StatusActive, ctrl.Status())
		messages := ctrl.Messages()
		require.Len(t, messages, 2)
		assert.Equal(t, "one", messages[0].Content)
		assert.Len(t, ctrl.Members(), 2)
		assert.Empty(t, ctrl.PendingRequests())
	})

	t.Run("creator sessions load the pending queue", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)
		_, err := f.engine.RequestPrivateJoin(ctx, group.ID, "hopeful")
		require.NoError(t, err)

		ctrl, err := f.manager.Open(ctx, group.ID, "creator", Observer{})
		require.NoError(t, err)
		defer ctrl.Close()

		pending := ctrl.PendingRequests()
		require.Len(t, pending, 1)
		assert.Equal(t, "hopeful", pending[0].UserID)
	})

	t.Run("unknown group fails the load", func(t *testing.T) {
		f := newFixture()

		_, err := f.manager.Open(ctx, "no-such-group", "member", Observer{})
		assert.ErrorIs(t, err, apperrors.ErrGroupNotFound)
	})

	t.Run("a failing fetch degrades only this session", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)
		f.store.FailOps = map[string]error{"message.list": errors.New("connection refused")}

		_, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.Error(t, err)

		f.store.FailOps = nil
		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		ctrl.Close()
	})
}

func TestLiveMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("fan-out events append in arrival order", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		var observed []string
		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{
			OnMessage: func(m *models.Message) { observed = append(observed, m.Content) },
		})
		require.NoError(t, err)
		defer ctrl.Close()

		for _, text := range []string{"hello", "world"} {
			message, err := f.log.Append(ctx, group.ID, "creator", text)
			require.NoError(t, err)
			f.bus.PublishMessage(message)
		}

		messages := ctrl.Messages()
		require.Len(t, messages, 2)
		assert.Equal(t, "hello", messages[0].Content)
		assert.Equal(t, []string{"hello", "world"}, observed)
	})

	t.Run("redelivered events are applied once", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		defer ctrl.Close()

		message, err := f.log.Append(ctx, group.ID, "creator", "once only")
		require.NoError(t, err)
		f.bus.PublishMessage(message)
		f.bus.PublishMessage(message)

		assert.Len(t, ctrl.Messages(), 1)
	})

	t.Run("own send is not duplicated by its fan-out echo", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		defer ctrl.Close()

		message, err := ctrl.Send(ctx, "mine")
		require.NoError(t, err)
		f.bus.PublishMessage(message)

		assert.Len(t, ctrl.Messages(), 1)
	})

	t.Run("events landed before subscribe are recovered from backlog", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		early, err := f.log.Append(ctx, group.ID, "creator", "early")
		require.NoError(t, err)

		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		defer ctrl.Close()

		// The straddling event arrives after the backlog already held it.
		f.bus.PublishMessage(early)

		assert.Len(t, ctrl.Messages(), 1)
	})
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("appends through the log", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		defer ctrl.Close()

		message, err := ctrl.Send(ctx, "first")
		require.NoError(t, err)
		assert.Equal(t, int64(1), message.Seq)
		assert.Len(t, ctrl.Messages(), 1)
	})

	t.Run("non-member send surfaces the access error", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		defer ctrl.Close()

		// Membership checks happen at append time, not session-open time.
		outsider := f.log
		_, err = outsider.Append(ctx, group.ID, "stranger", "let me in")
		assert.ErrorIs(t, err, apperrors.ErrNotAMember)
	})

	t.Run("send on a closed session errors", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		ctrl.Close()

		_, err = ctrl.Send(ctx, "too late")
		assert.Error(t, err)
	})
}

func TestRequestEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("creator session refreshes the pending queue", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		var observed [][]*models.JoinRequest
		ctrl, err := f.manager.Open(ctx, group.ID, "creator", Observer{
			OnRequests: func(pending []*models.JoinRequest) { observed = append(observed, pending) },
		})
		require.NoError(t, err)
		defer ctrl.Close()

		request, err := f.engine.RequestPrivateJoin(ctx, group.ID, "hopeful")
		require.NoError(t, err)
		f.bus.PublishRequest(request)

		pending := ctrl.PendingRequests()
		require.Len(t, pending, 1)
		assert.Equal(t, "hopeful", pending[0].UserID)
		require.NotEmpty(t, observed)
	})

	t.Run("approval events refresh the member list", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		defer ctrl.Close()
		require.Len(t, ctrl.Members(), 2)

		request, err := f.engine.RequestPrivateJoin(ctx, group.ID, "hopeful")
		require.NoError(t, err)
		require.NoError(t, f.engine.ResolveRequest(ctx, request.ID, access.DecisionApprove, "creator"))
		request.Status = models.RequestStatusApproved
		f.bus.PublishRequest(request)

		assert.Len(t, ctrl.Members(), 3)
	})

	t.Run("resolving from the session prunes the pending queue", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)
		request, err := f.engine.RequestPrivateJoin(ctx, group.ID, "hopeful")
		require.NoError(t, err)

		ctrl, err := f.manager.Open(ctx, group.ID, "creator", Observer{})
		require.NoError(t, err)
		defer ctrl.Close()
		require.Len(t, ctrl.PendingRequests(), 1)

		require.NoError(t, ctrl.ResolveRequest(ctx, request.ID, access.DecisionApprove))

		assert.Empty(t, ctrl.PendingRequests())
		assert.Len(t, ctrl.Members(), 3)
	})

	t.Run("second device resolving first yields NotPending", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)
		request, err := f.engine.RequestPrivateJoin(ctx, group.ID, "hopeful")
		require.NoError(t, err)

		ctrl, err := f.manager.Open(ctx, group.ID, "creator", Observer{})
		require.NoError(t, err)
		defer ctrl.Close()

		// The other device wins the race.
		require.NoError(t, f.engine.ResolveRequest(ctx, request.ID, access.DecisionApprove, "creator"))

		err = ctrl.ResolveRequest(ctx, request.ID, access.DecisionReject)
		assert.ErrorIs(t, err, apperrors.ErrNotPending)
	})
}

func TestInterruption(t *testing.T) {
	ctx := context.Background()

	t.Run("resyncs messages missed during the gap", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		defer ctrl.Close()

		// Appended while the channel was down: no publish happens.
		_, err = f.log.Append(ctx, group.ID, "creator", "missed one")
		require.NoError(t, err)
		_, err = f.log.Append(ctx, group.ID, "creator", "missed two")
		require.NoError(t, err)

		f.bus.Interrupt(apperrors.ChannelInterrupted(nil))

		messages := ctrl.Messages()
		require.Len(t, messages, 2)
		assert.Equal(t, "missed one", messages[0].Content)
	})

	t.Run("resync does not duplicate already-applied messages", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		defer ctrl.Close()

		delivered, err := f.log.Append(ctx, group.ID, "creator", "delivered")
		require.NoError(t, err)
		f.bus.PublishMessage(delivered)

		_, err = f.log.Append(ctx, group.ID, "creator", "missed")
		require.NoError(t, err)

		f.bus.Interrupt(apperrors.ChannelInterrupted(nil))

		assert.Len(t, ctrl.Messages(), 2)
	})

	t.Run("creator resync re-fetches pending requests", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		ctrl, err := f.manager.Open(ctx, group.ID, "creator", Observer{})
		require.NoError(t, err)
		defer ctrl.Close()
		require.Empty(t, ctrl.PendingRequests())

		_, err = f.engine.RequestPrivateJoin(ctx, group.ID, "hopeful")
		require.NoError(t, err)

		f.bus.Interrupt(apperrors.ChannelInterrupted(nil))

		assert.Len(t, ctrl.PendingRequests(), 1)
	})

	t.Run("failed resync surfaces the interruption", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		var surfaced []error
		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{
			OnStatus: func(_ Status, cause error) {
				if cause != nil {
					surfaced = append(surfaced, cause)
				}
			},
		})
		require.NoError(t, err)
		defer ctrl.Close()

		f.store.FailOps = map[string]error{"message.list": errors.New("still down")}
		f.bus.Interrupt(apperrors.ChannelInterrupted(nil))
		f.store.FailOps = nil

		require.Len(t, surfaced, 1)
		assert.Equal(t, apperrors.CodeChannelInterrupted, apperrors.CodeOf(surfaced[0]))
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	t.Run("discards state and stops delivery", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)

		message, err := f.log.Append(ctx, group.ID, "creator", "before close")
		require.NoError(t, err)
		f.bus.PublishMessage(message)
		require.Len(t, ctrl.Messages(), 1)

		ctrl.Close()
		assert.Equal(t, StatusClosed, ctrl.Status())
		assert.Empty(t, ctrl.Messages())

		late, err := f.log.Append(ctx, group.ID, "creator", "after close")
		require.NoError(t, err)
		f.bus.PublishMessage(late)
		assert.Empty(t, ctrl.Messages())
	})

	t.Run("is idempotent", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		ctrl, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		ctrl.Close()
		ctrl.Close()
	})

	t.Run("reopening after close starts a fresh session", func(t *testing.T) {
		f := newFixture()
		group := f.privateGroup(t)

		first, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		_, err = first.Send(ctx, "kept in the log")
		require.NoError(t, err)
		first.Close()

		second, err := f.manager.Open(ctx, group.ID, "member", Observer{})
		require.NoError(t, err)
		defer second.Close()

		assert.Len(t, second.Messages(), 1)
	})
}
