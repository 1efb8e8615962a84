package access

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulvtu/studycircle/internal/metrics"
	"github.com/rahulvtu/studycircle/internal/models"
	"github.com/rahulvtu/studycircle/internal/repository/memory"
	apperrors "github.com/rahulvtu/studycircle/pkg/errors"
	"github.com/rahulvtu/studycircle/pkg/logger"
)

func newEngine() (*Engine, *memory.Store) {
	store := memory.New()
	l := logger.New("error", "text")
	engine := NewEngine(l, metrics.New(), store.Groups(), store.Memberships(), store.Requests())
	return engine, store
}

func TestResolveUniversalJoin(t *testing.T) {
	ctx := context.Background()

	t.Run("first join creates the group and the membership", func(t *testing.T) {
		engine, _ := newEngine()

		group, err := engine.ResolveUniversalJoin(ctx, "22CS52", "Computer Networks", "user-1")
		require.NoError(t, err)
		require.NotNil(t, group)
		assert.Equal(t, models.GroupKindUniversal, group.Kind)
		assert.Equal(t, "22CS52", group.SubjectCode)

		isMember, err := engine.IsMember(ctx, group.ID, "user-1")
		require.NoError(t, err)
		assert.True(t, isMember)
	})

	t.Run("second join reuses the group", func(t *testing.T) {
		engine, _ := newEngine()

		first, err := engine.ResolveUniversalJoin(ctx, "22CS52", "Computer Networks", "user-1")
		require.NoError(t, err)
		second, err := engine.ResolveUniversalJoin(ctx, "22CS52", "Computer Networks", "user-2")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)

		members, err := engine.Members(ctx, first.ID)
		require.NoError(t, err)
		assert.Len(t, members, 2)
	})

	t.Run("repeat join by the same user is a no-op", func(t *testing.T) {
		engine, _ := newEngine()

		group, err := engine.ResolveUniversalJoin(ctx, "22CS52", "Computer Networks", "user-1")
		require.NoError(t, err)
		again, err := engine.ResolveUniversalJoin(ctx, "22CS52", "Computer Networks", "user-1")
		require.NoError(t, err)
		assert.Equal(t, group.ID, again.ID)

		members, err := engine.Members(ctx, group.ID)
		require.NoError(t, err)
		assert.Len(t, members, 1)
	})

	t.Run("concurrent joins converge on one group", func(t *testing.T) {
		engine, _ := newEngine()

		const n = 16
		groupIDs := make([]string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				group, err := engine.ResolveUniversalJoin(ctx, "22MATS11", "Mathematics for CSE Stream - I", string(rune('a'+i)))
				if err == nil {
					groupIDs[i] = group.ID
				}
			}(i)
		}
		wg.Wait()

		for i := 1; i < n; i++ {
			assert.Equal(t, groupIDs[0], groupIDs[i])
		}
	})

	t.Run("store failure surfaces as unavailable", func(t *testing.T) {
		engine, store := newEngine()
		store.FailOps = map[string]error{"group.getUniversal": errors.New("connection refused")}

		_, err := engine.ResolveUniversalJoin(ctx, "22CS52", "Computer Networks", "user-1")
		assert.Equal(t, apperrors.CodeStoreUnavailable, apperrors.CodeOf(err))
	})
}

func TestRequestPrivateJoin(t *testing.T) {
	ctx := context.Background()

	t.Run("files a pending request", func(t *testing.T) {
		engine, _ := newEngine()
		group, err := engine.CreatePrivateGroup(ctx, "DSA grind", "", "Kannada", "", "creator")
		require.NoError(t, err)

		request, err := engine.RequestPrivateJoin(ctx, group.ID, "user-1")
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusPending, request.Status)
		assert.Equal(t, group.ID, request.GroupID)
	})

	t.Run("unknown group", func(t *testing.T) {
		engine, _ := newEngine()

		_, err := engine.RequestPrivateJoin(ctx, "no-such-group", "user-1")
		assert.ErrorIs(t, err, apperrors.ErrGroupNotFound)
	})

	t.Run("universal groups cannot be requested", func(t *testing.T) {
		engine, _ := newEngine()
		group, err := engine.ResolveUniversalJoin(ctx, "22CS52", "Computer Networks", "someone")
		require.NoError(t, err)

		_, err = engine.RequestPrivateJoin(ctx, group.ID, "user-1")
		assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
	})

	t.Run("members cannot re-request", func(t *testing.T) {
		engine, _ := newEngine()
		group, err := engine.CreatePrivateGroup(ctx, "DSA grind", "", "", "", "creator")
		require.NoError(t, err)

		_, err = engine.RequestPrivateJoin(ctx, group.ID, "creator")
		assert.ErrorIs(t, err, apperrors.ErrAlreadyMember)
	})

	t.Run("one pending request per user per group", func(t *testing.T) {
		engine, _ := newEngine()
		group, err := engine.CreatePrivateGroup(ctx, "DSA grind", "", "", "", "creator")
		require.NoError(t, err)

		_, err = engine.RequestPrivateJoin(ctx, group.ID, "user-1")
		require.NoError(t, err)
		_, err = engine.RequestPrivateJoin(ctx, group.ID, "user-1")
		assert.ErrorIs(t, err, apperrors.ErrDuplicatePending)
	})

	t.Run("rejected user may request again", func(t *testing.T) {
		engine, _ := newEngine()
		group, err := engine.CreatePrivateGroup(ctx, "DSA grind", "", "", "", "creator")
		require.NoError(t, err)

		request, err := engine.RequestPrivateJoin(ctx, group.ID, "user-1")
		require.NoError(t, err)
		require.NoError(t, engine.ResolveRequest(ctx, request.ID, DecisionReject, "creator"))

		_, err = engine.RequestPrivateJoin(ctx, group.ID, "user-1")
		assert.NoError(t, err)
	})
}

func TestResolveRequest(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Engine, *memory.Store, *models.Group, *models.JoinRequest) {
		t.Helper()
		engine, store := newEngine()
		group, err := engine.CreatePrivateGroup(ctx, "DSA grind", "", "", "", "creator")
		require.NoError(t, err)
		request, err := engine.RequestPrivateJoin(ctx, group.ID, "user-1")
		require.NoError(t, err)
		return engine, store, group, request
	}

	t.Run("approve grants membership", func(t *testing.T) {
		engine, _, group, request := setup(t)

		require.NoError(t, engine.ResolveRequest(ctx, request.ID, DecisionApprove, "creator"))

		isMember, err := engine.IsMember(ctx, group.ID, "user-1")
		require.NoError(t, err)
		assert.True(t, isMember)

		pending, err := engine.PendingRequests(ctx, group.ID)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("reject leaves no membership", func(t *testing.T) {
		engine, _, group, request := setup(t)

		require.NoError(t, engine.ResolveRequest(ctx, request.ID, DecisionReject, "creator"))

		isMember, err := engine.IsMember(ctx, group.ID, "user-1")
		require.NoError(t, err)
		assert.False(t, isMember)
	})

	t.Run("only the creator may resolve", func(t *testing.T) {
		engine, _, _, request := setup(t)

		err := engine.ResolveRequest(ctx, request.ID, DecisionApprove, "user-2")
		assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)

		err = engine.ResolveRequest(ctx, request.ID, DecisionApprove, "user-1")
		assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)
	})

	t.Run("resolved requests are terminal", func(t *testing.T) {
		engine, _, group, request := setup(t)

		require.NoError(t, engine.ResolveRequest(ctx, request.ID, DecisionApprove, "creator"))

		err := engine.ResolveRequest(ctx, request.ID, DecisionReject, "creator")
		assert.ErrorIs(t, err, apperrors.ErrNotPending)

		// Membership granted by the approval stays.
		isMember, err := engine.IsMember(ctx, group.ID, "user-1")
		require.NoError(t, err)
		assert.True(t, isMember)
	})

	t.Run("unknown request", func(t *testing.T) {
		engine, _ := newEngine()

		err := engine.ResolveRequest(ctx, "no-such-request", DecisionApprove, "creator")
		assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)
	})

	t.Run("losing the state race is NotPending", func(t *testing.T) {
		engine, store, _, request := setup(t)

		// Simulate the other device winning between the pending read and the
		// compare-and-set.
		ok, err := store.Requests().Resolve(ctx, request.ID, models.RequestStatusApproved)
		require.NoError(t, err)
		require.True(t, ok)

		err = engine.ResolveRequest(ctx, request.ID, DecisionApprove, "creator")
		assert.ErrorIs(t, err, apperrors.ErrNotPending)
	})

	t.Run("approval lost to a reject leaves no membership", func(t *testing.T) {
		engine, store, group, request := setup(t)

		// The other device rejects between this device's pending read and
		// its approval commit.
		ok, err := store.Requests().Resolve(ctx, request.ID, models.RequestStatusRejected)
		require.NoError(t, err)
		require.True(t, ok)

		err = engine.ResolveRequest(ctx, request.ID, DecisionApprove, "creator")
		assert.ErrorIs(t, err, apperrors.ErrNotPending)

		isMember, err := engine.IsMember(ctx, group.ID, "user-1")
		require.NoError(t, err)
		assert.False(t, isMember)
	})
}

func TestCreatePrivateGroup(t *testing.T) {
	ctx := context.Background()
	engine, _ := newEngine()

	group, err := engine.CreatePrivateGroup(ctx, "Morning circle", "Daily revision", "Kannada", "22CS53", "creator")
	require.NoError(t, err)
	assert.Equal(t, models.GroupKindPrivate, group.Kind)
	assert.Equal(t, "creator", group.CreatorID)

	members, err := engine.Members(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, models.MemberRoleCreator, members[0].Role)
}
