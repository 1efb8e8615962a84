package chatlog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulvtu/studycircle/internal/access"
	"github.com/rahulvtu/studycircle/internal/metrics"
	"github.com/rahulvtu/studycircle/internal/models"
	"github.com/rahulvtu/studycircle/internal/repository/memory"
	apperrors "github.com/rahulvtu/studycircle/pkg/errors"
	"github.com/rahulvtu/studycircle/pkg/logger"
)

func newLog(t *testing.T) (*Log, *memory.Store, *models.Group) {
	t.Helper()
	store := memory.New()
	l := logger.New("error", "text")
	m := metrics.New()
	engine := access.NewEngine(l, m, store.Groups(), store.Memberships(), store.Requests())
	log := NewLog(l, engine, m, store.Messages())

	group, err := engine.CreatePrivateGroup(context.Background(), "Night owls", "", "", "", "creator")
	require.NoError(t, err)
	return log, store, group
}

func TestAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("members can append", func(t *testing.T) {
		log, _, group := newLog(t)

		message, err := log.Append(ctx, group.ID, "creator", "anyone solved q3?")
		require.NoError(t, err)
		assert.Equal(t, int64(1), message.Seq)
		assert.Equal(t, models.MessageTypeText, message.Type)
		assert.False(t, message.CreatedAt.IsZero())
	})

	t.Run("non-members are rejected", func(t *testing.T) {
		log, _, group := newLog(t)

		_, err := log.Append(ctx, group.ID, "stranger", "hello")
		assert.ErrorIs(t, err, apperrors.ErrNotAMember)
	})

	t.Run("content is trimmed and must be non-empty", func(t *testing.T) {
		log, _, group := newLog(t)

		message, err := log.Append(ctx, group.ID, "creator", "  padded  ")
		require.NoError(t, err)
		assert.Equal(t, "padded", message.Content)

		_, err = log.Append(ctx, group.ID, "creator", "   ")
		assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
	})

	t.Run("seq grows strictly with append order", func(t *testing.T) {
		log, _, group := newLog(t)

		var last int64
		for _, text := range []string{"one", "two", "three"} {
			message, err := log.Append(ctx, group.ID, "creator", text)
			require.NoError(t, err)
			assert.Greater(t, message.Seq, last)
			last = message.Seq
		}
	})

	t.Run("store failure surfaces as unavailable", func(t *testing.T) {
		log, store, group := newLog(t)
		store.FailOps = map[string]error{"message.append": errors.New("connection reset")}

		_, err := log.Append(ctx, group.ID, "creator", "hello")
		assert.Equal(t, apperrors.CodeStoreUnavailable, apperrors.CodeOf(err))
	})
}

func TestBacklog(t *testing.T) {
	ctx := context.Background()
	log, _, group := newLog(t)

	for _, text := range []string{"one", "two", "three"} {
		_, err := log.Append(ctx, group.ID, "creator", text)
		require.NoError(t, err)
	}

	t.Run("full history in order", func(t *testing.T) {
		backlog, err := log.Backlog(ctx, group.ID, 0)
		require.NoError(t, err)
		require.Len(t, backlog, 3)
		assert.Equal(t, "one", backlog[0].Content)
		assert.Equal(t, "three", backlog[2].Content)
	})

	t.Run("sinceSeq cuts the prefix", func(t *testing.T) {
		backlog, err := log.Backlog(ctx, group.ID, 1)
		require.NoError(t, err)
		require.Len(t, backlog, 2)
		assert.Equal(t, "two", backlog[0].Content)
	})

	t.Run("empty group yields empty backlog", func(t *testing.T) {
		backlog, err := log.Backlog(ctx, "other-group", 0)
		require.NoError(t, err)
		assert.Empty(t, backlog)
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	log, _, group := newLog(t)

	message, err := log.Append(ctx, group.ID, "creator", "find me")
	require.NoError(t, err)

	found, err := log.Get(ctx, message.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, message.Content, found.Content)

	missing, err := log.Get(ctx, "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
