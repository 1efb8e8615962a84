// Package chatlog is the durable, strictly ordered message log. Every append
// is gated on the sender's current membership, and ordering comes from the
// store-assigned sequence number, so all subscribers observe one total order
// per group.
package chatlog

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rahulvtu/studycircle/internal/access"
	"github.com/rahulvtu/studycircle/internal/metrics"
	"github.com/rahulvtu/studycircle/internal/models"
	"github.com/rahulvtu/studycircle/internal/repository"
	apperrors "github.com/rahulvtu/studycircle/pkg/errors"
)

// Log appends to and reads from a group's message history.
type Log struct {
	logger   *logrus.Logger
	engine   *access.Engine
	metrics  *metrics.Metrics
	messages repository.MessageRepository
}

// NewLog creates a message log that checks membership through the engine.
func NewLog(logger *logrus.Logger, engine *access.Engine, m *metrics.Metrics, messages repository.MessageRepository) *Log {
	return &Log{
		logger:   logger,
		engine:   engine,
		metrics:  m,
		messages: messages,
	}
}

// Append persists a message. The sender must hold a membership at call time;
// a membership revoked mid-session blocks the next send, though a send
// already in flight is not retroactively invalidated. The returned message
// carries the server-assigned seq and timestamp.
func (l *Log) Append(ctx context.Context, groupID, senderID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "message content is empty")
	}

	isMember, err := l.engine.IsMember(ctx, groupID, senderID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperrors.ErrNotAMember
	}

	message, err := l.messages.Append(ctx, &models.Message{
		GroupID:  groupID,
		SenderID: senderID,
		Content:  content,
		Type:     models.MessageTypeText,
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	l.metrics.MessagesAppended.Inc()

	l.logger.WithFields(logrus.Fields{
		"group_id":   groupID,
		"sender_id":  senderID,
		"message_id": message.ID,
		"seq":        message.Seq,
	}).Debug("Message appended")

	return message, nil
}

// Backlog returns the group's history in append order, oldest first. A new
// subscriber replays this before switching to live delivery. sinceSeq 0
// means the full history.
func (l *Log) Backlog(ctx context.Context, groupID string, sinceSeq int64) ([]*models.Message, error) {
	messages, err := l.messages.ListByGroup(ctx, groupID, sinceSeq)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	return messages, nil
}

// Get returns one message by id, used to hydrate fan-out notifications.
func (l *Log) Get(ctx context.Context, messageID string) (*models.Message, error) {
	message, err := l.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	return message, nil
}
