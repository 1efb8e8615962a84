// Package telegram relays one study group's chat into a Telegram chat and
// back. The bridge is optional; the service runs without a token.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/rahulvtu/studycircle/internal/models"
	"github.com/rahulvtu/studycircle/internal/session"
)

// Bridge connects a Telegram chat to a study group. Messages appended to
// the group appear in the chat; text sent to the chat is appended to the
// group under the bridge's user identity.
type Bridge struct {
	api      *tgbotapi.BotAPI
	logger   *logrus.Logger
	sessions *session.Manager

	groupID string
	userID  string
	chatID  int64
}

// NewBridge creates a bridge for one (group, chat) pair. The user id must
// belong to a member of the group or every relayed send will be rejected.
func NewBridge(token string, sessions *session.Manager, groupID, userID string, chatID int64, logger *logrus.Logger) (*Bridge, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	logger.Infof("Authorized on account %s", api.Self.UserName)

	return &Bridge{
		api:      api,
		logger:   logger,
		sessions: sessions,
		groupID:  groupID,
		userID:   userID,
		chatID:   chatID,
	}, nil
}

// Start opens the group session and long-polls Telegram until ctx is done.
func (b *Bridge) Start(ctx context.Context) error {
	// Session callbacks must return quickly, so outbound Telegram sends go
	// through a channel drained by this goroutine.
	outbound := make(chan tgbotapi.MessageConfig, 64)
	send := func(text string) {
		msg := tgbotapi.NewMessage(b.chatID, text)
		select {
		case outbound <- msg:
		default:
			b.logger.Warn("Telegram relay backlog full, dropping message")
		}
	}

	ctrl, err := b.sessions.Open(ctx, b.groupID, b.userID, session.Observer{
		OnMessage: func(m *models.Message) {
			if m.SenderID == b.userID {
				return // relayed from Telegram, do not echo back
			}
			sender := m.SenderID
			if m.Sender != nil {
				sender = m.Sender.DisplayName()
			}
			send(fmt.Sprintf("%s: %s", sender, m.Content))
		},
		OnRequests: func(pending []*models.JoinRequest) {
			if len(pending) > 0 {
				send(fmt.Sprintf("%d join request(s) waiting for review", len(pending)))
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open bridge session: %w", err)
	}
	defer ctrl.Close()

	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.WithFields(logrus.Fields{
		"group_id": b.groupID,
		"chat_id":  b.chatID,
	}).Info("Telegram bridge started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping Telegram bridge...")
			b.api.StopReceivingUpdates()
			return nil
		case msg := <-outbound:
			if _, err := b.api.Send(msg); err != nil {
				b.logger.WithError(err).Error("Failed to send Telegram message")
			}
		case update := <-updates:
			b.handleUpdate(ctx, ctrl, update)
		}
	}
}

func (b *Bridge) handleUpdate(ctx context.Context, ctrl *session.Controller, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	if update.Message.Chat.ID != b.chatID {
		return
	}

	text := update.Message.Text
	if update.Message.From != nil && update.Message.From.UserName != "" {
		text = fmt.Sprintf("[%s] %s", update.Message.From.UserName, text)
	}

	if _, err := ctrl.Send(ctx, text); err != nil {
		b.logger.WithError(err).WithFields(logrus.Fields{
			"chat_id":    update.Message.Chat.ID,
			"message_id": update.Message.MessageID,
		}).Error("Failed to relay Telegram message into group")
	}
}
