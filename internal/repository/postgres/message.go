package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/rahulvtu/studycircle/internal/models"
	"github.com/rahulvtu/studycircle/internal/repository"
)

type messageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *sql.DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Append(ctx context.Context, message *models.Message) (*models.Message, error) {
	// seq and created_at come from the database so the log order never
	// depends on client clocks.
	query := `
		INSERT INTO chat_messages (id, group_id, sender_id, content, message_type, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING seq, created_at`

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Type == "" {
		message.Type = models.MessageTypeText
	}

	err := r.db.QueryRowContext(ctx, query,
		message.ID,
		message.GroupID,
		message.SenderID,
		message.Content,
		message.Type,
	).Scan(&message.Seq, &message.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	return message, nil
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := `
		SELECT m.id, m.seq, m.group_id, m.sender_id, m.content, m.message_type, m.created_at,
		       p.id, p.full_name, p.usn, p.branch, p.semester, p.mother_tongue, p.avatar_url, p.created_at, p.updated_at
		FROM chat_messages m
		INNER JOIN profiles p ON p.id = m.sender_id
		WHERE m.id = $1`

	msg := &models.Message{Sender: &models.Profile{}}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.Seq,
		&msg.GroupID,
		&msg.SenderID,
		&msg.Content,
		&msg.Type,
		&msg.CreatedAt,
		&msg.Sender.ID,
		&msg.Sender.FullName,
		&msg.Sender.USN,
		&msg.Sender.Branch,
		&msg.Sender.Semester,
		&msg.Sender.MotherTongue,
		&msg.Sender.AvatarURL,
		&msg.Sender.CreatedAt,
		&msg.Sender.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message by ID: %w", err)
	}

	return msg, nil
}

func (r *messageRepository) ListByGroup(ctx context.Context, groupID string, sinceSeq int64) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.seq, m.group_id, m.sender_id, m.content, m.message_type, m.created_at,
		       p.id, p.full_name, p.usn, p.branch, p.semester, p.mother_tongue, p.avatar_url, p.created_at, p.updated_at
		FROM chat_messages m
		INNER JOIN profiles p ON p.id = m.sender_id
		WHERE m.group_id = $1 AND m.seq > $2
		ORDER BY m.seq ASC`

	rows, err := r.db.QueryContext(ctx, query, groupID, sinceSeq)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{Sender: &models.Profile{}}
		if err := rows.Scan(
			&msg.ID,
			&msg.Seq,
			&msg.GroupID,
			&msg.SenderID,
			&msg.Content,
			&msg.Type,
			&msg.CreatedAt,
			&msg.Sender.ID,
			&msg.Sender.FullName,
			&msg.Sender.USN,
			&msg.Sender.Branch,
			&msg.Sender.Semester,
			&msg.Sender.MotherTongue,
			&msg.Sender.AvatarURL,
			&msg.Sender.CreatedAt,
			&msg.Sender.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
