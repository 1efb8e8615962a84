package models

import "time"

// MessageType tags the content of a chat message. Only free text exists
// today; attachments would add types here rather than a second table.
type MessageType string

const (
	MessageTypeText MessageType = "text"
)

// Message belongs to exactly one group. Seq is assigned by the log at insert
// time and defines the total order every subscriber observes; CreatedAt is
// server time, never the client's. Messages are immutable once appended.
type Message struct {
	ID        string      `json:"id" db:"id"`
	Seq       int64       `json:"seq" db:"seq"`
	GroupID   string      `json:"group_id" db:"group_id"`
	SenderID  string      `json:"sender_id" db:"sender_id"`
	Content   string      `json:"content" db:"content"`
	Type      MessageType `json:"message_type" db:"message_type"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	Sender    *Profile    `json:"sender,omitempty"`
}
