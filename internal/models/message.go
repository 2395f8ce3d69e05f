package models

import "time"

// Attachment describes a file attached to a message.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// ReadReceipt records that a user has read a message.
type ReadReceipt struct {
	MessageID int       `db:"message_id" json:"-"`
	UserID    int       `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

// Message is a persisted room message. The service only appends rows and
// mutates flags; rows are never physically removed.
type Message struct {
	ID          int           `db:"id" json:"id"`
	RoomID      int           `db:"room_id" json:"room_id"`
	SenderID    int           `db:"sender_id" json:"sender_id"`
	Content     string        `db:"content" json:"content"`
	Attachments []Attachment  `db:"-" json:"attachments,omitempty"`
	EditedAt    *time.Time    `db:"edited_at" json:"edited_at,omitempty"`
	Deleted     bool          `db:"deleted" json:"deleted"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	ReadBy      []ReadReceipt `db:"-" json:"read_by,omitempty"`
}
