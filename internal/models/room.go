package models

import "time"

// Participant roles within a room.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Room is a durable conversation grouping with a persisted participant list.
type Room struct {
	ID             int       `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	CreatedBy      int       `db:"created_by" json:"created_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastActivityAt time.Time `db:"last_activity_at" json:"last_activity_at"`
}

// Participant is a durable participant record. Ephemeral room membership
// never mutates these rows.
type Participant struct {
	RoomID   int       `db:"room_id" json:"room_id"`
	UserID   int       `db:"user_id" json:"user_id"`
	Role     string    `db:"role" json:"role"`
	Active   bool      `db:"active" json:"active"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}
