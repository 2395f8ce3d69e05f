package ws

import "realtime-service/internal/models"

type typingPayload struct {
	RoomID int `json:"room_id"`
	UserID int `json:"user_id"`
}

// Typing fans out start/stop typing indicators to a room, excluding the
// sender. Nothing is persisted and nothing is retried; a stale indicator
// is harmless, so delivery is at-most-once.
type Typing struct {
	hub *Hub
}

// NewTyping constructs the broadcaster.
func NewTyping(hub *Hub) *Typing {
	return &Typing{hub: hub}
}

// Start broadcasts a typing indicator. Senders not currently attached to
// the room are dropped silently; the event is too cheap to reject loudly.
func (t *Typing) Start(roomID int, userID int) {
	if !t.hub.IsMember(roomID, userID) {
		return
	}
	t.hub.SendToRoomExcept(roomID, userID, models.Event{Type: models.EvtUserTyping, Payload: typingPayload{RoomID: roomID, UserID: userID}})
}

// Stop broadcasts the end of a typing indicator.
func (t *Typing) Stop(roomID int, userID int) {
	if !t.hub.IsMember(roomID, userID) {
		return
	}
	t.hub.SendToRoomExcept(roomID, userID, models.Event{Type: models.EvtUserStoppedTyping, Payload: typingPayload{RoomID: roomID, UserID: userID}})
}
