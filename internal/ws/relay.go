package ws

import (
	"context"
	"fmt"
	"log"
	"time"

	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

// Relay validates, persists and fans out room messages together with the
// read, edit and delete events attached to them. A message is never
// broadcast before its persistence write has been acknowledged.
type Relay struct {
	hub      *Hub
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
}

// NewRelay constructs the message relay.
func NewRelay(hub *Hub, rooms repositories.RoomRepository, messages repositories.MessageRepository) *Relay {
	return &Relay{hub: hub, rooms: rooms, messages: messages}
}

type messagesReadPayload struct {
	RoomID     int       `json:"room_id"`
	UserID     int       `json:"user_id"`
	MessageIDs []int     `json:"message_ids"`
	ReadAt     time.Time `json:"read_at"`
}

type messageDeletedPayload struct {
	RoomID    int `json:"room_id"`
	MessageID int `json:"message_id"`
	DeletedBy int `json:"deleted_by"`
}

// Send persists the message and fans it out to the room's currently
// connected members. The per-room lock serializes the append-then-broadcast
// pipeline so in-room delivery order matches persistence order. On persist
// failure nothing is broadcast and only the sender learns of the error.
func (r *Relay) Send(ctx context.Context, roomID int, senderID int, content string, attachments []models.Attachment) (models.Message, error) {
	if !r.hub.IsMember(roomID, senderID) {
		return models.Message{}, ErrAccessDenied
	}

	defer r.hub.roomLocks.forID(roomID).Unlock()

	msg, err := r.messages.Append(ctx, roomID, senderID, content, attachments)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	if err := r.rooms.TouchActivity(ctx, roomID); err != nil {
		log.Printf("touch room %d activity: %v", roomID, err)
	}

	r.hub.SendToRoom(roomID, models.Event{Type: models.EvtNewMessage, Payload: msg})
	return msg, nil
}

// MarkRead appends read receipts for the given messages and notifies the
// room's other members. Already-read messages are skipped, as are ids of
// messages that live in other rooms; marking is idempotent.
func (r *Relay) MarkRead(ctx context.Context, roomID int, userID int, messageIDs []int) error {
	if !r.hub.IsMember(roomID, userID) {
		return ErrAccessDenied
	}
	if len(messageIDs) == 0 {
		return nil
	}

	marked, err := r.messages.MarkRead(ctx, roomID, userID, messageIDs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	if len(marked) == 0 {
		return nil
	}

	r.hub.SendToRoomExcept(roomID, userID, models.Event{Type: models.EvtMessagesRead, Payload: messagesReadPayload{
		RoomID:     roomID,
		UserID:     userID,
		MessageIDs: marked,
		ReadAt:     time.Now().UTC(),
	}})
	return nil
}

// Edit replaces a message's content. Only the original sender may edit;
// anyone else fails closed with no state change and no broadcast.
func (r *Relay) Edit(ctx context.Context, roomID int, userID int, messageID int, content string) (models.Message, error) {
	msg, err := r.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.RoomID != roomID {
		return models.Message{}, ErrAccessDenied
	}
	if msg.SenderID != userID {
		return models.Message{}, ErrNotOwner
	}

	updated, err := r.messages.Edit(ctx, messageID, content)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	r.hub.SendToRoom(roomID, models.Event{Type: models.EvtMessageEdited, Payload: updated})
	return updated, nil
}

// Delete soft-deletes a message. The sender may always delete their own;
// other room members need the admin role. Content is flagged, never
// physically removed.
func (r *Relay) Delete(ctx context.Context, roomID int, userID int, messageID int) error {
	msg, err := r.messages.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.RoomID != roomID {
		return ErrAccessDenied
	}

	if msg.SenderID != userID {
		role, err := r.rooms.ParticipantRole(ctx, roomID, userID)
		if err != nil {
			return fmt.Errorf("verify role: %w", err)
		}
		if role != models.RoleAdmin {
			return ErrNotAuthorized
		}
	}

	if err := r.messages.SoftDelete(ctx, messageID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	r.hub.SendToRoom(roomID, models.Event{Type: models.EvtMessageDeleted, Payload: messageDeletedPayload{
		RoomID:    roomID,
		MessageID: messageID,
		DeletedBy: userID,
	}})
	return nil
}
