package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/repositories"
)

// Hub owns the ephemeral realtime state: the connection registry, per-room
// member sets and per-video-room member sets. It is constructed and wired
// at startup; nothing in the package is a process-wide singleton, so tests
// build isolated instances.
type Hub struct {
	registry *Registry
	roomRepo repositories.RoomRepository

	// closeSuperseded selects the reconnect takeover policy: when true a
	// superseded channel is told and closed, when false it is only
	// forgotten (last-writer-wins, e.g. intentional multi-tab takeover).
	closeSuperseded bool

	mu         sync.RWMutex
	rooms      map[int]map[int]struct{}               // roomID -> members
	userRooms  map[int]map[int]struct{}               // userID -> rooms joined
	videoRooms map[string]map[int]models.MediaState   // videoRoomID -> member media
	userVideo  map[int]map[string]struct{}            // userID -> video rooms joined

	roomLocks keyedMutex
}

// NewHub creates an empty hub around the given registry.
func NewHub(registry *Registry, roomRepo repositories.RoomRepository, closeSuperseded bool) *Hub {
	return &Hub{
		registry:        registry,
		roomRepo:        roomRepo,
		closeSuperseded: closeSuperseded,
		rooms:           make(map[int]map[int]struct{}),
		userRooms:       make(map[int]map[int]struct{}),
		videoRooms:      make(map[string]map[int]models.MediaState),
		userVideo:       make(map[int]map[string]struct{}),
	}
}

// Registry exposes the connection registry for presence lookups.
func (h *Hub) Registry() *Registry {
	return h.registry
}

type roomEventPayload struct {
	RoomID int `json:"room_id"`
	UserID int `json:"user_id"`
}

// Connect binds the client as the user's live channel, applying the
// at-most-one-connection policy to any channel it supersedes.
func (h *Hub) Connect(userID int, c *Client) {
	prev := h.registry.Register(userID, c)
	if prev == nil {
		return
	}
	if h.closeSuperseded {
		h.sendTo(prev, models.Event{Type: models.EvtConnectionReplaced})
		prev.Close()
		observability.IncWSEvent("realtime", "ws_superseded")
	}
}

// Disconnect tears down the client's ephemeral state: registry entry, chat
// room membership and video room membership, notifying affected rooms. It
// reports the user and whether this channel was still the user's live one;
// a superseded channel's late disconnect cleans up nothing.
func (h *Hub) Disconnect(c *Client) (int, bool) {
	userID, ok := h.registry.Unregister(c)
	if !ok {
		return 0, false
	}

	for _, roomID := range h.removeFromAllRooms(userID) {
		h.SendToRoom(roomID, models.Event{Type: models.EvtUserLeftRoom, Payload: roomEventPayload{RoomID: roomID, UserID: userID}})
	}
	for _, videoRoomID := range h.leaveAllVideo(userID) {
		h.SendToVideoRoom(videoRoomID, models.Event{Type: models.EvtUserLeftVideo, Payload: videoEventPayload{VideoRoomID: videoRoomID, UserID: userID}})
	}
	return userID, true
}

// JoinRoom attaches the user to a room after checking the durable
// participant list, then tells the room's other current members.
func (h *Hub) JoinRoom(ctx context.Context, roomID int, userID int) error {
	active, err := h.roomRepo.IsActiveParticipant(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("verify participant: %w", err)
	}
	if !active {
		return ErrAccessDenied
	}

	defer h.roomLocks.forID(roomID).Unlock()
	if h.addToRoom(roomID, userID) {
		h.SendToRoomExcept(roomID, userID, models.Event{Type: models.EvtUserJoinedRoom, Payload: roomEventPayload{RoomID: roomID, UserID: userID}})
	}
	return nil
}

// AutoJoin attaches the user to every room their durable participant
// record marks active. Runs once per connection, after authentication.
func (h *Hub) AutoJoin(ctx context.Context, userID int) ([]int, error) {
	roomIDs, err := h.roomRepo.ActiveRoomIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load active rooms: %w", err)
	}
	for _, roomID := range roomIDs {
		unlock := h.roomLocks.forID(roomID)
		joined := h.addToRoom(roomID, userID)
		unlock.Unlock()
		if joined {
			h.SendToRoomExcept(roomID, userID, models.Event{Type: models.EvtUserJoinedRoom, Payload: roomEventPayload{RoomID: roomID, UserID: userID}})
		}
	}
	return roomIDs, nil
}

// LeaveRoom detaches the user from the room's ephemeral set. The durable
// participant record is untouched.
func (h *Hub) LeaveRoom(roomID int, userID int) {
	defer h.roomLocks.forID(roomID).Unlock()
	if h.removeFromRoom(roomID, userID) {
		h.SendToRoom(roomID, models.Event{Type: models.EvtUserLeftRoom, Payload: roomEventPayload{RoomID: roomID, UserID: userID}})
	}
}

// MembersOf returns the users currently attached to the room.
func (h *Hub) MembersOf(roomID int) []int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]int, 0, len(h.rooms[roomID]))
	for userID := range h.rooms[roomID] {
		members = append(members, userID)
	}
	return members
}

// IsMember reports whether the user is currently attached to the room.
func (h *Hub) IsMember(roomID int, userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][userID]
	return ok
}

// Online reports derived presence: a user is online iff the registry holds
// a live channel for them.
func (h *Hub) Online(userID int) bool {
	return h.registry.Online(userID)
}

func (h *Hub) addToRoom(roomID int, userID int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[int]struct{})
	}
	if _, ok := h.rooms[roomID][userID]; ok {
		return false
	}
	h.rooms[roomID][userID] = struct{}{}
	if _, ok := h.userRooms[userID]; !ok {
		h.userRooms[userID] = make(map[int]struct{})
	}
	h.userRooms[userID][roomID] = struct{}{}
	return true
}

func (h *Hub) removeFromRoom(roomID int, userID int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID][userID]; !ok {
		return false
	}
	delete(h.rooms[roomID], userID)
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
	delete(h.userRooms[userID], roomID)
	if len(h.userRooms[userID]) == 0 {
		delete(h.userRooms, userID)
	}
	return true
}

func (h *Hub) removeFromAllRooms(userID int) []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	left := make([]int, 0, len(h.userRooms[userID]))
	for roomID := range h.userRooms[userID] {
		delete(h.rooms[roomID], userID)
		if len(h.rooms[roomID]) == 0 {
			delete(h.rooms, roomID)
		}
		left = append(left, roomID)
	}
	delete(h.userRooms, userID)
	return left
}

// SendToUser delivers an event to the user's live channel and reports
// whether it was delivered. Programmatic side-channel for non-realtime
// producers as well as the relay paths.
func (h *Hub) SendToUser(userID int, event models.Event) bool {
	c, ok := h.registry.ChannelOf(userID)
	if !ok {
		return false
	}
	return h.sendTo(c, event)
}

// SendToRoom fans an event out to every currently-connected room member.
// Members without a live channel receive nothing.
func (h *Hub) SendToRoom(roomID int, event models.Event) {
	h.SendToRoomExcept(roomID, 0, event)
}

// SendToRoomExcept fans out to the room, skipping one user.
func (h *Hub) SendToRoomExcept(roomID int, exceptUserID int, event models.Event) {
	for _, userID := range h.MembersOf(roomID) {
		if userID == exceptUserID {
			continue
		}
		h.SendToUser(userID, event)
	}
}

// BroadcastAll delivers an event to every live channel.
func (h *Hub) BroadcastAll(event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("encode event %s: %v", event.Type, err)
		return
	}
	for _, c := range h.registry.Clients() {
		h.deliver(c, event.Type, payload)
	}
}

func (h *Hub) sendTo(c *Client, event models.Event) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("encode event %s: %v", event.Type, err)
		return false
	}
	return h.deliver(c, event.Type, payload)
}

// deliver hands a frame to the client's write queue. A client that cannot
// accept writes is closed; its read loop then runs the usual cleanup.
func (h *Hub) deliver(c *Client, kind models.EventKind, payload []byte) bool {
	if err := c.TrySend(payload); err != nil {
		log.Printf("websocket write error user=%d event=%s: %v", c.UserID, kind, err)
		observability.IncWSEvent("realtime", "ws_error")
		c.Close()
		return false
	}
	return true
}
