package ws

import (
	"sort"

	"realtime-service/internal/models"
)

// Video room membership is keyed independently from chat rooms so a chat
// room and its attached video session can never collide. A rejoin after
// leaving starts from a fresh media state.

type videoEventPayload struct {
	VideoRoomID string            `json:"video_room_id"`
	UserID      int               `json:"user_id"`
	Media       *models.MediaState `json:"media,omitempty"`
}

// JoinVideo adds the user to the video room and returns a snapshot of the
// members that were already present, excluding the caller.
func (h *Hub) JoinVideo(videoRoomID string, userID int, media models.MediaState) []models.VideoParticipant {
	defer h.roomLocks.forKey(videoRoomID).Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.videoRooms[videoRoomID]; !ok {
		h.videoRooms[videoRoomID] = make(map[int]models.MediaState)
	}
	existing := make([]models.VideoParticipant, 0, len(h.videoRooms[videoRoomID]))
	for memberID, memberMedia := range h.videoRooms[videoRoomID] {
		if memberID == userID {
			continue
		}
		existing = append(existing, models.VideoParticipant{UserID: memberID, Media: memberMedia})
	}
	sort.Slice(existing, func(i, j int) bool { return existing[i].UserID < existing[j].UserID })

	h.videoRooms[videoRoomID][userID] = media
	if _, ok := h.userVideo[userID]; !ok {
		h.userVideo[userID] = make(map[string]struct{})
	}
	h.userVideo[userID][videoRoomID] = struct{}{}
	return existing
}

// LeaveVideo removes the user and reports whether they were a member.
func (h *Hub) LeaveVideo(videoRoomID string, userID int) bool {
	defer h.roomLocks.forKey(videoRoomID).Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.videoRooms[videoRoomID][userID]; !ok {
		return false
	}
	h.dropVideoMember(videoRoomID, userID)
	return true
}

// leaveAllVideo removes the user from every video room; callers notify the
// rooms returned.
func (h *Hub) leaveAllVideo(userID int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	left := make([]string, 0, len(h.userVideo[userID]))
	for videoRoomID := range h.userVideo[userID] {
		left = append(left, videoRoomID)
	}
	for _, videoRoomID := range left {
		h.dropVideoMember(videoRoomID, userID)
	}
	return left
}

// dropVideoMember requires h.mu held.
func (h *Hub) dropVideoMember(videoRoomID string, userID int) {
	delete(h.videoRooms[videoRoomID], userID)
	if len(h.videoRooms[videoRoomID]) == 0 {
		delete(h.videoRooms, videoRoomID)
	}
	delete(h.userVideo[userID], videoRoomID)
	if len(h.userVideo[userID]) == 0 {
		delete(h.userVideo, userID)
	}
}

// InVideoRoom reports current video room membership.
func (h *Hub) InVideoRoom(videoRoomID string, userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.videoRooms[videoRoomID][userID]
	return ok
}

// VideoMembers returns the current participant snapshot for the room.
func (h *Hub) VideoMembers(videoRoomID string) []models.VideoParticipant {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]models.VideoParticipant, 0, len(h.videoRooms[videoRoomID]))
	for userID, media := range h.videoRooms[videoRoomID] {
		members = append(members, models.VideoParticipant{UserID: userID, Media: media})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members
}

// SetVideoMediaState updates the member's declared media state, reporting
// whether the member was present.
func (h *Hub) SetVideoMediaState(videoRoomID string, userID int, media models.MediaState) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.videoRooms[videoRoomID][userID]; !ok {
		return false
	}
	h.videoRooms[videoRoomID][userID] = media
	return true
}

// SendToVideoRoom fans an event out to every connected video room member.
func (h *Hub) SendToVideoRoom(videoRoomID string, event models.Event) {
	h.SendToVideoRoomExcept(videoRoomID, 0, event)
}

// SendToVideoRoomExcept fans out to the video room, skipping one user.
func (h *Hub) SendToVideoRoomExcept(videoRoomID string, exceptUserID int, event models.Event) {
	for _, member := range h.VideoMembers(videoRoomID) {
		if member.UserID == exceptUserID {
			continue
		}
		h.SendToUser(member.UserID, event)
	}
}
