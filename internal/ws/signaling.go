package ws

import (
	"encoding/json"

	"realtime-service/internal/models"
)

// Signaling relays WebRTC negotiation payloads between exactly two
// endpoints inside a video room and keeps the video room membership
// notified of arrivals, departures and media-state changes. Payloads are
// forwarded verbatim and never interpreted.
type Signaling struct {
	hub *Hub
}

// NewSignaling constructs the relay.
func NewSignaling(hub *Hub) *Signaling {
	return &Signaling{hub: hub}
}

type signalPayload struct {
	VideoRoomID string          `json:"video_room_id"`
	FromUserID  int             `json:"from_user_id"`
	Payload     json.RawMessage `json:"payload"`
}

type videoJoinPayload struct {
	VideoRoomID string            `json:"video_room_id"`
	UserID      int               `json:"user_id"`
	Media       models.MediaState `json:"media"`
}

type videoParticipantsPayload struct {
	VideoRoomID  string                    `json:"video_room_id"`
	Participants []models.VideoParticipant `json:"participants"`
}

// Join adds the caller to the video room, tells existing members about the
// arrival and their declared media state, and returns the prior membership
// snapshot so the caller knows who to initiate peer connections with.
func (s *Signaling) Join(videoRoomID string, userID int, media models.MediaState) []models.VideoParticipant {
	existing := s.hub.JoinVideo(videoRoomID, userID, media)
	s.hub.SendToVideoRoomExcept(videoRoomID, userID, models.Event{Type: models.EvtUserJoinedVideo, Payload: videoJoinPayload{
		VideoRoomID: videoRoomID,
		UserID:      userID,
		Media:       media,
	}})
	return existing
}

// Leave removes the user and notifies the remaining members, independent
// of any chat room membership.
func (s *Signaling) Leave(videoRoomID string, userID int) {
	if !s.hub.LeaveVideo(videoRoomID, userID) {
		return
	}
	s.hub.SendToVideoRoom(videoRoomID, models.Event{Type: models.EvtUserLeftVideo, Payload: videoEventPayload{
		VideoRoomID: videoRoomID,
		UserID:      userID,
	}})
}

// RelayOffer forwards an SDP offer to exactly the target's live channel.
func (s *Signaling) RelayOffer(videoRoomID string, fromUserID int, toUserID int, payload json.RawMessage) error {
	return s.relay(models.EvtVideoOffer, videoRoomID, fromUserID, toUserID, payload)
}

// RelayAnswer forwards an SDP answer.
func (s *Signaling) RelayAnswer(videoRoomID string, fromUserID int, toUserID int, payload json.RawMessage) error {
	return s.relay(models.EvtVideoAnswer, videoRoomID, fromUserID, toUserID, payload)
}

// RelayCandidate forwards an ICE candidate.
func (s *Signaling) RelayCandidate(videoRoomID string, fromUserID int, toUserID int, payload json.RawMessage) error {
	return s.relay(models.EvtICECandidate, videoRoomID, fromUserID, toUserID, payload)
}

// relay is strictly point-to-point. An unreachable target drops the
// payload with no queueing or retry: stale signaling is useless once the
// negotiation window has passed.
func (s *Signaling) relay(kind models.EventKind, videoRoomID string, fromUserID int, toUserID int, payload json.RawMessage) error {
	if !s.hub.InVideoRoom(videoRoomID, fromUserID) {
		return ErrAccessDenied
	}
	if !s.hub.InVideoRoom(videoRoomID, toUserID) {
		return ErrTargetUnreachable
	}
	delivered := s.hub.SendToUser(toUserID, models.Event{Type: kind, Payload: signalPayload{
		VideoRoomID: videoRoomID,
		FromUserID:  fromUserID,
		Payload:     payload,
	}})
	if !delivered {
		return ErrTargetUnreachable
	}
	return nil
}

// UpdateMediaState records and broadcasts a camera/mic/screen change.
func (s *Signaling) UpdateMediaState(videoRoomID string, userID int, media models.MediaState) error {
	if !s.hub.SetVideoMediaState(videoRoomID, userID, media) {
		return ErrAccessDenied
	}
	s.hub.SendToVideoRoomExcept(videoRoomID, userID, models.Event{Type: models.EvtVideoStateChanged, Payload: videoJoinPayload{
		VideoRoomID: videoRoomID,
		UserID:      userID,
		Media:       media,
	}})
	return nil
}

// ScreenShare broadcasts the start or stop of a screen share.
func (s *Signaling) ScreenShare(videoRoomID string, userID int, started bool) error {
	if !s.hub.InVideoRoom(videoRoomID, userID) {
		return ErrAccessDenied
	}
	kind := models.EvtScreenShareStopped
	if started {
		kind = models.EvtScreenShareStarted
	}
	s.hub.SendToVideoRoomExcept(videoRoomID, userID, models.Event{Type: kind, Payload: videoEventPayload{
		VideoRoomID: videoRoomID,
		UserID:      userID,
	}})
	return nil
}
