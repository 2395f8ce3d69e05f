package models

import "encoding/json"

// EventKind enumerates the websocket protocol event types. Inbound frames
// carry a Cmd* kind, outbound frames an Evt* kind. Dispatch switches over
// this closed set; unknown kinds are rejected with an error event.
type EventKind string

// Inbound event kinds.
const (
	CmdSendMessage        EventKind = "send_message"
	CmdMarkRead           EventKind = "mark_read"
	CmdEditMessage        EventKind = "edit_message"
	CmdDeleteMessage      EventKind = "delete_message"
	CmdJoinRoom           EventKind = "join_room"
	CmdLeaveRoom          EventKind = "leave_room"
	CmdTypingStart        EventKind = "typing_start"
	CmdTypingStop         EventKind = "typing_stop"
	CmdJoinVideoRoom      EventKind = "join_video_room"
	CmdLeaveVideoRoom     EventKind = "leave_video_room"
	CmdVideoOffer         EventKind = "video_offer"
	CmdVideoAnswer        EventKind = "video_answer"
	CmdICECandidate       EventKind = "ice_candidate"
	CmdVideoStateChanged  EventKind = "video_state_changed"
	CmdScreenShareStarted EventKind = "screen_share_started"
	CmdScreenShareStopped EventKind = "screen_share_stopped"
)

// Outbound event kinds.
const (
	EvtNewMessage         EventKind = "new_message"
	EvtMessagesRead       EventKind = "messages_read"
	EvtMessageEdited      EventKind = "message_edited"
	EvtMessageDeleted     EventKind = "message_deleted"
	EvtRoomHistory        EventKind = "room_history"
	EvtRoomCreated        EventKind = "room_created"
	EvtParticipantAdded   EventKind = "participant_added"
	EvtUserJoinedRoom     EventKind = "user_joined_room"
	EvtUserLeftRoom       EventKind = "user_left_room"
	EvtUserTyping         EventKind = "user_typing"
	EvtUserStoppedTyping  EventKind = "user_stopped_typing"
	EvtUserOnline         EventKind = "user_online"
	EvtUserOffline        EventKind = "user_offline"
	EvtVideoParticipants  EventKind = "video_room_participants"
	EvtUserJoinedVideo    EventKind = "user_joined_video"
	EvtUserLeftVideo      EventKind = "user_left_video"
	EvtVideoOffer         EventKind = "video_offer"
	EvtVideoAnswer        EventKind = "video_answer"
	EvtICECandidate       EventKind = "ice_candidate"
	EvtVideoStateChanged  EventKind = "video_state_changed"
	EvtScreenShareStarted EventKind = "screen_share_started"
	EvtScreenShareStopped EventKind = "screen_share_stopped"
	EvtConnectionReplaced EventKind = "connection_replaced"
	EvtError              EventKind = "error"
)

// Envelope is the wire frame for inbound events: a kind plus its raw
// payload, decoded by the dispatcher once the kind is known.
type Envelope struct {
	Type    EventKind       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is an outbound frame before encoding.
type Event struct {
	Type    EventKind `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// MediaState carries the camera/mic/screen-share booleans a video room
// participant advertises.
type MediaState struct {
	Camera bool `json:"camera"`
	Mic    bool `json:"mic"`
	Screen bool `json:"screen"`
}

// VideoParticipant is a snapshot entry for one video room member.
type VideoParticipant struct {
	UserID int        `json:"user_id"`
	Media  MediaState `json:"media"`
}
