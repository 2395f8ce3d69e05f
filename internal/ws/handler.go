package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"realtime-service/internal/auth"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/repositories"
)

const sendBufferSize = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler owns the websocket endpoint: it authenticates the handshake,
// admits the connection and dispatches the inbound event protocol.
type Handler struct {
	hub       *Hub
	relay     *Relay
	typing    *Typing
	signaling *Signaling
	presence  *Presence
	gate      auth.Gate
	messages  repositories.MessageRepository
}

// NewHandler constructs the websocket handler.
func NewHandler(hub *Hub, relay *Relay, typing *Typing, signaling *Signaling, presence *Presence, gate auth.Gate, messages repositories.MessageRepository) *Handler {
	return &Handler{
		hub:       hub,
		relay:     relay,
		typing:    typing,
		signaling: signaling,
		presence:  presence,
		gate:      gate,
		messages:  messages,
	}
}

// Handle upgrades the connection, admits the authenticated user and runs
// the read loop. Authentication happens before any state is touched; a
// rejected credential never partially admits a connection.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("realtime-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
	}

	userID, err := h.gate.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(newConnID(), userID, conn, sendBufferSize)
	client.Info = ConnInfo{
		DeviceID:  observability.DeviceIDFromRequest(c.Request),
		IP:        observability.IPFromRequest(c.Request),
		RequestID: observability.RequestIDFromRequest(c.Request),
		TraceID:   span.SpanContext().TraceID().String(),
	}

	h.hub.Connect(userID, client)
	go client.WritePump()

	observability.IncWSActive("realtime")
	observability.IncWSEvent("realtime", "ws_connect")
	h.publishConnEvent(ctx, client, "ws_connect", "")

	if _, err := h.hub.AutoJoin(ctx, userID); err != nil {
		log.Printf("auto-join user %d: %v", userID, err)
	}
	h.presence.OnConnect(userID)

	// The request context is canceled as soon as this handler returns,
	// while the connection lives on. The read loop gets a context that
	// survives the handshake but keeps its values (span, trace).
	go h.readLoop(context.WithoutCancel(ctx), client)
}

func (h *Handler) readLoop(ctx context.Context, client *Client) {
	var closeReason string
	defer func() {
		_, wasLive := h.hub.Disconnect(client)
		client.Close()

		observability.DecWSActive("realtime")
		observability.IncWSEvent("realtime", "ws_disconnect")
		h.publishConnEvent(ctx, client, "ws_disconnect", closeReason)

		if wasLive {
			h.presence.OnDisconnect(client.UserID)
		}
	}()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("realtime", "ws_error")
			}
			return
		}
		h.dispatch(ctx, client, raw)
	}
}

// Inbound payload shapes. Each event kind carries its own strongly typed
// payload; the dispatcher is a closed switch so an unhandled kind is a
// deliberate rejection, not a silent drop.
type sendMessagePayload struct {
	RoomID      int                 `json:"room_id"`
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

type markReadPayload struct {
	RoomID     int   `json:"room_id"`
	MessageIDs []int `json:"message_ids"`
}

type editMessagePayload struct {
	RoomID    int    `json:"room_id"`
	MessageID int    `json:"message_id"`
	Content   string `json:"content"`
}

type deleteMessagePayload struct {
	RoomID    int `json:"room_id"`
	MessageID int `json:"message_id"`
}

type roomRefPayload struct {
	RoomID int `json:"room_id"`
}

type videoJoinRequest struct {
	VideoRoomID string            `json:"video_room_id"`
	Media       models.MediaState `json:"media"`
}

type videoRefPayload struct {
	VideoRoomID string `json:"video_room_id"`
}

type signalRequest struct {
	VideoRoomID string          `json:"video_room_id"`
	ToUserID    int             `json:"to_user_id"`
	Payload     json.RawMessage `json:"payload"`
}

type roomHistoryPayload struct {
	RoomID   int              `json:"room_id"`
	Messages []models.Message `json:"messages"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) dispatch(ctx context.Context, client *Client, raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(client, "bad_payload", "malformed event")
		return
	}

	switch env.Type {
	case models.CmdSendMessage:
		h.handleSendMessage(ctx, client, env.Payload)
	case models.CmdMarkRead:
		h.handleMarkRead(ctx, client, env.Payload)
	case models.CmdEditMessage:
		h.handleEditMessage(ctx, client, env.Payload)
	case models.CmdDeleteMessage:
		h.handleDeleteMessage(ctx, client, env.Payload)
	case models.CmdJoinRoom:
		h.handleJoinRoom(ctx, client, env.Payload)
	case models.CmdLeaveRoom:
		h.handleLeaveRoom(client, env.Payload)
	case models.CmdTypingStart, models.CmdTypingStop:
		h.handleTyping(client, env.Type, env.Payload)
	case models.CmdJoinVideoRoom:
		h.handleJoinVideo(client, env.Payload)
	case models.CmdLeaveVideoRoom:
		h.handleLeaveVideo(client, env.Payload)
	case models.CmdVideoOffer, models.CmdVideoAnswer, models.CmdICECandidate:
		h.handleSignal(client, env.Type, env.Payload)
	case models.CmdVideoStateChanged:
		h.handleVideoState(client, env.Payload)
	case models.CmdScreenShareStarted, models.CmdScreenShareStopped:
		h.handleScreenShare(client, env.Type, env.Payload)
	default:
		h.sendError(client, "unknown_event", fmt.Sprintf("unsupported event type %q", env.Type))
	}
}

func (h *Handler) handleSendMessage(ctx context.Context, client *Client, raw json.RawMessage) {
	var p sendMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Content == "" {
		h.sendError(client, "bad_payload", "send_message requires room_id and content")
		return
	}
	if _, err := h.relay.Send(ctx, p.RoomID, client.UserID, p.Content, p.Attachments); err != nil {
		h.sendOpError(client, err)
	}
}

func (h *Handler) handleMarkRead(ctx context.Context, client *Client, raw json.RawMessage) {
	var p markReadPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(client, "bad_payload", "mark_read requires room_id and message_ids")
		return
	}
	if err := h.relay.MarkRead(ctx, p.RoomID, client.UserID, p.MessageIDs); err != nil {
		h.sendOpError(client, err)
	}
}

func (h *Handler) handleEditMessage(ctx context.Context, client *Client, raw json.RawMessage) {
	var p editMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Content == "" {
		h.sendError(client, "bad_payload", "edit_message requires message_id and content")
		return
	}
	if _, err := h.relay.Edit(ctx, p.RoomID, client.UserID, p.MessageID, p.Content); err != nil {
		h.sendOpError(client, err)
	}
}

func (h *Handler) handleDeleteMessage(ctx context.Context, client *Client, raw json.RawMessage) {
	var p deleteMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(client, "bad_payload", "delete_message requires room_id and message_id")
		return
	}
	if err := h.relay.Delete(ctx, p.RoomID, client.UserID, p.MessageID); err != nil {
		h.sendOpError(client, err)
	}
}

// handleJoinRoom attaches the caller and answers with the persisted room
// history. History and live events are distinct channels: a reconnecting
// user reads the backlog from here and never sees replayed new_message
// events for it.
func (h *Handler) handleJoinRoom(ctx context.Context, client *Client, raw json.RawMessage) {
	var p roomRefPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(client, "bad_payload", "join_room requires room_id")
		return
	}
	if err := h.hub.JoinRoom(ctx, p.RoomID, client.UserID); err != nil {
		h.sendOpError(client, err)
		return
	}

	history, err := h.messages.ListRoomMessages(ctx, p.RoomID)
	if err != nil {
		log.Printf("load history room %d: %v", p.RoomID, err)
		h.sendError(client, "internal", "failed to load room history")
		return
	}
	h.hub.sendTo(client, models.Event{Type: models.EvtRoomHistory, Payload: roomHistoryPayload{RoomID: p.RoomID, Messages: history}})
}

func (h *Handler) handleLeaveRoom(client *Client, raw json.RawMessage) {
	var p roomRefPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(client, "bad_payload", "leave_room requires room_id")
		return
	}
	h.hub.LeaveRoom(p.RoomID, client.UserID)
}

func (h *Handler) handleTyping(client *Client, kind models.EventKind, raw json.RawMessage) {
	var p roomRefPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	if kind == models.CmdTypingStart {
		h.typing.Start(p.RoomID, client.UserID)
	} else {
		h.typing.Stop(p.RoomID, client.UserID)
	}
}

func (h *Handler) handleJoinVideo(client *Client, raw json.RawMessage) {
	var p videoJoinRequest
	if err := json.Unmarshal(raw, &p); err != nil || p.VideoRoomID == "" {
		h.sendError(client, "bad_payload", "join_video_room requires video_room_id")
		return
	}
	existing := h.signaling.Join(p.VideoRoomID, client.UserID, p.Media)
	h.hub.sendTo(client, models.Event{Type: models.EvtVideoParticipants, Payload: videoParticipantsPayload{
		VideoRoomID:  p.VideoRoomID,
		Participants: existing,
	}})
}

func (h *Handler) handleLeaveVideo(client *Client, raw json.RawMessage) {
	var p videoRefPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(client, "bad_payload", "leave_video_room requires video_room_id")
		return
	}
	h.signaling.Leave(p.VideoRoomID, client.UserID)
}

func (h *Handler) handleSignal(client *Client, kind models.EventKind, raw json.RawMessage) {
	var p signalRequest
	if err := json.Unmarshal(raw, &p); err != nil || p.VideoRoomID == "" || p.ToUserID == 0 {
		h.sendError(client, "bad_payload", "signaling requires video_room_id and to_user_id")
		return
	}

	var err error
	switch kind {
	case models.CmdVideoOffer:
		err = h.signaling.RelayOffer(p.VideoRoomID, client.UserID, p.ToUserID, p.Payload)
	case models.CmdVideoAnswer:
		err = h.signaling.RelayAnswer(p.VideoRoomID, client.UserID, p.ToUserID, p.Payload)
	default:
		err = h.signaling.RelayCandidate(p.VideoRoomID, client.UserID, p.ToUserID, p.Payload)
	}
	if err != nil {
		h.sendOpError(client, err)
	}
}

func (h *Handler) handleVideoState(client *Client, raw json.RawMessage) {
	var p videoJoinRequest
	if err := json.Unmarshal(raw, &p); err != nil || p.VideoRoomID == "" {
		h.sendError(client, "bad_payload", "video_state_changed requires video_room_id")
		return
	}
	if err := h.signaling.UpdateMediaState(p.VideoRoomID, client.UserID, p.Media); err != nil {
		h.sendOpError(client, err)
	}
}

func (h *Handler) handleScreenShare(client *Client, kind models.EventKind, raw json.RawMessage) {
	var p videoRefPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.VideoRoomID == "" {
		h.sendError(client, "bad_payload", "screen share events require video_room_id")
		return
	}
	if err := h.signaling.ScreenShare(p.VideoRoomID, client.UserID, kind == models.CmdScreenShareStarted); err != nil {
		h.sendOpError(client, err)
	}
}

func (h *Handler) sendOpError(client *Client, err error) {
	h.sendError(client, errorCode(err), err.Error())
}

func (h *Handler) sendError(client *Client, code, message string) {
	h.hub.sendTo(client, models.Event{Type: models.EvtError, Payload: errorPayload{Code: code, Message: message}})
}

func (h *Handler) publishConnEvent(ctx context.Context, client *Client, event, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "realtime",
			"event":       event,
			"conn_id":     client.ID,
			"duration_ms": time.Since(client.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   client.UserID,
			"device_id": client.Info.DeviceID,
			"ip":        client.Info.IP,
		},
	}
	headers := observability.BuildHeaders(client.Info.RequestID, client.Info.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events.realtime", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
}
