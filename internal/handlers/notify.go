package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/models"
	"realtime-service/internal/ws"
)

// NotifyHandler is the internal side channel that lets other backend
// services push events into live websocket connections. The /internal
// prefix is trusted at the network layer: the ingress never routes
// external traffic to it, so the handlers carry no user auth.
type NotifyHandler struct {
	hub *ws.Hub
}

// NewNotifyHandler builds a NotifyHandler.
func NewNotifyHandler(hub *ws.Hub) *NotifyHandler {
	return &NotifyHandler{hub: hub}
}

type notifyRequest struct {
	Type    string          `json:"type" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

// NotifyUser pushes an event to a single user's live channel. The
// response reports whether the user had a channel to deliver to.
func (h *NotifyHandler) NotifyUser(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	delivered := h.hub.SendToUser(userID, models.Event{
		Type:    models.EventKind(req.Type),
		Payload: req.Payload,
	})

	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

// NotifyRoom fans an event out to every connected member of a room.
func (h *NotifyHandler) NotifyRoom(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.hub.SendToRoom(roomID, models.Event{
		Type:    models.EventKind(req.Type),
		Payload: req.Payload,
	})

	c.Status(http.StatusAccepted)
}
