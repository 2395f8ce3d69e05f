package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
	"realtime-service/internal/ws"
)

// RoomHandler manages durable room endpoints. Realtime delivery stays in
// the ws package; these endpoints only touch persisted state and use the
// hub as the side-channel for notifications.
type RoomHandler struct {
	roomRepo    repositories.RoomRepository
	messageRepo repositories.MessageRepository
	hub         *ws.Hub
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(roomRepo repositories.RoomRepository, messageRepo repositories.MessageRepository, hub *ws.Hub) *RoomHandler {
	return &RoomHandler{roomRepo: roomRepo, messageRepo: messageRepo, hub: hub}
}

// CreateRoom creates a room; the caller becomes its admin participant.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Name      string `json:"name" binding:"required"`
		MemberIDs []int  `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	room, err := h.roomRepo.CreateRoom(c.Request.Context(), req.Name, userID, req.MemberIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	// Tell online members right away; offline members see the room on
	// their next list fetch.
	for _, memberID := range req.MemberIDs {
		if memberID == userID {
			continue
		}
		h.hub.SendToUser(memberID, models.Event{Type: models.EvtRoomCreated, Payload: room})
	}

	c.JSON(http.StatusCreated, room)
}

// ListRooms returns the rooms where the caller is an active participant.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	userID := c.GetInt("userID")

	rooms, err := h.roomRepo.ListRoomsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// AddParticipant adds or reactivates a durable participant. Admin only.
func (h *RoomHandler) AddParticipant(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req struct {
		UserID int    `json:"user_id" binding:"required"`
		Role   string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if req.Role != models.RoleMember && req.Role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	userID := c.GetInt("userID")
	role, err := h.roomRepo.ParticipantRole(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify role"})
		return
	}
	if role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}

	if err := h.roomRepo.AddParticipant(c.Request.Context(), roomID, req.UserID, req.Role); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add participant"})
		return
	}

	h.hub.SendToUser(req.UserID, models.Event{Type: models.EvtParticipantAdded, Payload: gin.H{
		"room_id": roomID,
		"user_id": req.UserID,
		"role":    req.Role,
	}})

	c.Status(http.StatusNoContent)
}

// GetRoomMessages returns the persisted history for a room. This is the
// pull-based history channel; live events only ever reach connected
// members through the hub.
func (h *RoomHandler) GetRoomMessages(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.roomRepo.IsActiveParticipant(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room participant"})
		return
	}

	msgs, err := h.messageRepo.ListRoomMessages(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetRoom fetches a single room the caller participates in.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.roomRepo.IsActiveParticipant(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room participant"})
		return
	}

	room, err := h.roomRepo.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "room not found"})
		return
	}

	c.JSON(http.StatusOK, room)
}
