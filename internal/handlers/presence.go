package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/ws"
)

// PresenceHandler exposes online status over REST for services that
// cannot hold a websocket open.
type PresenceHandler struct {
	hub *ws.Hub
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(hub *ws.Hub) *PresenceHandler {
	return &PresenceHandler{hub: hub}
}

// GetPresence reports whether a user currently has a live channel.
func (h *PresenceHandler) GetPresence(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "online": h.hub.Online(userID)})
}
