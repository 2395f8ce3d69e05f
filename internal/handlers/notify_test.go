package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/mocks"
	"realtime-service/internal/ws"
)

func setupNotifyRouter(hub *ws.Hub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	notify := NewNotifyHandler(hub)
	presence := NewPresenceHandler(hub)
	r.POST("/internal/notify/users/:user_id", notify.NotifyUser)
	r.POST("/internal/notify/rooms/:room_id", notify.NotifyRoom)
	r.GET("/presence/:user_id", presence.GetPresence)
	return r
}

func TestNotifyUserDelivered(t *testing.T) {
	hub := ws.NewHub(ws.NewRegistry(), new(mocks.RoomRepositoryMock), true)
	router := setupNotifyRouter(hub)

	hub.Connect(2, ws.NewClient("a", 2, nil, 8))

	body := bytes.NewBufferString(`{"type":"assignment_graded","payload":{"assignment_id":9}}`)
	req := httptest.NewRequest(http.MethodPost, "/internal/notify/users/2", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp["delivered"])
}

func TestNotifyUserOffline(t *testing.T) {
	hub := ws.NewHub(ws.NewRegistry(), new(mocks.RoomRepositoryMock), true)
	router := setupNotifyRouter(hub)

	body := bytes.NewBufferString(`{"type":"assignment_graded"}`)
	req := httptest.NewRequest(http.MethodPost, "/internal/notify/users/2", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.False(t, resp["delivered"])
}

func TestNotifyRoomAccepted(t *testing.T) {
	hub := ws.NewHub(ws.NewRegistry(), new(mocks.RoomRepositoryMock), true)
	router := setupNotifyRouter(hub)

	body := bytes.NewBufferString(`{"type":"lesson_starting"}`)
	req := httptest.NewRequest(http.MethodPost, "/internal/notify/rooms/5", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestNotifyMissingType(t *testing.T) {
	hub := ws.NewHub(ws.NewRegistry(), new(mocks.RoomRepositoryMock), true)
	router := setupNotifyRouter(hub)

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/internal/notify/users/2", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPresence(t *testing.T) {
	hub := ws.NewHub(ws.NewRegistry(), new(mocks.RoomRepositoryMock), true)
	router := setupNotifyRouter(hub)

	hub.Connect(2, ws.NewClient("a", 2, nil, 8))

	req := httptest.NewRequest(http.MethodGet, "/presence/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		UserID int  `json:"user_id"`
		Online bool `json:"online"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Online)

	req = httptest.NewRequest(http.MethodGet, "/presence/3", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.False(t, resp.Online)
}
