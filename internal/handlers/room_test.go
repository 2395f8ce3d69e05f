package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
	"realtime-service/internal/ws"
)

func setupRoomRouter(handler *RoomHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/rooms", handler.CreateRoom)
	r.GET("/rooms", handler.ListRooms)
	r.GET("/rooms/:room_id", handler.GetRoom)
	r.POST("/rooms/:room_id/participants", handler.AddParticipant)
	r.GET("/rooms/:room_id/messages", handler.GetRoomMessages)
	return r
}

func newRoomHandler(roomRepo *mocks.RoomRepositoryMock, messageRepo *mocks.MessageRepositoryMock) *RoomHandler {
	hub := ws.NewHub(ws.NewRegistry(), roomRepo, true)
	return NewRoomHandler(roomRepo, messageRepo, hub)
}

func TestCreateRoomSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := newRoomHandler(roomRepo, new(mocks.MessageRepositoryMock))
	router := setupRoomRouter(handler)

	roomRepo.On("CreateRoom", mock.Anything, "algebra 101", 1, []int{2, 3}).
		Return(models.Room{ID: 5, Name: "algebra 101", CreatedBy: 1}, nil).Once()

	body := bytes.NewBufferString(`{"name":"algebra 101","member_ids":[2,3]}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var room models.Room
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&room))
	require.Equal(t, 5, room.ID)
	roomRepo.AssertExpectations(t)
}

func TestCreateRoomMissingName(t *testing.T) {
	handler := newRoomHandler(new(mocks.RoomRepositoryMock), new(mocks.MessageRepositoryMock))
	router := setupRoomRouter(handler)

	body := bytes.NewBufferString(`{"member_ids":[2]}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRoomsSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := newRoomHandler(roomRepo, new(mocks.MessageRepositoryMock))
	router := setupRoomRouter(handler)

	roomRepo.On("ListRoomsForUser", mock.Anything, 1).
		Return([]models.Room{{ID: 5, Name: "algebra 101"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestListRoomsRepoError(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := newRoomHandler(roomRepo, new(mocks.MessageRepositoryMock))
	router := setupRoomRouter(handler)

	roomRepo.On("ListRoomsForUser", mock.Anything, 1).
		Return(([]models.Room)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAddParticipantRequiresAdmin(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := newRoomHandler(roomRepo, new(mocks.MessageRepositoryMock))
	router := setupRoomRouter(handler)

	roomRepo.On("ParticipantRole", mock.Anything, 5, 1).Return(models.RoleMember, nil).Once()

	body := bytes.NewBufferString(`{"user_id":2}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms/5/participants", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	roomRepo.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddParticipantSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := newRoomHandler(roomRepo, new(mocks.MessageRepositoryMock))
	router := setupRoomRouter(handler)

	roomRepo.On("ParticipantRole", mock.Anything, 5, 1).Return(models.RoleAdmin, nil).Once()
	roomRepo.On("AddParticipant", mock.Anything, 5, 2, models.RoleMember).Return(nil).Once()

	body := bytes.NewBufferString(`{"user_id":2}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms/5/participants", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestAddParticipantInvalidRole(t *testing.T) {
	handler := newRoomHandler(new(mocks.RoomRepositoryMock), new(mocks.MessageRepositoryMock))
	router := setupRoomRouter(handler)

	body := bytes.NewBufferString(`{"user_id":2,"role":"owner"}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms/5/participants", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRoomMessagesRequiresParticipant(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newRoomHandler(roomRepo, messageRepo)
	router := setupRoomRouter(handler)

	roomRepo.On("IsActiveParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "ListRoomMessages", mock.Anything, mock.Anything)
}

func TestGetRoomMessagesSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newRoomHandler(roomRepo, messageRepo)
	router := setupRoomRouter(handler)

	roomRepo.On("IsActiveParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("ListRoomMessages", mock.Anything, 5).
		Return([]models.Message{{ID: 9, RoomID: 5, SenderID: 2, Content: "hi"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["messages"], 1)
	messageRepo.AssertExpectations(t)
}

func TestGetRoomInvalidID(t *testing.T) {
	handler := newRoomHandler(new(mocks.RoomRepositoryMock), new(mocks.MessageRepositoryMock))
	router := setupRoomRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/rooms/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
