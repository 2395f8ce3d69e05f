package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"realtime-service/internal/models"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, name string, creatorID int, memberIDs []int) (models.Room, error) {
	args := m.Called(ctx, name, creatorID, memberIDs)
	return args.Get(0).(models.Room), args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(models.Room), args.Error(1)
}

func (m *RoomRepositoryMock) ListRoomsForUser(ctx context.Context, userID int) ([]models.Room, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Room), args.Error(1)
}

func (m *RoomRepositoryMock) ActiveRoomIDs(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *RoomRepositoryMock) IsActiveParticipant(ctx context.Context, roomID int, userID int) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) ParticipantRole(ctx context.Context, roomID int, userID int) (string, error) {
	args := m.Called(ctx, roomID, userID)
	return args.String(0), args.Error(1)
}

func (m *RoomRepositoryMock) AddParticipant(ctx context.Context, roomID int, userID int, role string) error {
	args := m.Called(ctx, roomID, userID, role)
	return args.Error(0)
}

func (m *RoomRepositoryMock) TouchActivity(ctx context.Context, roomID int) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, roomID int, senderID int, content string, attachments []models.Attachment) (models.Message, error) {
	args := m.Called(ctx, roomID, senderID, content, attachments)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) ListRoomMessages(ctx context.Context, roomID int) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, roomID int, userID int, messageIDs []int) ([]int, error) {
	args := m.Called(ctx, roomID, userID, messageIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MessageRepositoryMock) Edit(ctx context.Context, messageID int, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}
