package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/models"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ParticipantsOf(ctx context.Context, chatID int) ([]models.User, error) {
	args := m.Called(ctx, chatID)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *ChatRepositoryMock) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, name *string, userIDs []int) (models.ChatDetails, error) {
	args := m.Called(ctx, name, userIDs)
	var chat models.ChatDetails
	if val := args.Get(0); val != nil {
		chat = val.(models.ChatDetails)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) FindSharedChat(ctx context.Context, userA, userB int) (models.Chat, error) {
	args := m.Called(ctx, userA, userB)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, userID int) ([]models.ChatDetails, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatDetails
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatDetails)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) SetPinned(ctx context.Context, chatID int, pinned bool) (models.Chat, error) {
	args := m.Called(ctx, chatID, pinned)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) PersistMessage(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) SetStatus(ctx context.Context, messageID int, status models.DeliveryStatus) (models.Message, bool, error) {
	args := m.Called(ctx, messageID, status)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID int) (models.Message, bool, error) {
	args := m.Called(ctx, messageID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) MessagesOf(ctx context.Context, chatID int) ([]models.Message, error) {
	args := m.Called(ctx, chatID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) LastMessages(ctx context.Context, chatIDs []int) (map[int]models.Message, error) {
	args := m.Called(ctx, chatIDs)
	var out map[int]models.Message
	if val := args.Get(0); val != nil {
		out = val.(map[int]models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCounts(ctx context.Context, userID int, chatIDs []int) (map[int]int, error) {
	args := m.Called(ctx, userID, chatIDs)
	var out map[int]int
	if val := args.Get(0); val != nil {
		out = val.(map[int]int)
	}
	return out, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) UsersByIDs(ctx context.Context, ids []int) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, username, displayName string) (models.User, error) {
	args := m.Called(ctx, username, displayName)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) SetPresence(ctx context.Context, userID int, status models.PresenceStatus, lastSeen time.Time) error {
	args := m.Called(ctx, userID, status, lastSeen)
	return args.Error(0)
}

type ConnectionRequestRepositoryMock struct {
	mock.Mock
}

func (m *ConnectionRequestRepositoryMock) CreateRequest(ctx context.Context, senderID, receiverID int, message *string) (models.ConnectionRequest, error) {
	args := m.Called(ctx, senderID, receiverID, message)
	var req models.ConnectionRequest
	if val := args.Get(0); val != nil {
		req = val.(models.ConnectionRequest)
	}
	return req, args.Error(1)
}

func (m *ConnectionRequestRepositoryMock) GetRequest(ctx context.Context, requestID int) (models.ConnectionRequest, error) {
	args := m.Called(ctx, requestID)
	var req models.ConnectionRequest
	if val := args.Get(0); val != nil {
		req = val.(models.ConnectionRequest)
	}
	return req, args.Error(1)
}

func (m *ConnectionRequestRepositoryMock) ListRequests(ctx context.Context, userID int) ([]models.ConnectionRequest, error) {
	args := m.Called(ctx, userID)
	var reqs []models.ConnectionRequest
	if val := args.Get(0); val != nil {
		reqs = val.([]models.ConnectionRequest)
	}
	return reqs, args.Error(1)
}

func (m *ConnectionRequestRepositoryMock) RespondRequest(ctx context.Context, requestID int, status models.RequestStatus) (models.ConnectionRequest, error) {
	args := m.Called(ctx, requestID, status)
	var req models.ConnectionRequest
	if val := args.Get(0); val != nil {
		req = val.(models.ConnectionRequest)
	}
	return req, args.Error(1)
}

type WindowMock struct {
	mock.Mock
}

func (m *WindowMock) Begin(ctx context.Context, key string) (int, bool, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *WindowMock) Complete(ctx context.Context, key string, messageID int) error {
	args := m.Called(ctx, key, messageID)
	return args.Error(0)
}

func (m *WindowMock) Abort(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
