package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/delivery"
	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	"chat-sync/internal/repositories"
)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/chats", handler.ListChats)
	r.PATCH("/chats/:chat_id/pin", handler.SetPinned)
	r.GET("/chats/:chat_id/messages", handler.GetChatMessages)
	r.POST("/chats/:chat_id/messages", handler.PostChatMessage)
	r.POST("/messages/:message_id/read", handler.MarkRead)
	return r
}

func strPtr(s string) *string { return &s }

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestListChatsSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("ListChats", mock.Anything, 1).Return([]models.ChatDetails{{
		Chat:         models.Chat{ID: 3},
		Participants: []models.User{{ID: 1}, {ID: 2}},
		UnreadCount:  4,
	}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	chats := resp["chats"].([]any)
	require.Len(t, chats, 1)
	assert.Equal(t, float64(4), chats[0].(map[string]any)["unreadCount"])
	chatRepo.AssertExpectations(t)
}

func TestListChatsRepoError(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("ListChats", mock.Anything, 1).Return(nil, errors.New("db down")).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "internal error", resp["error"])
	assert.Equal(t, "internal", resp["code"])
	chatRepo.AssertExpectations(t)
}

func TestGetChatMessagesParticipantChecks(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(chatRepo *mocks.ChatRepositoryMock, messageRepo *mocks.MessageRepositoryMock)
		path       string
		wantStatus int
	}{
		{
			name:       "invalid id",
			setup:      func(*mocks.ChatRepositoryMock, *mocks.MessageRepositoryMock) {},
			path:       "/chats/abc/messages",
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown chat",
			setup: func(chatRepo *mocks.ChatRepositoryMock, _ *mocks.MessageRepositoryMock) {
				chatRepo.On("IsParticipant", mock.Anything, 9, 1).Return(false, nil).Once()
				chatRepo.On("GetChat", mock.Anything, 9).Return(nil, repositories.ErrChatNotFound).Once()
			},
			path:       "/chats/9/messages",
			wantStatus: http.StatusNotFound,
		},
		{
			name: "not a participant",
			setup: func(chatRepo *mocks.ChatRepositoryMock, _ *mocks.MessageRepositoryMock) {
				chatRepo.On("IsParticipant", mock.Anything, 9, 1).Return(false, nil).Once()
				chatRepo.On("GetChat", mock.Anything, 9).Return(models.Chat{ID: 9}, nil).Once()
			},
			path:       "/chats/9/messages",
			wantStatus: http.StatusForbidden,
		},
		{
			name: "participant",
			setup: func(chatRepo *mocks.ChatRepositoryMock, messageRepo *mocks.MessageRepositoryMock) {
				chatRepo.On("IsParticipant", mock.Anything, 9, 1).Return(true, nil).Once()
				messageRepo.On("MessagesOf", mock.Anything, 9).Return([]models.Message{{ID: 1, ChatID: 9}}, nil).Once()
			},
			path:       "/chats/9/messages",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chatRepo := new(mocks.ChatRepositoryMock)
			messageRepo := new(mocks.MessageRepositoryMock)
			tt.setup(chatRepo, messageRepo)
			router := setupChatRouter(NewChatHandler(chatRepo, messageRepo, nil))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			chatRepo.AssertExpectations(t)
			messageRepo.AssertExpectations(t)
		})
	}
}

func TestSetPinned(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	router := setupChatRouter(NewChatHandler(chatRepo, nil, nil))

	chatRepo.On("IsParticipant", mock.Anything, 3, 1).Return(true, nil).Once()
	chatRepo.On("SetPinned", mock.Anything, 3, true).Return(models.Chat{ID: 3, Pinned: true}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/chats/3/pin", bytes.NewBufferString(`{"pinned":true}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["chat"].(map[string]any)["pinned"])
	chatRepo.AssertExpectations(t)
}

func TestSetPinnedRequiresFlag(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	router := setupChatRouter(NewChatHandler(chatRepo, nil, nil))

	req := httptest.NewRequest(http.MethodPatch, "/chats/3/pin", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	chatRepo.AssertNotCalled(t, "SetPinned", mock.Anything, mock.Anything, mock.Anything)
}

func TestPostChatMessageCreated(t *testing.T) {
	msgRouter := new(mocks.RouterMock)
	router := setupChatRouter(NewChatHandler(nil, nil, msgRouter))

	stored := models.Message{ID: 11, ChatID: 3, SenderID: 1, Content: strPtr("hi"), Status: models.StatusSent}
	msgRouter.On("Submit", mock.Anything, mock.MatchedBy(func(sub delivery.Submission) bool {
		return sub.ChatID == 3 && sub.SenderID == 1 && sub.Path == delivery.PathHTTP &&
			sub.Content != nil && *sub.Content == "hi" && sub.TempID == "tmp-1" && sub.MessageID == nil
	})).Return(delivery.Result{Message: stored}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/3/messages", bytes.NewBufferString(`{"content":"hi","tempId":"tmp-1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, float64(11), resp["message"].(map[string]any)["id"])
	msgRouter.AssertExpectations(t)
}

func TestPostChatMessageDuplicateReturnsOK(t *testing.T) {
	msgRouter := new(mocks.RouterMock)
	router := setupChatRouter(NewChatHandler(nil, nil, msgRouter))

	stored := models.Message{ID: 11, ChatID: 3, SenderID: 1, Content: strPtr("hi"), Status: models.StatusDelivered}
	msgRouter.On("Submit", mock.Anything, mock.MatchedBy(func(sub delivery.Submission) bool {
		return sub.MessageID != nil && *sub.MessageID == 11
	})).Return(delivery.Result{Message: stored, Duplicate: true}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/3/messages", bytes.NewBufferString(`{"content":"hi","messageId":11}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "delivered", resp["message"].(map[string]any)["status"])
	msgRouter.AssertExpectations(t)
}

func TestPostChatMessageErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty", repositories.ErrEmptyMessage, http.StatusBadRequest, "validation"},
		{"outsider", delivery.ErrNotParticipant, http.StatusForbidden, "forbidden"},
		{"unknown chat", repositories.ErrChatNotFound, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgRouter := new(mocks.RouterMock)
			router := setupChatRouter(NewChatHandler(nil, nil, msgRouter))
			msgRouter.On("Submit", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/chats/3/messages", bytes.NewBufferString(`{}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeBody(t, rec)["code"])
			msgRouter.AssertExpectations(t)
		})
	}
}

func TestMarkRead(t *testing.T) {
	msgRouter := new(mocks.RouterMock)
	router := setupChatRouter(NewChatHandler(nil, nil, msgRouter))

	msgRouter.On("MarkRead", mock.Anything, 1, 11).Return(models.Message{ID: 11, Status: models.StatusRead, Read: true}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/11/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["message"].(map[string]any)["read"])
	msgRouter.AssertExpectations(t)
}

func TestMarkReadUnknownMessage(t *testing.T) {
	msgRouter := new(mocks.RouterMock)
	router := setupChatRouter(NewChatHandler(nil, nil, msgRouter))

	msgRouter.On("MarkRead", mock.Anything, 1, 99).Return(nil, repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/99/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "message not found", decodeBody(t, rec)["error"])
	msgRouter.AssertExpectations(t)
}
