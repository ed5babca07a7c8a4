package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/delivery"
	"chat-sync/internal/models"
	"chat-sync/internal/repositories"
)

// MessageRouter is the delivery entry point used by the durable path.
type MessageRouter interface {
	Submit(ctx context.Context, sub delivery.Submission) (delivery.Result, error)
	MarkRead(ctx context.Context, readerID, messageID int) (models.Message, error)
}

// ChatHandler manages chat and message endpoints.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	router      MessageRouter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, router MessageRouter) *ChatHandler {
	return &ChatHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		router:      router,
	}
}

// ListChats returns the caller's chats with participants, last message and
// unread count.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")

	chats, err := h.chatRepo.ListChats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// SetPinned pins or unpins a chat.
func (h *ChatHandler) SetPinned(c *gin.Context) {
	chatID, ok := parseID(c, "chat_id")
	if !ok {
		return
	}

	var req struct {
		Pinned *bool `json:"pinned" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireParticipant(c, chatID) {
		return
	}

	chat, err := h.chatRepo.SetPinned(c.Request.Context(), chatID, *req.Pinned)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

// GetChatMessages returns a chat's messages, oldest first.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, ok := parseID(c, "chat_id")
	if !ok {
		return
	}
	if !h.requireParticipant(c, chatID) {
		return
	}

	msgs, err := h.messageRepo.MessagesOf(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostChatMessage stores and delivers a message. A retry recognized as the
// same submission returns the stored message with 200 instead of 201.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID, ok := parseID(c, "chat_id")
	if !ok {
		return
	}

	var req struct {
		Content   *string `json:"content"`
		MediaURL  *string `json:"mediaUrl"`
		MediaType *string `json:"mediaType"`
		MessageID *int    `json:"messageId"`
		TempID    string  `json:"tempId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.router.Submit(c.Request.Context(), delivery.Submission{
		ChatID:    chatID,
		SenderID:  c.GetInt("userID"),
		Content:   req.Content,
		MediaURL:  req.MediaURL,
		MediaType: req.MediaType,
		MessageID: req.MessageID,
		TempID:    req.TempID,
		Path:      delivery.PathHTTP,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"message": res.Message})
}

// MarkRead marks a message as read by the caller.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}

	msg, err := h.router.MarkRead(c.Request.Context(), c.GetInt("userID"), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// requireParticipant answers 404 for a missing chat and 403 for a chat the
// caller is not part of.
func (h *ChatHandler) requireParticipant(c *gin.Context, chatID int) bool {
	ctx := c.Request.Context()
	member, err := h.chatRepo.IsParticipant(ctx, chatID, c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return false
	}
	if member {
		return true
	}
	if _, err := h.chatRepo.GetChat(ctx, chatID); err != nil {
		respondError(c, err)
		return false
	}
	respondError(c, delivery.ErrNotParticipant)
	return false
}
