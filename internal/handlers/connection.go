package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/connections"
	"chat-sync/internal/models"
)

// ConnectionService is the connection request workflow.
type ConnectionService interface {
	Send(ctx context.Context, senderID, receiverID int, message *string) (models.ConnectionRequest, error)
	Respond(ctx context.Context, responderID, requestID int, accept bool) (connections.Response, error)
	List(ctx context.Context, userID int) ([]models.ConnectionRequest, error)
}

// ConnectionHandler manages connection request endpoints.
type ConnectionHandler struct {
	service ConnectionService
}

func NewConnectionHandler(service ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{service: service}
}

// ListRequests returns incoming and outgoing requests.
func (h *ConnectionHandler) ListRequests(c *gin.Context) {
	reqs, err := h.service.List(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// CreateRequest sends a connection request.
func (h *ConnectionHandler) CreateRequest(c *gin.Context) {
	var req struct {
		ReceiverID int     `json:"receiverId" binding:"required"`
		Message    *string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.Send(c.Request.Context(), c.GetInt("userID"), req.ReceiverID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request": created})
}

// Accept accepts a pending request addressed to the caller.
func (h *ConnectionHandler) Accept(c *gin.Context) {
	h.respond(c, true)
}

// Reject rejects a pending request addressed to the caller.
func (h *ConnectionHandler) Reject(c *gin.Context) {
	h.respond(c, false)
}

func (h *ConnectionHandler) respond(c *gin.Context, accept bool) {
	requestID, ok := parseID(c, "request_id")
	if !ok {
		return
	}

	res, err := h.service.Respond(c.Request.Context(), c.GetInt("userID"), requestID, accept)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
