package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/connections"
	"chat-sync/internal/delivery"
	"chat-sync/internal/models"
)

type RouterMock struct {
	mock.Mock
}

func (m *RouterMock) Submit(ctx context.Context, sub delivery.Submission) (delivery.Result, error) {
	args := m.Called(ctx, sub)
	var res delivery.Result
	if val := args.Get(0); val != nil {
		res = val.(delivery.Result)
	}
	return res, args.Error(1)
}

func (m *RouterMock) MarkRead(ctx context.Context, readerID, messageID int) (models.Message, error) {
	args := m.Called(ctx, readerID, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type ConnectionServiceMock struct {
	mock.Mock
}

func (m *ConnectionServiceMock) Send(ctx context.Context, senderID, receiverID int, message *string) (models.ConnectionRequest, error) {
	args := m.Called(ctx, senderID, receiverID, message)
	var req models.ConnectionRequest
	if val := args.Get(0); val != nil {
		req = val.(models.ConnectionRequest)
	}
	return req, args.Error(1)
}

func (m *ConnectionServiceMock) Respond(ctx context.Context, responderID, requestID int, accept bool) (connections.Response, error) {
	args := m.Called(ctx, responderID, requestID, accept)
	var res connections.Response
	if val := args.Get(0); val != nil {
		res = val.(connections.Response)
	}
	return res, args.Error(1)
}

func (m *ConnectionServiceMock) List(ctx context.Context, userID int) ([]models.ConnectionRequest, error) {
	args := m.Called(ctx, userID)
	var reqs []models.ConnectionRequest
	if val := args.Get(0); val != nil {
		reqs = val.([]models.ConnectionRequest)
	}
	return reqs, args.Error(1)
}
