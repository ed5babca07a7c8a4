// Package connections handles connection requests and promotes accepted ones
// to chats.
package connections

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"chat-sync/internal/errs"
	"chat-sync/internal/logx"
	"chat-sync/internal/models"
	"chat-sync/internal/protocol"
	"chat-sync/internal/repositories"
	"chat-sync/internal/telemetry"
)

var (
	ErrSelfRequest = errs.Validation("cannot send a connection request to yourself")
	ErrNotReceiver = errs.Forbidden("only the receiver can answer a connection request")
)

// ChatErrorMessage tells the client that the request was accepted but its chat
// is missing and the chat list must be refreshed.
const ChatErrorMessage = "request accepted but the chat could not be created; refresh your chat list"

// Notifier pushes a frame to a user's live session if there is one.
type Notifier interface {
	Notify(userID int, frame protocol.Frame) bool
}

// Response is the outcome of answering a request. Chat is set only when
// accepting created a new chat; ChatError is set when creating it failed.
type Response struct {
	Request   models.ConnectionRequest `json:"request"`
	Chat      *models.ChatDetails      `json:"chat,omitempty"`
	ChatError string                   `json:"chatError,omitempty"`
}

// Service implements the connection request workflow.
type Service struct {
	requests repositories.ConnectionRequestRepository
	chats    repositories.ChatRepository
	users    repositories.UserRepository
	notifier Notifier
	events   *telemetry.Emitter
	logger   zerolog.Logger
}

func NewService(requests repositories.ConnectionRequestRepository, chats repositories.ChatRepository, users repositories.UserRepository, notifier Notifier, events *telemetry.Emitter) *Service {
	return &Service{
		requests: requests,
		chats:    chats,
		users:    users,
		notifier: notifier,
		events:   events,
		logger:   logx.Component("connections"),
	}
}

// Send creates a pending request and notifies the receiver.
func (s *Service) Send(ctx context.Context, senderID, receiverID int, message *string) (models.ConnectionRequest, error) {
	if senderID == receiverID {
		return models.ConnectionRequest{}, ErrSelfRequest
	}
	sender, err := s.users.GetUser(ctx, senderID)
	if err != nil {
		return models.ConnectionRequest{}, err
	}
	if _, err := s.users.GetUser(ctx, receiverID); err != nil {
		return models.ConnectionRequest{}, err
	}

	req, err := s.requests.CreateRequest(ctx, senderID, receiverID, message)
	if err != nil {
		return models.ConnectionRequest{}, err
	}
	req.Sender = &sender

	s.events.Emit(ctx, telemetry.EventConnectionRequested, &senderID, map[string]any{
		"request_id":  req.ID,
		"receiver_id": receiverID,
	})
	s.notifier.Notify(receiverID, protocol.ConnectionRequestFrame(req))
	return req, nil
}

// Respond accepts or rejects a pending request on behalf of its receiver.
// Accepting reuses a chat the two users already share or creates one. A
// failed chat creation leaves the request accepted and is reported in
// ChatError.
func (s *Service) Respond(ctx context.Context, responderID, requestID int, accept bool) (Response, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return Response{}, err
	}
	if req.ReceiverID != responderID {
		return Response{}, ErrNotReceiver
	}

	status := models.RequestRejected
	if accept {
		status = models.RequestAccepted
	}
	updated, err := s.requests.RespondRequest(ctx, requestID, status)
	if err != nil {
		return Response{}, err
	}

	responder, err := s.users.GetUser(ctx, responderID)
	if err != nil {
		s.logger.Warn().Err(err).Int("user_id", responderID).Msg("load responder")
		responder = models.User{ID: responderID}
	}

	s.events.Emit(ctx, telemetry.EventConnectionResponded, &responderID, map[string]any{
		"request_id": updated.ID,
		"status":     updated.Status,
	})
	s.notifier.Notify(updated.SenderID, protocol.ConnectionResponseFrame(updated.ID, accept, responder))

	res := Response{Request: updated}
	if !accept {
		return res, nil
	}

	chat, err := s.promote(ctx, updated)
	if err != nil {
		s.logger.Error().Err(err).Int("request_id", updated.ID).Msg("create chat for accepted request")
		res.ChatError = ChatErrorMessage
		return res, nil
	}
	res.Chat = chat
	return res, nil
}

// promote returns the new chat, or nil when the users already share one.
func (s *Service) promote(ctx context.Context, req models.ConnectionRequest) (*models.ChatDetails, error) {
	_, err := s.chats.FindSharedChat(ctx, req.SenderID, req.ReceiverID)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, repositories.ErrChatNotFound) {
		return nil, err
	}

	chat, err := s.chats.CreateChat(ctx, nil, []int{req.SenderID, req.ReceiverID})
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, telemetry.EventChatCreated, &req.ReceiverID, map[string]any{
		"chat_id":    chat.ID,
		"request_id": req.ID,
	})
	frame := protocol.ChatCreatedFrame(chat)
	s.notifier.Notify(req.SenderID, frame)
	s.notifier.Notify(req.ReceiverID, frame)
	return &chat, nil
}

// List returns the incoming and outgoing requests of userID.
func (s *Service) List(ctx context.Context, userID int) ([]models.ConnectionRequest, error) {
	return s.requests.ListRequests(ctx, userID)
}
