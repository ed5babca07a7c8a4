package protocol

import (
	"chat-sync/internal/errs"
	"chat-sync/internal/models"
)

type UserStatusPayload struct {
	UserID int                   `json:"userId"`
	Status models.PresenceStatus `json:"status"`
}

type MessageSentPayload struct {
	MessageID int                   `json:"messageId"`
	Status    models.DeliveryStatus `json:"status"`
	TempID    string                `json:"tempId,omitempty"`
}

type TypingPayload struct {
	ChatID   int  `json:"chatId"`
	UserID   int  `json:"userId"`
	IsTyping bool `json:"isTyping"`
}

type ReadPayload struct {
	MessageID int `json:"messageId"`
	ChatID    int `json:"chatId"`
}

type CallRequestPayload struct {
	CallerID int    `json:"callerId"`
	CallType string `json:"callType"`
}

type CallResponsePayload struct {
	RecipientID int    `json:"recipientId"`
	Accepted    bool   `json:"accepted"`
	CallType    string `json:"callType,omitempty"`
}

type ConnectionRequestPayload struct {
	Request models.ConnectionRequest `json:"request"`
}

type ConnectionResponsePayload struct {
	RequestID int         `json:"requestId"`
	Accepted  bool        `json:"accepted"`
	Responder models.User `json:"responder"`
}

type ChatCreatedPayload struct {
	Chat models.ChatDetails `json:"chat"`
}

type PresenceSnapshotPayload struct {
	UserIDs []int `json:"userIds"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code"`
}

func UserStatusFrame(userID int, status models.PresenceStatus) Frame {
	return Frame{Type: TypeUserStatus, Payload: UserStatusPayload{UserID: userID, Status: status}}
}

// MessageFrame pushes the full message record to a recipient.
func MessageFrame(msg models.Message) Frame {
	return Frame{Type: TypeMessage, Payload: msg}
}

// MessageSentFrame acknowledges a submission to its sender. tempID echoes the
// client's correlation id and may be empty.
func MessageSentFrame(messageID int, status models.DeliveryStatus, tempID string) Frame {
	return Frame{Type: TypeMessageSent, Payload: MessageSentPayload{MessageID: messageID, Status: status, TempID: tempID}}
}

func TypingFrame(chatID, userID int, isTyping bool) Frame {
	return Frame{Type: TypeTyping, Payload: TypingPayload{ChatID: chatID, UserID: userID, IsTyping: isTyping}}
}

func ReadFrame(messageID, chatID int) Frame {
	return Frame{Type: TypeRead, Payload: ReadPayload{MessageID: messageID, ChatID: chatID}}
}

func CallRequestFrame(callerID int, callType string) Frame {
	return Frame{Type: TypeCallRequest, Payload: CallRequestPayload{CallerID: callerID, CallType: callType}}
}

func CallResponseFrame(recipientID int, accepted bool, callType string) Frame {
	return Frame{Type: TypeCallResponse, Payload: CallResponsePayload{RecipientID: recipientID, Accepted: accepted, CallType: callType}}
}

func ConnectionRequestFrame(req models.ConnectionRequest) Frame {
	return Frame{Type: TypeConnectionRequest, Payload: ConnectionRequestPayload{Request: req}}
}

func ConnectionResponseFrame(requestID int, accepted bool, responder models.User) Frame {
	return Frame{Type: TypeConnectionResponse, Payload: ConnectionResponsePayload{RequestID: requestID, Accepted: accepted, Responder: responder}}
}

// ChatCreatedFrame announces a new chat. The chat has no messages yet, so
// lastMessage serializes as null.
func ChatCreatedFrame(chat models.ChatDetails) Frame {
	chat.LastMessage = nil
	if chat.Participants == nil {
		chat.Participants = []models.User{}
	}
	return Frame{Type: TypeChatCreated, Payload: ChatCreatedPayload{Chat: chat}}
}

// PresenceSnapshotFrame lists the users online when a session binds.
func PresenceSnapshotFrame(userIDs []int) Frame {
	if userIDs == nil {
		userIDs = []int{}
	}
	return Frame{Type: TypePresenceSnapshot, Payload: PresenceSnapshotPayload{UserIDs: userIDs}}
}

// ErrorFrame reports a failed inbound frame. Internal causes are not exposed.
func ErrorFrame(err error) Frame {
	msg, details := errs.PublicMessage(err)
	return Frame{Type: TypeError, Payload: ErrorPayload{Message: msg, Details: details, Code: errs.KindOf(err).String()}}
}
