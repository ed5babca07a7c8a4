// Package protocol defines the frames exchanged over the live transport.
// Every frame is {"type": ..., "payload": {...}}. Inbound payloads form a closed
// set validated at decode time; outbound frames are built by the constructors
// in this package.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"chat-sync/internal/errs"
	"chat-sync/internal/models"
)

// Type names a frame.
type Type string

const (
	TypeUserStatus         Type = "user_status"
	TypeMessage            Type = "message"
	TypeMessageSent        Type = "message_sent"
	TypeTyping             Type = "typing"
	TypeRead               Type = "read"
	TypeCallRequest        Type = "call_request"
	TypeCallResponse       Type = "call_response"
	TypeConnectionRequest  Type = "connection_request"
	TypeConnectionResponse Type = "connection_response"
	TypeChatCreated        Type = "chat_created"
	TypePresenceSnapshot   Type = "presence_snapshot"
	TypeError              Type = "error"
)

// Frame is an outbound frame. Payload is one of the *Payload types below.
type Frame struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload"`
}

var (
	ErrMalformedFrame = errs.Validation("malformed frame")
	ErrUnknownType    = errs.Validation("unknown frame type")
	ErrInvalidPayload = errs.Validation("invalid payload")
)

// Inbound is a decoded client frame. The concrete type is one of UserStatus,
// SendMessage, Typing, Read, CallRequest or CallResponse.
type Inbound interface {
	FrameType() Type
	validate() error
}

// CorrelationID is a client-chosen id. Clients send either a string or a
// number; both decode to the same string.
type CorrelationID string

func (c *CorrelationID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CorrelationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("correlation id must be a string or number")
	}
	*c = CorrelationID(n.String())
	return nil
}

// UserStatus binds a connection to a user.
type UserStatus struct {
	UserID   int    `json:"userId"`
	ClientID string `json:"clientId"`
}

func (UserStatus) FrameType() Type { return TypeUserStatus }

func (p UserStatus) validate() error {
	if p.UserID <= 0 {
		return ErrInvalidPayload.WithDetails("userId is required")
	}
	if strings.TrimSpace(p.ClientID) == "" {
		return ErrInvalidPayload.WithDetails("clientId is required")
	}
	return nil
}

// SendMessage submits a message. MessageID is set by clients retrying a
// submission whose server identity they already know.
type SendMessage struct {
	ChatID    int           `json:"chatId"`
	SenderID  int           `json:"senderId"`
	Content   *string       `json:"content,omitempty"`
	MediaURL  *string       `json:"mediaUrl,omitempty"`
	MediaType *string       `json:"mediaType,omitempty"`
	MessageID *int          `json:"messageId,omitempty"`
	TempID    CorrelationID `json:"tempId,omitempty"`
}

func (SendMessage) FrameType() Type { return TypeMessage }

func (p SendMessage) validate() error {
	if p.ChatID <= 0 {
		return ErrInvalidPayload.WithDetails("chatId is required")
	}
	if p.SenderID <= 0 {
		return ErrInvalidPayload.WithDetails("senderId is required")
	}
	if p.MessageID != nil {
		if *p.MessageID <= 0 {
			return ErrInvalidPayload.WithDetails("messageId must be positive")
		}
		return nil
	}
	body := models.NewMessage{Content: p.Content, MediaURL: p.MediaURL}
	if !body.HasBody() {
		return ErrInvalidPayload.WithDetails("content or mediaUrl is required")
	}
	return nil
}

// Typing is a typing indicator. A missing isTyping means the user is typing.
type Typing struct {
	ChatID   int   `json:"chatId"`
	IsTyping *bool `json:"isTyping,omitempty"`
}

func (Typing) FrameType() Type { return TypeTyping }

func (p Typing) validate() error {
	if p.ChatID <= 0 {
		return ErrInvalidPayload.WithDetails("chatId is required")
	}
	return nil
}

// Active reports the typing state carried by the frame.
func (p Typing) Active() bool {
	return p.IsTyping == nil || *p.IsTyping
}

// Read marks a message as read.
type Read struct {
	MessageID int `json:"messageId"`
}

func (Read) FrameType() Type { return TypeRead }

func (p Read) validate() error {
	if p.MessageID <= 0 {
		return ErrInvalidPayload.WithDetails("messageId is required")
	}
	return nil
}

// CallRequest asks the recipient to join a call.
type CallRequest struct {
	RecipientID int    `json:"recipientId"`
	CallType    string `json:"callType"`
}

func (CallRequest) FrameType() Type { return TypeCallRequest }

func (p CallRequest) validate() error {
	if p.RecipientID <= 0 {
		return ErrInvalidPayload.WithDetails("recipientId is required")
	}
	if strings.TrimSpace(p.CallType) == "" {
		return ErrInvalidPayload.WithDetails("callType is required")
	}
	return nil
}

// CallResponse answers a call request from CallerID.
type CallResponse struct {
	CallerID int    `json:"callerId"`
	Accepted *bool  `json:"accepted"`
	CallType string `json:"callType,omitempty"`
}

func (CallResponse) FrameType() Type { return TypeCallResponse }

func (p CallResponse) validate() error {
	if p.CallerID <= 0 {
		return ErrInvalidPayload.WithDetails("callerId is required")
	}
	if p.Accepted == nil {
		return ErrInvalidPayload.WithDetails("accepted is required")
	}
	return nil
}

type envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses and validates one inbound frame. Every failure is a
// validation error so the caller can answer with an error frame and keep the
// connection open.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := strictUnmarshal(data, &env); err != nil {
		return nil, ErrMalformedFrame.WithDetails("%v", err)
	}

	switch env.Type {
	case TypeUserStatus:
		return decodeAs[UserStatus](env)
	case TypeMessage:
		return decodeAs[SendMessage](env)
	case TypeTyping:
		return decodeAs[Typing](env)
	case TypeRead:
		return decodeAs[Read](env)
	case TypeCallRequest:
		return decodeAs[CallRequest](env)
	case TypeCallResponse:
		return decodeAs[CallResponse](env)
	case "":
		return nil, ErrMalformedFrame.WithDetails("type is required")
	default:
		return nil, ErrUnknownType.WithDetails("%q", env.Type)
	}
}

// PeekType returns the frame type of data without validating the payload,
// or "" when data is not a frame envelope.
func PeekType(data []byte) Type {
	var env struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return ""
	}
	return env.Type
}

func decodeAs[T Inbound](env envelope) (Inbound, error) {
	if len(env.Payload) == 0 || bytes.Equal(bytes.TrimSpace(env.Payload), []byte("null")) {
		return nil, ErrInvalidPayload.WithDetails("%s payload is required", env.Type)
	}
	var p T
	if err := strictUnmarshal(env.Payload, &p); err != nil {
		return nil, ErrInvalidPayload.WithDetails("%s: %v", env.Type, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after frame")
	}
	return nil
}
