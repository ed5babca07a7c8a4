package protocol

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/errs"
	"chat-sync/internal/models"
)

func TestDecodeInboundFrames(t *testing.T) {
	in, err := Decode([]byte(`{"type":"user_status","payload":{"userId":7,"clientId":"tab-1"}}`))
	require.NoError(t, err)
	assert.Equal(t, UserStatus{UserID: 7, ClientID: "tab-1"}, in)

	in, err = Decode([]byte(`{"type":"message","payload":{"chatId":1,"senderId":7,"content":"hi","tempId":1714560000}}`))
	require.NoError(t, err)
	msg, ok := in.(SendMessage)
	require.True(t, ok)
	assert.Equal(t, "hi", *msg.Content)
	assert.Equal(t, CorrelationID("1714560000"), msg.TempID)
	assert.Nil(t, msg.MessageID)

	in, err = Decode([]byte(`{"type":"typing","payload":{"chatId":3}}`))
	require.NoError(t, err)
	assert.True(t, in.(Typing).Active())

	in, err = Decode([]byte(`{"type":"typing","payload":{"chatId":3,"isTyping":false}}`))
	require.NoError(t, err)
	assert.False(t, in.(Typing).Active())

	in, err = Decode([]byte(`{"type":"read","payload":{"messageId":11}}`))
	require.NoError(t, err)
	assert.Equal(t, Read{MessageID: 11}, in)

	in, err = Decode([]byte(`{"type":"call_response","payload":{"callerId":2,"accepted":false}}`))
	require.NoError(t, err)
	assert.False(t, *in.(CallResponse).Accepted)
}

func TestDecodeRetryWithMessageID(t *testing.T) {
	in, err := Decode([]byte(`{"type":"message","payload":{"chatId":1,"senderId":7,"messageId":42,"tempId":"t-1"}}`))
	require.NoError(t, err)
	msg := in.(SendMessage)
	require.NotNil(t, msg.MessageID)
	assert.Equal(t, 42, *msg.MessageID)
	assert.Equal(t, CorrelationID("t-1"), msg.TempID)
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"type":`,
		"missing type":      `{"payload":{}}`,
		"unknown type":      `{"type":"dance","payload":{}}`,
		"unknown field":     `{"type":"read","payload":{"messageId":1,"extra":true}}`,
		"unknown top field": `{"type":"read","payload":{"messageId":1},"x":1}`,
		"null payload":      `{"type":"read","payload":null}`,
		"missing payload":   `{"type":"read"}`,
		"wrong field type":  `{"type":"read","payload":{"messageId":"one"}}`,
		"missing messageId": `{"type":"read","payload":{}}`,
		"empty message":     `{"type":"message","payload":{"chatId":1,"senderId":2,"content":"   "}}`,
		"missing clientId":  `{"type":"user_status","payload":{"userId":1}}`,
		"missing callType":  `{"type":"call_request","payload":{"recipientId":1}}`,
		"missing accepted":  `{"type":"call_response","payload":{"callerId":1}}`,
		"bad tempId":        `{"type":"message","payload":{"chatId":1,"senderId":2,"content":"x","tempId":true}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			require.Error(t, err)
			assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		})
	}
}

func TestOutboundFramesSerializeCamelCase(t *testing.T) {
	frame := MessageSentFrame(5, models.StatusDelivered, "t-9")
	raw, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message_sent","payload":{"messageId":5,"status":"delivered","tempId":"t-9"}}`, string(raw))

	raw, err = json.Marshal(MessageSentFrame(5, models.StatusSent, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message_sent","payload":{"messageId":5,"status":"sent"}}`, string(raw))

	raw, err = json.Marshal(TypingFrame(3, 7, true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"typing","payload":{"chatId":3,"userId":7,"isTyping":true}}`, string(raw))
}

func TestChatCreatedFrameHasNullLastMessage(t *testing.T) {
	last := models.Message{ID: 1}
	frame := ChatCreatedFrame(models.ChatDetails{
		Chat:         models.Chat{ID: 4},
		Participants: []models.User{{ID: 1}, {ID: 2}},
		LastMessage:  &last,
	})

	raw, err := json.Marshal(frame)
	require.NoError(t, err)

	var decoded struct {
		Payload struct {
			Chat map[string]json.RawMessage `json:"chat"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "null", string(decoded.Payload.Chat["lastMessage"]))
	assert.Equal(t, "4", string(decoded.Payload.Chat["id"]))
}

func TestErrorFrameHidesInternalCause(t *testing.T) {
	frame := ErrorFrame(errs.Internal("persist message", fmt.Errorf("pq: connection refused")))
	payload := frame.Payload.(ErrorPayload)
	assert.Equal(t, "internal error", payload.Message)
	assert.Equal(t, "internal", payload.Code)

	frame = ErrorFrame(ErrInvalidPayload.WithDetails("chatId is required"))
	payload = frame.Payload.(ErrorPayload)
	assert.Equal(t, "invalid payload", payload.Message)
	assert.Equal(t, "chatId is required", payload.Details)
	assert.Equal(t, "validation", payload.Code)
}

func TestPeekType(t *testing.T) {
	assert.Equal(t, TypeUserStatus, PeekType([]byte(`{"type":"user_status","payload":{"userId":7}}`)))
	assert.Equal(t, TypeTyping, PeekType([]byte(`{"type":"typing","extra":true}`)))
	assert.Equal(t, Type(""), PeekType([]byte(`not json`)))
	assert.Equal(t, Type(""), PeekType([]byte(`{"payload":{}}`)))
}
