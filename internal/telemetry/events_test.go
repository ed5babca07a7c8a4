package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/logx"
)

type recordingPublisher struct {
	keys      []string
	envelopes []EventEnvelope
	headers   []map[string]string
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, event any, headers map[string]string) error {
	p.keys = append(p.keys, routingKey)
	p.envelopes = append(p.envelopes, event.(EventEnvelope))
	p.headers = append(p.headers, headers)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	logx.Discard()
	pub := &recordingPublisher{}
	emitter := NewEmitter(pub, "chat-sync", "test")
	emitter.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	userID := 7
	ctx := WithRequestID(context.Background(), "req-1")
	emitter.Emit(ctx, EventMessagePersisted, &userID, map[string]int{"messageId": 3})

	require.Len(t, pub.envelopes, 1)
	env := pub.envelopes[0]
	assert.Equal(t, EventMessagePersisted, pub.keys[0])
	assert.Equal(t, 1, env.SchemaVersion)
	assert.Equal(t, "2024-05-01T12:00:00Z", env.OccurredAt)
	assert.Equal(t, "req-1", env.RequestID)
	assert.Equal(t, 7, *env.UserID)
	assert.Equal(t, map[string]string{"x-request-id": "req-1"}, pub.headers[0])
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	logx.Discard()
	pub := &recordingPublisher{err: errors.New("broker down")}
	emitter := NewEmitter(pub, "chat-sync", "test")

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), EventChatCreated, nil, nil)
	})

	var nilEmitter *Emitter
	assert.NotPanics(t, func() {
		nilEmitter.Emit(context.Background(), EventChatCreated, nil, nil)
	})
}

func TestInitTracingWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "", "chat-sync", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
