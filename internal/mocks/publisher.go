package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/telemetry"
)

// PublisherMock is an event sink for telemetry.NewEmitter.
type PublisherMock struct {
	mock.Mock
}

// NewPublisherMock returns a publisher that accepts every event.
func NewPublisherMock() *PublisherMock {
	m := new(PublisherMock)
	m.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.On("Close").Return(nil)
	return m
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// RoutingKeys lists published routing keys in order.
func (m *PublisherMock) RoutingKeys() []string {
	var keys []string
	for _, env := range m.envelopes() {
		keys = append(keys, env.EventType)
	}
	return keys
}

// EventsOf returns the published envelopes with the given event type.
func (m *PublisherMock) EventsOf(eventType string) []telemetry.EventEnvelope {
	var out []telemetry.EventEnvelope
	for _, env := range m.envelopes() {
		if env.EventType == eventType {
			out = append(out, env)
		}
	}
	return out
}

func (m *PublisherMock) envelopes() []telemetry.EventEnvelope {
	var out []telemetry.EventEnvelope
	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}
		if env, ok := call.Arguments.Get(2).(telemetry.EventEnvelope); ok {
			out = append(out, env)
		}
	}
	return out
}
