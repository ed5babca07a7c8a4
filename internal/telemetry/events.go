package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"chat-sync/internal/logx"
)

// Domain event types. They double as AMQP routing keys.
const (
	EventMessagePersisted     = "message.persisted"
	EventMessageStatusChanged = "message.status_changed"
	EventMessageRead          = "message.read"
	EventConnectionRequested  = "connection.requested"
	EventConnectionResponded  = "connection.responded"
	EventChatCreated          = "chat.created"
	EventPresenceChanged      = "presence.changed"
	EventWSConnect            = "ws.connect"
	EventWSDisconnect         = "ws.disconnect"
)

// Publisher delivers an event to the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

// Emitter wraps domain events in a versioned envelope and hands them to the
// publisher. Emission is best effort; failures are logged and dropped.
type Emitter struct {
	publisher   Publisher
	service     string
	environment string
	now         func() time.Time
	logger      zerolog.Logger
}

type EventEnvelope struct {
	SchemaVersion int    `json:"schema_version"`
	EventType     string `json:"event_type"`
	OccurredAt    string `json:"occurred_at"`
	Service       string `json:"service"`
	Environment   string `json:"environment"`
	RequestID     string `json:"request_id,omitempty"`
	TraceID       string `json:"trace_id,omitempty"`
	UserID        *int   `json:"user_id,omitempty"`
	Payload       any    `json:"payload"`
}

func NewEmitter(publisher Publisher, service, environment string) *Emitter {
	return &Emitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
		now:         time.Now,
		logger:      logx.Component("events"),
	}
}

type requestIDKey struct{}

// WithRequestID stores the request id that Emit copies into envelopes.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Emit publishes one event. A nil emitter is a no-op so components can run
// without an event sink.
func (e *Emitter) Emit(ctx context.Context, eventType string, userID *int, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := EventEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     RequestIDFromContext(ctx),
		UserID:        userID,
		Payload:       payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		envelope.TraceID = sc.TraceID().String()
	}

	if err := e.publisher.Publish(ctx, eventType, envelope, BuildHeaders(envelope.RequestID, envelope.TraceID)); err != nil {
		e.logger.Warn().Err(err).Str("event_type", eventType).Msg("event publish failed")
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
